// Package revocation maintains the compact revocation artifact: the set of
// serials that verifiers must treat as invalid regardless of stated expiry.
// The artifact is rewritten atomically and checksummed, and updates fall
// back to rebuilding it from scratch when a previous writer left it corrupt.
package revocation

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
)

// ErrCorrupt indicates the artifact on disk does not parse: bad magic, a
// truncated body, or a checksum mismatch.
var ErrCorrupt = errors.New("revocation artifact is corrupt")

var magic = []byte("VMKRL1\n")

// List is an in-memory revocation set. The on-disk encoding is
// magic, uint32 serial count, the serials as big-endian uint64s in
// ascending order, and a CRC-32 of everything preceding it.
type List struct {
	serials map[uint64]struct{}
}

// NewList returns an empty revocation list.
func NewList() *List {
	return &List{serials: make(map[uint64]struct{})}
}

// Add marks a serial as revoked. Adding an already revoked serial is a no-op.
func (l *List) Add(serial uint64) {
	l.serials[serial] = struct{}{}
}

// Contains reports whether the serial is revoked.
func (l *List) Contains(serial uint64) bool {
	_, ok := l.serials[serial]
	return ok
}

// Len returns the number of revoked serials.
func (l *List) Len() int {
	return len(l.serials)
}

// Serials returns the revoked serials in ascending order.
func (l *List) Serials() []uint64 {
	out := make([]uint64, 0, len(l.serials))
	for s := range l.serials {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Encode renders the artifact bytes.
func (l *List) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(magic)

	serials := l.Serials()
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(serials)))
	buf.Write(count[:])

	var entry [8]byte
	for _, s := range serials {
		binary.BigEndian.PutUint64(entry[:], s)
		buf.Write(entry[:])
	}

	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc32.ChecksumIEEE(buf.Bytes()))
	buf.Write(sum[:])
	return buf.Bytes()
}

// Decode parses artifact bytes. Empty input is a valid empty list, matching
// the zero-length placeholder written at initialization time.
func Decode(data []byte) (*List, error) {
	l := NewList()
	if len(data) == 0 {
		return l, nil
	}

	minLen := len(magic) + 4 + 4
	if len(data) < minLen || !bytes.HasPrefix(data, magic) {
		return nil, ErrCorrupt
	}

	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(trailer) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	count := binary.BigEndian.Uint32(body[len(magic):])
	entries := body[len(magic)+4:]
	if len(entries) != int(count)*8 {
		return nil, fmt.Errorf("%w: truncated serial table", ErrCorrupt)
	}
	for i := 0; i < int(count); i++ {
		l.Add(binary.BigEndian.Uint64(entries[i*8:]))
	}
	return l, nil
}

// Load reads and parses the artifact at path. A missing file is an empty list.
func Load(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewList(), nil
		}
		return nil, fmt.Errorf("reading revocation artifact: %w", err)
	}
	return Decode(data)
}

// Save writes the artifact atomically: a temp file in the same directory is
// renamed over the target so readers never observe a partial write.
func Save(path string, l *List) error {
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating artifact dir: %w", err)
	}
	if err := os.WriteFile(tmp, l.Encode(), 0o600); err != nil {
		return fmt.Errorf("writing revocation artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing revocation artifact: %w", err)
	}
	return nil
}
