package custody

import (
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/ssh"
)

// KeyHandle owns the decrypted CA private key for the duration of a single
// operation. The material lives in a memguard LockedBuffer and is wiped by
// Close on every exit path; the handle must not outlive the operation that
// acquired it.
type KeyHandle struct {
	keyID  string
	buf    *memguard.LockedBuffer
	closed bool
}

// KeyID returns the identifier the CA key was sealed under.
func (h *KeyHandle) KeyID() string {
	return h.keyID
}

// Signer parses the decrypted private key into an ssh.Signer for the signing
// oracle. The signer borrows the handle's memory and is invalid after Close.
func (h *KeyHandle) Signer() (ssh.Signer, error) {
	if h.closed {
		return nil, fmt.Errorf("key handle is closed")
	}
	signer, err := ssh.ParsePrivateKey(h.buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parsing CA private key: %w", err)
	}
	return signer, nil
}

// Bytes exposes the decrypted key material for callers that need the raw
// PEM, such as round-trip verification. The slice is wiped by Close.
func (h *KeyHandle) Bytes() []byte {
	if h.closed {
		return nil
	}
	return h.buf.Bytes()
}

// Close zeroes the key material. It is safe to call more than once.
func (h *KeyHandle) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.buf.Destroy()
}
