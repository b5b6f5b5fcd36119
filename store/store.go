package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketCredentials = []byte("credentials")
	bucketAudit       = []byte("audit")
	bucketMeta        = []byte("meta")

	metaKeySerial = []byte("serial")
)

// Store is a bbolt-backed credential store and audit log. bbolt's
// single-writer transactions give serial allocation and status transitions
// their exclusivity guarantees even across processes sharing the file.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the store at path. The open blocks up
// to a second waiting for another process to release the file lock.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketCredentials, bucketAudit, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing credential store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AllocateSerial returns the next serial, strictly greater than every serial
// ever allocated. The increment and read happen in one write transaction, so
// concurrent callers never observe the same value. Serials burned by a
// failed issuance leave gaps, never duplicates.
func (s *Store) AllocateSerial() (uint64, error) {
	var serial uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		serial = readSerial(meta) + 1
		return meta.Put(metaKeySerial, encodeUint64(serial))
	})
	if err != nil {
		return 0, fmt.Errorf("allocating serial: %w", err)
	}
	return serial, nil
}

// LastSerial returns the most recently allocated serial, or zero.
func (s *Store) LastSerial() (uint64, error) {
	var serial uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		serial = readSerial(tx.Bucket(bucketMeta))
		return nil
	})
	return serial, err
}

func readSerial(meta *bbolt.Bucket) uint64 {
	data := meta.Get(metaKeySerial)
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

// Insert persists a new credential together with its audit entry in one
// transaction. No credential becomes observable without its audit record.
func (s *Store) Insert(cred *Credential, rec AuditRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		creds := tx.Bucket(bucketCredentials)
		if creds.Get([]byte(cred.ID)) != nil {
			return fmt.Errorf("%s: %w", cred.ID, ErrDuplicateID)
		}
		if err := putCredential(creds, cred); err != nil {
			return err
		}
		return appendAudit(tx, rec, cred.CreatedAt)
	})
}

// Get returns the credential with the given ID.
func (s *Store) Get(id string) (*Credential, error) {
	var cred *Credential
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCredentials).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		var c Credential
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("decoding credential %s: %w", id, err)
		}
		cred = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// Transition moves a credential to a terminal status and appends the audit
// entry in the same transaction. Moving to Revoked stamps RevokedAt exactly
// once; a transition from a terminal state fails with ErrInvalidTransition.
func (s *Store) Transition(id string, to Status, now time.Time, rec AuditRecord) (*Credential, error) {
	var updated *Credential
	err := s.db.Update(func(tx *bbolt.Tx) error {
		creds := tx.Bucket(bucketCredentials)
		data := creds.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		var cred Credential
		if err := json.Unmarshal(data, &cred); err != nil {
			return fmt.Errorf("decoding credential %s: %w", id, err)
		}
		if !cred.Status.CanTransition(to) {
			return fmt.Errorf("%s is %s: %w", id, cred.Status, ErrInvalidTransition)
		}
		cred.Status = to
		if to == StatusRevoked {
			ts := now
			cred.RevokedAt = &ts
		}
		if err := putCredential(creds, &cred); err != nil {
			return err
		}
		if err := appendAudit(tx, rec, now); err != nil {
			return err
		}
		updated = &cred
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// List returns credentials matching the filter, newest first. Terminal
// credentials are excluded unless the filter names a status or sets
// IncludeTerminal.
func (s *Store) List(f Filter) ([]*Credential, error) {
	var out []*Credential
	err := s.forEachCredential(func(c *Credential) {
		if f.Kind != "" && c.Kind != f.Kind {
			return
		}
		if f.Host != "" && c.Host != f.Host {
			return
		}
		if f.Status != "" {
			if c.Status != f.Status {
				return
			}
		} else if !f.IncludeTerminal && c.Status.Terminal() {
			return
		}
		out = append(out, c)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Serial > out[j].Serial
	})
	return out, nil
}

// ExpiredActiveAsOf returns every active credential whose expiry is at or
// before now.
func (s *Store) ExpiredActiveAsOf(now time.Time) ([]*Credential, error) {
	var out []*Credential
	err := s.forEachCredential(func(c *Credential) {
		if c.Status == StatusActive && !c.ExpiresAt.After(now) {
			out = append(out, c)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out, nil
}

// RevokedSerials returns the serials of every revoked certificate
// credential, for regenerating the revocation artifact from store state.
func (s *Store) RevokedSerials() ([]uint64, error) {
	var out []uint64
	err := s.forEachCredential(func(c *Credential) {
		if c.Kind == KindCertificate && c.Status == StatusRevoked {
			out = append(out, c.Serial)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Counts returns the number of credentials per status.
func (s *Store) Counts() (map[Status]int, error) {
	counts := map[Status]int{}
	err := s.forEachCredential(func(c *Credential) {
		counts[c.Status]++
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Store) forEachCredential(fn func(*Credential)) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCredentials).ForEach(func(k, v []byte) error {
			var c Credential
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decoding credential %s: %w", k, err)
			}
			fn(&c)
			return nil
		})
	})
}

func putCredential(b *bbolt.Bucket, cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encoding credential %s: %w", cred.ID, err)
	}
	return b.Put([]byte(cred.ID), data)
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
