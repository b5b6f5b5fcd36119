package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Append writes a standalone audit entry, for events that change no
// credential record (CA initialization, host setup plans). Entries tied to a
// credential mutation go through Insert or Transition instead so they share
// the mutation's transaction.
func (s *Store) Append(rec AuditRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return appendAudit(tx, rec, time.Now().UTC())
	})
}

// appendAudit writes an audit entry inside tx. The sequence comes from the
// bucket's cursor so entries iterate in commit order.
func appendAudit(tx *bbolt.Tx, rec AuditRecord, ts time.Time) error {
	audit := tx.Bucket(bucketAudit)
	seq, err := audit.NextSequence()
	if err != nil {
		return fmt.Errorf("allocating audit sequence: %w", err)
	}
	entry := AuditEntry{
		Sequence:     seq,
		Action:       rec.Action,
		CredentialID: rec.CredentialID,
		Details:      rec.Details,
		Timestamp:    ts.UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}
	return audit.Put(encodeUint64(seq), data)
}

// AuditLog returns audit entries matching the filter, most recent first.
func (s *Store) AuditLog(f AuditFilter) ([]AuditEntry, error) {
	var out []AuditEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if f.Limit > 0 && len(out) >= f.Limit {
				break
			}
			var entry AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("decoding audit entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if f.Action != "" && entry.Action != f.Action {
				continue
			}
			if f.CredentialID != "" && entry.CredentialID != f.CredentialID {
				continue
			}
			if !f.Since.IsZero() && entry.Timestamp.Before(f.Since) {
				continue
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
