// Package store persists every credential ever issued together with its
// append-only audit trail. A single bbolt database backs both, so a state
// change and the audit entry documenting it commit in one transaction.
package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the two credential variants.
type Kind string

const (
	KindCertificate Kind = "ssh-cert"
	KindPassword    Kind = "password"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindCertificate || k == KindPassword
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("unmarshaling kind: %w", err)
	}
	kind := Kind(s)
	if !kind.Valid() {
		return fmt.Errorf("unknown credential kind %q", s)
	}
	*k = kind
	return nil
}

// Credential is the persistent record of one issued credential. Records are
// never deleted; terminal ones are filtered out of default listings.
type Credential struct {
	ID           string     `json:"id"`
	Kind         Kind       `json:"kind"`
	Host         string     `json:"host,omitempty"`
	Principal    string     `json:"principal,omitempty"`
	Label        string     `json:"label,omitempty"`
	Serial       uint64     `json:"serial,omitempty"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	TTLSeconds   int64      `json:"ttl_seconds"`
	ForceCommand string     `json:"force_command,omitempty"`
	CertPath     string     `json:"cert_path,omitempty"`
	KeyPath      string     `json:"key_path,omitempty"`
	PasswordHash string     `json:"password_hash,omitempty"`
}

// Action identifies the lifecycle operation an audit entry documents.
type Action string

const (
	ActionInit      Action = "init"
	ActionGrant     Action = "grant"
	ActionPassword  Action = "password"
	ActionRevoke    Action = "revoke"
	ActionCleanup   Action = "cleanup"
	ActionSetupHost Action = "setup-host"
)

// AuditEntry is one append-only audit record. Sequence is assigned by the
// store and strictly increases in commit order. CredentialID is a weak
// reference; it stays valid in the log even though it never dangles in
// practice (credentials are never deleted).
type AuditEntry struct {
	Sequence     uint64    `json:"sequence"`
	Action       Action    `json:"action"`
	CredentialID string    `json:"credential_id,omitempty"`
	Details      string    `json:"details"`
	Timestamp    time.Time `json:"timestamp"`
}

// AuditRecord is the caller-supplied portion of an audit entry. The store
// fills in sequence and timestamp at commit time.
type AuditRecord struct {
	Action       Action
	CredentialID string
	Details      string
}

// Filter selects credentials for listing. The zero value lists active
// credentials of every kind.
type Filter struct {
	Kind            Kind
	Status          Status
	Host            string
	IncludeTerminal bool
}

// AuditFilter selects audit entries for querying. The zero value returns the
// full log, most recent first.
type AuditFilter struct {
	Limit        int
	Action       Action
	CredentialID string
	Since        time.Time
}
