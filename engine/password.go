package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/vaultmark/vaultmark/config"
	"github.com/vaultmark/vaultmark/internal/util"
	"github.com/vaultmark/vaultmark/store"
)

var charsets = map[string]string{
	"alphanumeric": "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
	"alpha":        "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"numeric":      "0123456789",
	"special":      "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+[]{}|;:,.<>?",
	"hex":          "0123456789abcdef",
}

// Charsets returns the available password charset names.
func Charsets() []string {
	names := make([]string, 0, len(charsets))
	for name := range charsets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// hashPassword returns the hex SHA-256 digest of the plaintext. Only the
// digest is ever persisted.
func hashPassword(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// PasswordRequest describes one ephemeral password issuance.
type PasswordRequest struct {
	Label   string
	TTL     time.Duration // zero means the policy default
	Length  int           // zero means the policy default
	Charset string        // unknown or empty falls back to the policy default
}

// IssuePassword generates an ephemeral password, persists only its hash, and
// returns the plaintext exactly once. After this call the plaintext is
// irrecoverable from any VaultMark state.
func (e *Engine) IssuePassword(ctx context.Context, req PasswordRequest) (*store.Credential, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	ttl, err := e.resolveTTL(req.TTL)
	if err != nil {
		return nil, "", err
	}

	length := req.Length
	if length <= 0 {
		length = e.policy.Defaults.PasswordLength
	}
	charset, ok := charsets[req.Charset]
	if !ok {
		charset = charsets[e.policy.Defaults.PasswordCharset]
		if charset == "" {
			charset = charsets["alphanumeric"]
		}
	}

	if _, err := e.Sweep(ctx, e.now()); err != nil {
		return nil, "", err
	}

	plaintext, err := util.RandomString(length, charset)
	if err != nil {
		return nil, "", fmt.Errorf("generating password: %w", err)
	}

	id := newID()
	now := e.now().UTC()

	cred := &store.Credential{
		ID:           id,
		Kind:         store.KindPassword,
		Label:        req.Label,
		Status:       store.StatusActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		TTLSeconds:   int64(ttl / time.Second),
		PasswordHash: hashPassword(plaintext),
	}

	err = e.store.Insert(cred, store.AuditRecord{
		Action:       store.ActionPassword,
		CredentialID: id,
		Details:      fmt.Sprintf("Password %q (TTL: %s)", req.Label, config.TTL(ttl)),
	})
	if err != nil {
		return nil, "", err
	}

	return cred, plaintext, nil
}
