package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vaultmark/vaultmark/config"
	"github.com/vaultmark/vaultmark/signer"
	"github.com/vaultmark/vaultmark/store"
)

// clockSkewPad is how far the validity window starts in the past, so a
// freshly issued certificate works against hosts whose clocks lag slightly.
const clockSkewPad = time.Minute

// CertificateRequest describes one certificate issuance.
type CertificateRequest struct {
	Principal    string
	Host         string
	TTL          time.Duration // zero means the policy default
	ForceCommand string
	Identity     string // certificate key ID; defaults to "vaultmark-<id>"
}

// IssueCertificate issues a short-lived SSH certificate: it allocates a
// serial, generates an ephemeral keypair in the credential's grant
// directory, unlocks custody for the duration of the signing call, and
// commits the credential with its audit entry in one transaction. Any
// failure before that commit removes the grant directory, so no secret
// material or orphan record survives a failed issuance. The returned string
// is a ready-to-run ssh invocation for the new credential.
func (e *Engine) IssueCertificate(ctx context.Context, passphrase string, req CertificateRequest) (*store.Credential, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	ttl, err := e.resolveTTL(req.TTL)
	if err != nil {
		return nil, "", err
	}

	if _, err := e.Sweep(ctx, e.now()); err != nil {
		return nil, "", err
	}

	id := newID()
	serial, err := e.store.AllocateSerial()
	if err != nil {
		return nil, "", err
	}

	identity := req.Identity
	if identity == "" {
		identity = "vaultmark-" + id
	}

	grantDir := e.paths.GrantDir(id)
	committed := false
	defer func() {
		if !committed {
			if err := os.RemoveAll(grantDir); err != nil {
				e.logger.Warn("removing grant dir after failed issuance",
					"id", id, "error", err)
			}
		}
	}()

	keypair, err := signer.GenerateKeypair(grantDir)
	if err != nil {
		return nil, "", err
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	handle, err := e.custody.Unlock(passphrase)
	if err != nil {
		return nil, "", err
	}
	defer handle.Close()

	oracle, err := e.oracle(handle)
	if err != nil {
		return nil, "", err
	}

	now := e.now().UTC()
	artifact, err := oracle.Sign(ctx, signer.Request{
		PublicKey:    keypair.PublicKey,
		Serial:       serial,
		Principals:   []string{req.Principal},
		ValidAfter:   now.Add(-clockSkewPad),
		ValidBefore:  now.Add(ttl),
		ForceCommand: req.ForceCommand,
		KeyID:        identity,
	})
	if err != nil {
		return nil, "", err
	}
	handle.Close()

	certPath := filepath.Join(grantDir, "id_ed25519-cert.pub")
	if err := os.WriteFile(certPath, []byte(artifact.Certificate+"\n"), 0o644); err != nil {
		return nil, "", fmt.Errorf("writing certificate: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	cred := &store.Credential{
		ID:           id,
		Kind:         store.KindCertificate,
		Host:         req.Host,
		Principal:    req.Principal,
		Label:        identity,
		Serial:       serial,
		Status:       store.StatusActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		TTLSeconds:   int64(ttl / time.Second),
		ForceCommand: req.ForceCommand,
		CertPath:     certPath,
		KeyPath:      keypair.KeyPath,
	}

	err = e.store.Insert(cred, store.AuditRecord{
		Action:       store.ActionGrant,
		CredentialID: id,
		Details: fmt.Sprintf("SSH cert for %s@%s (TTL: %s, serial: %d)",
			req.Principal, req.Host, config.TTL(ttl), serial),
	})
	if err != nil {
		return nil, "", err
	}
	committed = true

	sshCommand := fmt.Sprintf("ssh -i %q -o CertificateFile=%q %s@%s",
		cred.KeyPath, cred.CertPath, req.Principal, req.Host)
	return cred, sshCommand, nil
}
