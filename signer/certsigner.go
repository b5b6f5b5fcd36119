package signer

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// CertSigner is the production Oracle: it signs SSH user certificates with
// the CA key borrowed from an unlocked custody handle. The signer is only
// valid for the lifetime of that handle.
type CertSigner struct {
	signer ssh.Signer
}

var _ Oracle = (*CertSigner)(nil)

// NewCertSigner wraps an ssh.Signer obtained from custody.
func NewCertSigner(s ssh.Signer) *CertSigner {
	return &CertSigner{signer: s}
}

// Sign produces a user certificate bound to the request's serial,
// principals, and validity window. A force command, when set, is a critical
// option the target sshd enforces regardless of the client's intent.
func (c *CertSigner) Sign(ctx context.Context, req Request) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cert := &ssh.Certificate{
		Key:             req.PublicKey,
		Serial:          req.Serial,
		CertType:        ssh.UserCert,
		KeyId:           req.KeyID,
		ValidPrincipals: req.Principals,
		ValidAfter:      uint64(req.ValidAfter.Unix()),
		ValidBefore:     uint64(req.ValidBefore.Unix()),
		Permissions: ssh.Permissions{
			Extensions: map[string]string{
				"permit-pty":              "",
				"permit-agent-forwarding": "",
				"permit-port-forwarding":  "",
				"permit-user-rc":          "",
			},
		},
	}
	if req.ForceCommand != "" {
		cert.Permissions.CriticalOptions = map[string]string{
			"force-command": req.ForceCommand,
		}
	}

	if err := cert.SignCert(rand.Reader, c.signer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	return &Artifact{
		Certificate: strings.TrimSpace(string(ssh.MarshalAuthorizedKey(cert))),
	}, nil
}
