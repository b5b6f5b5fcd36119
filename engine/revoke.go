package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/vaultmark/vaultmark/store"
)

// Revoke moves an active credential to Revoked. For certificates the serial
// lands in the revocation artifact before the status transition commits: a
// crash between the two leaves a revoked-by-artifact certificate whose
// record still says active, which the caller simply revokes again, whereas
// the reverse order could leave a usable certificate recorded as revoked.
// The credential's secret material is destroyed; removal failures are logged
// and retried by later sweeps rather than blocking the transition.
func (e *Engine) Revoke(ctx context.Context, id string) (*store.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cred, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if cred.Status.Terminal() {
		return nil, fmt.Errorf("%s is %s: %w", id, cred.Status, store.ErrInvalidTransition)
	}

	if cred.Kind == store.KindCertificate {
		if err := e.revoker.Revoke(cred.Serial); err != nil {
			return nil, fmt.Errorf("recording serial %d in revocation artifact: %w", cred.Serial, err)
		}
	}

	e.removeGrantDir(cred)

	return e.store.Transition(id, store.StatusRevoked, e.now().UTC(), store.AuditRecord{
		Action:       store.ActionRevoke,
		CredentialID: id,
		Details:      "Credential revoked",
	})
}

// removeGrantDir destroys a credential's secret-material directory.
// Best-effort: a leftover directory is retried on the next sweep.
func (e *Engine) removeGrantDir(cred *store.Credential) {
	dir := e.paths.GrantDir(cred.ID)
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn("removing grant dir", "id", cred.ID, "dir", dir, "error", err)
	}
}
