package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vaultmark/vaultmark/store"
)

// Sweep transitions every active credential whose expiry has passed to
// Expired, destroying its secret material and appending a cleanup audit
// entry per credential. It returns the number of credentials transitioned.
// Running it again with no new expirations is a no-op: status reflects the
// logical lifecycle, so each credential is swept exactly once.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	due, err := e.store.ExpiredActiveAsOf(now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, cred := range due {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		e.removeGrantDir(cred)

		_, err := e.store.Transition(cred.ID, store.StatusExpired, now.UTC(), store.AuditRecord{
			Action:       store.ActionCleanup,
			CredentialID: cred.ID,
			Details:      "Credential expired and cleaned up",
		})
		if err != nil {
			// A concurrent sweep or revoke got there first; that is fine.
			if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
				continue
			}
			return count, fmt.Errorf("expiring credential %s: %w", cred.ID, err)
		}
		count++
	}

	e.retryLeftoverCleanup()

	return count, nil
}

// retryLeftoverCleanup removes grant directories that earlier best-effort
// deletions left behind for terminal credentials.
func (e *Engine) retryLeftoverCleanup() {
	terminal, err := e.store.List(store.Filter{Kind: store.KindCertificate, IncludeTerminal: true})
	if err != nil {
		e.logger.Warn("listing credentials for leftover cleanup", "error", err)
		return
	}
	for _, cred := range terminal {
		if !cred.Status.Terminal() {
			continue
		}
		dir := e.paths.GrantDir(cred.ID)
		if _, err := os.Stat(dir); err == nil {
			e.removeGrantDir(cred)
		}
	}
}
