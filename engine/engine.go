// Package engine orchestrates the credential lifecycle: issuance through the
// signing oracle, revocation through the revocation artifact, and the expiry
// sweep that reconciles stored state with wall-clock time. It is the only
// component that composes custody, store, revocation, and signer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vaultmark/vaultmark/config"
	"github.com/vaultmark/vaultmark/custody"
	"github.com/vaultmark/vaultmark/revocation"
	"github.com/vaultmark/vaultmark/signer"
	"github.com/vaultmark/vaultmark/store"
)

// ErrPolicyViolation indicates a request exceeded the configured policy,
// such as a TTL above the maximum. The error message names the requested
// value and the limit so the caller can choose a compliant value.
var ErrPolicyViolation = errors.New("policy violation")

// OracleFactory builds a signing oracle from an unlocked custody handle. The
// default factory returns the production SSH certificate signer; tests
// inject a fake to decouple lifecycle correctness from real signing.
type OracleFactory func(h *custody.KeyHandle) (signer.Oracle, error)

func defaultOracleFactory(h *custody.KeyHandle) (signer.Oracle, error) {
	s, err := h.Signer()
	if err != nil {
		return nil, err
	}
	return signer.NewCertSigner(s), nil
}

// Engine drives the credential lifecycle against shared persistent state.
type Engine struct {
	store   *store.Store
	custody *custody.Custody
	revoker *revocation.Revoker
	policy  config.Config
	paths   config.Paths
	oracle  OracleFactory
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger used for non-fatal events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithOracleFactory replaces the signing oracle construction.
func WithOracleFactory(f OracleFactory) Option {
	return func(e *Engine) { e.oracle = f }
}

// WithClock replaces the wall clock, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New assembles an Engine over the given components and policy.
func New(s *store.Store, c *custody.Custody, r *revocation.Revoker, policy config.Config, paths config.Paths, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		custody: c,
		revoker: r,
		policy:  policy,
		paths:   paths,
		oracle:  defaultOracleFactory,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// newID returns a short opaque credential identifier.
func newID() string {
	return uuid.NewString()[:8]
}

// resolveTTL applies the policy default and ceiling to a requested TTL.
func (e *Engine) resolveTTL(requested time.Duration) (time.Duration, error) {
	ttl := requested
	if ttl <= 0 {
		ttl = e.policy.Defaults.TTL.Duration()
	}
	if max := e.policy.MaxTTL.Duration(); ttl > max {
		return 0, fmt.Errorf("%w: requested TTL %s exceeds maximum %s",
			ErrPolicyViolation, config.TTL(ttl), config.TTL(max))
	}
	return ttl, nil
}

// InitCA initializes (or with force, rotates) the CA signing key and the
// revocation artifact placeholder. Rotation invalidates every certificate
// verified against the old key, which is why it demands the explicit flag.
func (e *Engine) InitCA(ctx context.Context, passphrase string, force bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var opts []custody.InitOption
	details := "CA initialized"
	if force {
		opts = append(opts, custody.WithForce())
		details = "CA reinitialized, all previously issued certificates are invalidated"
	}

	pub, err := e.custody.Init(passphrase, e.policy.KeyID, opts...)
	if err != nil {
		return "", err
	}

	// Bootstrap an empty revocation artifact so verifiers have something to
	// consume from day one.
	if _, statErr := os.Stat(e.paths.KRL()); os.IsNotExist(statErr) {
		if err := revocation.Save(e.paths.KRL(), revocation.NewList()); err != nil {
			return "", err
		}
	}

	if err := e.store.Append(store.AuditRecord{Action: store.ActionInit, Details: details}); err != nil {
		return "", err
	}
	return pub, nil
}

// Get returns one credential after reconciling expiry state.
func (e *Engine) Get(ctx context.Context, id string) (*store.Credential, error) {
	if _, err := e.Sweep(ctx, e.now()); err != nil {
		return nil, err
	}
	return e.store.Get(id)
}

// List returns credentials after reconciling expiry state.
func (e *Engine) List(ctx context.Context, f store.Filter) ([]*store.Credential, error) {
	if _, err := e.Sweep(ctx, e.now()); err != nil {
		return nil, err
	}
	return e.store.List(f)
}

// AuditLog queries the append-only audit trail.
func (e *Engine) AuditLog(ctx context.Context, f store.AuditFilter) ([]store.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.store.AuditLog(f)
}

// IsRevoked reports whether a serial appears in the revocation artifact.
func (e *Engine) IsRevoked(ctx context.Context, serial uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.revoker.IsRevoked(serial)
}

// RebuildRevocations regenerates the revocation artifact from the store's
// revoked rows, the source of truth. It recovers serials that the
// rebuild-from-current-entry corruption fallback may have dropped.
func (e *Engine) RebuildRevocations(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	serials, err := e.store.RevokedSerials()
	if err != nil {
		return 0, err
	}
	if err := e.revoker.Rebuild(serials); err != nil {
		return 0, err
	}
	return len(serials), nil
}

// StatusReport summarizes system state for the presentation layer.
type StatusReport struct {
	Initialized    bool
	CAPublicKey    string
	Counts         map[store.Status]int
	RevokedSerials int
	LastSerial     uint64
}

// Status reports overall system state after reconciling expiry.
func (e *Engine) Status(ctx context.Context) (*StatusReport, error) {
	if _, err := e.Sweep(ctx, e.now()); err != nil {
		return nil, err
	}

	report := &StatusReport{Initialized: e.custody.Initialized()}

	if report.Initialized {
		pub, err := e.custody.PublicKey()
		if err != nil {
			return nil, err
		}
		report.CAPublicKey = pub
	}

	counts, err := e.store.Counts()
	if err != nil {
		return nil, err
	}
	report.Counts = counts

	revoked, err := e.revoker.Count()
	if err != nil {
		return nil, err
	}
	report.RevokedSerials = revoked

	last, err := e.store.LastSerial()
	if err != nil {
		return nil, err
	}
	report.LastSerial = last

	return report, nil
}
