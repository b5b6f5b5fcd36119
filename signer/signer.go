// Package signer defines the signing oracle boundary: the capability that
// turns a validated request into a signed certificate artifact. The engine
// depends only on the Oracle interface, so lifecycle correctness is testable
// against a fake without any real cryptographic toolchain.
package signer

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/ssh"
)

// ErrSigningFailed indicates the oracle could not produce a certificate. The
// error is surfaced verbatim and never retried automatically: re-signing
// with the same serial must never happen silently.
var ErrSigningFailed = errors.New("signing failed")

// Request carries the validated parameters for one signing operation.
type Request struct {
	PublicKey    ssh.PublicKey
	Serial       uint64
	Principals   []string
	ValidAfter   time.Time
	ValidBefore  time.Time
	ForceCommand string
	KeyID        string
}

// Artifact is the signed certificate in authorized_keys line format. The
// caller decides where (and whether) it lands on disk.
type Artifact struct {
	Certificate string
}

// Oracle produces signed certificate artifacts.
type Oracle interface {
	Sign(ctx context.Context, req Request) (*Artifact, error)
}
