package engine

import (
	"context"
	"fmt"

	"github.com/vaultmark/vaultmark/store"
)

// SetupStep is one provisioning command for trusting the CA on a host.
type SetupStep struct {
	Description string
	Command     string
}

// HostSetupPlan returns the ordered commands that configure a host's sshd to
// trust the CA. The engine performs no remote execution itself; the caller
// runs the plan over its own transport.
func (e *Engine) HostSetupPlan(ctx context.Context, host string) ([]SetupStep, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	caPub, err := e.custody.PublicKey()
	if err != nil {
		return nil, err
	}

	steps := []SetupStep{
		{
			Description: "Add CA public key to TrustedUserCAKeys",
			Command:     fmt.Sprintf("echo '%s' | sudo tee -a /etc/ssh/trusted_ca_keys > /dev/null", caPub),
		},
		{
			Description: "Configure sshd to trust the CA",
			Command:     "sudo grep -q 'TrustedUserCAKeys' /etc/ssh/sshd_config || echo 'TrustedUserCAKeys /etc/ssh/trusted_ca_keys' | sudo tee -a /etc/ssh/sshd_config > /dev/null",
		},
		{
			Description: "Reload SSH daemon",
			Command:     "sudo systemctl reload sshd || sudo service ssh reload",
		},
	}

	err = e.store.Append(store.AuditRecord{
		Action:  store.ActionSetupHost,
		Details: fmt.Sprintf("Host setup plan issued for %s", host),
	})
	if err != nil {
		return nil, err
	}
	return steps, nil
}
