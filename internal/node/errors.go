package node

import "errors"

var (
	// ErrNotProvisioned is returned by Setup when the device has no network
	// credentials. The provisioner, if any, has already been started.
	ErrNotProvisioned = errors.New("node: network not provisioned")

	// ErrMissingSupervisor is returned by New without a supervisor.
	ErrMissingSupervisor = errors.New("node: supervisor is required")
)
