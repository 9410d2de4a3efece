package connectivity

import "errors"

// Domain-specific errors for the connectivity package.
var (
	// ErrMissingTransport is returned when a Supervisor is built without a transport.
	ErrMissingTransport = errors.New("connectivity: transport is required")

	// ErrMissingProbe is returned when a Supervisor is built without a connectivity probe.
	ErrMissingProbe = errors.New("connectivity: probe is required")

	// ErrInvalidConfig is returned when the supervisor configuration is unusable.
	ErrInvalidConfig = errors.New("connectivity: invalid configuration")

	// ErrConnectFailed wraps transport connect failures. The supervisor
	// absorbs it; transports return it so callers can match with errors.Is.
	ErrConnectFailed = errors.New("connectivity: connect failed")
)
