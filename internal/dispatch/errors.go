package dispatch

import "errors"

// Domain-specific errors for the dispatch package.
var (
	// ErrPublishFailed wraps a transport publish failure. It is returned to
	// the caller; publishes are never retried.
	ErrPublishFailed = errors.New("dispatch: publish failed")

	// ErrSubscribeFailed wraps a transport subscribe failure.
	ErrSubscribeFailed = errors.New("dispatch: subscribe failed")

	// ErrUnsubscribeFailed wraps a transport unsubscribe failure.
	ErrUnsubscribeFailed = errors.New("dispatch: unsubscribe failed")

	// ErrEncodeFailed is returned when an outbound payload cannot be serialised.
	ErrEncodeFailed = errors.New("dispatch: payload encoding failed")
)
