package telephony

import "errors"

var (
	// ErrNotConfigured means provider credentials are missing. Callers
	// fail fast instead of queueing dials that can never succeed.
	ErrNotConfigured = errors.New("telephony: provider not configured")
	// ErrProviderUnavailable wraps provider API failures on dial.
	ErrProviderUnavailable = errors.New("telephony: provider unavailable")
)
