package conversation

import (
	"context"
	"time"
)

// SessionStore holds live call sessions keyed by call ID. Implementations
// must serialize access per key: two webhooks for the same call must never
// interleave mutations of one session. Access to disjoint keys is concurrent.
type SessionStore interface {
	// Get returns the session for callID, or nil when none exists.
	Get(ctx context.Context, callID string) (*CallSession, error)
	// Put creates or replaces the session for session.CallID.
	Put(ctx context.Context, session *CallSession) error
	// Delete removes the session. Missing keys are not an error.
	Delete(ctx context.Context, callID string) error
	// SweepExpired removes sessions orphaned by a provider hangup: idle
	// past their deadline plus grace. Returns the call IDs reaped so the
	// caller can release any per-call state of its own.
	SweepExpired(ctx context.Context, now time.Time, grace time.Duration) ([]string, error)
}
