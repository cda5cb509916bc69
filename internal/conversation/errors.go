package conversation

import "errors"

var (
	// ErrUnknownSession means no live session exists for the call: the
	// answered webhook never fired, or the session already ended.
	ErrUnknownSession = errors.New("conversation: unknown session")

	// ErrSessionConflict means a session already exists for the call and
	// has progressed past its greeting, so a begin cannot be replayed.
	ErrSessionConflict = errors.New("conversation: session already exists")

	// ErrGenerationFailure wraps language-model errors. The orchestrator
	// recovers it locally with a scripted goodbye.
	ErrGenerationFailure = errors.New("conversation: reply generation failed")
)
