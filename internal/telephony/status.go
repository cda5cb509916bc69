package telephony

// Internal call statuses persisted on the call record.
const (
	StatusQueued     = "queued"
	StatusRinging    = "ringing"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusNoAnswer   = "no_answer"
	StatusFailed     = "failed"
)

var providerStatusMap = map[string]string{
	"initiated":   StatusQueued,
	"queued":      StatusQueued,
	"ringing":     StatusRinging,
	"in-progress": StatusInProgress,
	"completed":   StatusCompleted,
	"busy":        StatusNoAnswer,
	"no-answer":   StatusNoAnswer,
	"canceled":    StatusFailed,
	"failed":      StatusFailed,
}

// MapProviderStatus converts a Twilio CallStatus value to the internal
// status vocabulary. Unknown values pass through unchanged so new provider
// statuses are stored rather than dropped.
func MapProviderStatus(providerStatus string) string {
	if mapped, ok := providerStatusMap[providerStatus]; ok {
		return mapped
	}
	return providerStatus
}

// IsTerminalStatus reports whether a status ends the call lifecycle.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusNoAnswer:
		return true
	}
	return false
}
