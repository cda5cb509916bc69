package crm

import (
	"time"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/conversation"
)

// Campaign statuses.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
)

// Campaign is a calling campaign: an agent plus an imported contact list.
type Campaign struct {
	ID       string                 `json:"id"`
	UserID   string                 `json:"user_id"`
	Name     string                 `json:"name"`
	AgentID  string                 `json:"agent_id"`
	Status   string                 `json:"status"`
	Contacts []conversation.Contact `json:"contacts"`
}

// CallRecord is the durable row for one call. The live dialogue state lives
// in the session store; this record is the source of truth after the call.
type CallRecord struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	Direction       string `json:"direction"`
	AgentID         string `json:"agent_id,omitempty"`
	CampaignID      string `json:"campaign_id,omitempty"`
	ContactID       string `json:"contact_id,omitempty"`
	ContactName     string `json:"contact_name,omitempty"`
	ContactCompany  string `json:"contact_company,omitempty"`
	ToNumber        string `json:"to_number"`
	FromNumber      string `json:"from_number,omitempty"`
	Status          string `json:"status"`
	ProviderCallSID string `json:"twilio_call_sid,omitempty"`

	DurationSeconds int                            `json:"duration_seconds,omitempty"`
	Transcript      string                         `json:"transcript,omitempty"`
	TranscriptJSON  []conversation.TranscriptEntry `json:"transcript_json,omitempty"`
	CostBreakdown   *conversation.CostBreakdown    `json:"cost_breakdown,omitempty"`

	RecordingURL      string `json:"recording_url,omitempty"`
	RecordingSID      string `json:"recording_sid,omitempty"`
	RecordingDuration int    `json:"recording_duration,omitempty"`

	// Post-call analysis, written best-effort after the outcome.
	Summary            string                       `json:"summary,omitempty"`
	Outcome            string                       `json:"outcome,omitempty"`
	Sentiment          string                       `json:"sentiment,omitempty"`
	AIScore            int                          `json:"ai_score,omitempty"`
	ScoreBreakdown     *conversation.ScoreBreakdown `json:"score_breakdown,omitempty"`
	ObjectionsDetected []string                     `json:"objections_detected,omitempty"`
	KeyTopics          []string                     `json:"key_topics,omitempty"`
	NextSteps          string                       `json:"next_steps,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// NewCallParams are the fields settable at call creation.
type NewCallParams struct {
	UserID         string
	Direction      string
	AgentID        string
	CampaignID     string
	ContactID      string
	ContactName    string
	ContactCompany string
	ToNumber       string
	FromNumber     string
	Status         string
}

// CallOutcome carries the finalized transcript and cost written once at
// call end.
type CallOutcome struct {
	Transcript      []conversation.TranscriptEntry
	TranscriptText  string
	Cost            conversation.CostBreakdown
	DurationSeconds int
	EndedAt         time.Time
}

// RecordingInfo is persisted when the archived recording is ready.
type RecordingInfo struct {
	URL             string
	SID             string
	DurationSeconds int
	StoragePath     string
}
