package campaign

import (
	"time"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/conversation"
)

// Execution statuses for campaign progress.
const (
	StatusNotStarted = "not_started"
	StatusRunning    = "running"
	StatusCompleted  = "completed"
)

// Contact attempt outcomes.
const (
	OutcomeCalled = "called"
	OutcomeFailed = "failed"
)

// ContactOutcome records one attempted contact. Entries are append-only;
// a contact is attempted at most once.
type ContactOutcome struct {
	Contact     conversation.Contact `json:"contact"`
	CallID      string               `json:"call_id,omitempty"`
	Outcome     string               `json:"outcome"`
	Error       string               `json:"error,omitempty"`
	AttemptedAt time.Time            `json:"attempted_at"`
}

// Progress is the execution state of one campaign run. Contacts move from
// the FIFO pending queue to the called list exactly once, in order.
type Progress struct {
	CampaignID string `json:"campaign_id"`
	UserID     string `json:"user_id"`
	AgentID    string `json:"agent_id"`
	Status     string `json:"status"`

	Pending []conversation.Contact `json:"pending"`
	Called  []ContactOutcome       `json:"called"`

	// CurrentCallID is the single-writer guard for the chain: only the
	// completion of this call may advance the queue.
	CurrentCallID string `json:"current_call_id,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Revision guards conditional saves.
	Revision int64 `json:"revision"`
}

// Snapshot is the read-model returned to progress queries.
type Snapshot struct {
	CampaignID     string `json:"campaign_id"`
	Status         string `json:"status"`
	Total          int    `json:"total"`
	Called         int    `json:"called"`
	Failed         int    `json:"failed"`
	Remaining      int    `json:"remaining"`
	CurrentCallID  string `json:"current_call_id,omitempty"`
	CurrentContact string `json:"current_contact,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Snapshot derives the aggregate view of the run.
func (p *Progress) Snapshot() Snapshot {
	failed := 0
	current := ""
	for _, outcome := range p.Called {
		if outcome.Outcome == OutcomeFailed {
			failed++
		}
		if p.CurrentCallID != "" && outcome.CallID == p.CurrentCallID {
			current = outcome.Contact.Phone
		}
	}
	return Snapshot{
		CampaignID:     p.CampaignID,
		Status:         p.Status,
		Total:          len(p.Pending) + len(p.Called),
		Called:         len(p.Called),
		Failed:         failed,
		Remaining:      len(p.Pending),
		CurrentCallID:  p.CurrentCallID,
		CurrentContact: current,
		StartedAt:      p.StartedAt,
		CompletedAt:    p.CompletedAt,
	}
}
