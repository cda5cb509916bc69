package conversation

import (
	"strings"
	"time"
)

// Call lifecycle statuses shared with the persisted call record.
const (
	CallStatusRinging    = "ringing"
	CallStatusInProgress = "in_progress"
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
)

// Transcript speakers.
const (
	SpeakerAgent   = "agent"
	SpeakerContact = "contact"
)

// AgentProfile is the immutable snapshot of an AI agent's configuration
// taken at call start. Later edits to the agent never affect a live call.
type AgentProfile struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	SystemPrompt string  `json:"system_prompt"`
	Greeting     string  `json:"greeting"`
	Objective    string  `json:"objective,omitempty"`
	Voice        string  `json:"voice,omitempty"`
	Model        string  `json:"model,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
	MaxTokens    int32   `json:"max_tokens,omitempty"`

	// MaxCallDurationSeconds caps total call length. Zero means the
	// default of 300 seconds.
	MaxCallDurationSeconds int `json:"max_call_duration_seconds,omitempty"`
	// MaxTurns caps contact utterances processed. Zero means the default of 50.
	MaxTurns int `json:"max_turns,omitempty"`
	// EndCallPhrases terminate the call when heard, matched as
	// case-insensitive substrings in configured order.
	EndCallPhrases []string `json:"end_call_phrases,omitempty"`

	KnowledgeBase      []KnowledgeEntry  `json:"knowledge_base,omitempty"`
	ObjectionResponses map[string]string `json:"objection_responses,omitempty"`
}

// KnowledgeEntry is a snippet of reference material injected into the
// system prompt.
type KnowledgeEntry struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

const (
	defaultMaxCallDuration = 300 * time.Second
	defaultMaxTurns        = 50
)

// MaxCallDuration returns the configured duration cap, or the default.
func (p AgentProfile) MaxCallDuration() time.Duration {
	if p.MaxCallDurationSeconds > 0 {
		return time.Duration(p.MaxCallDurationSeconds) * time.Second
	}
	return defaultMaxCallDuration
}

// TurnCeiling returns the configured turn cap, or the default.
func (p AgentProfile) TurnCeiling() int {
	if p.MaxTurns > 0 {
		return p.MaxTurns
	}
	return defaultMaxTurns
}

// Contact carries optional context about the person being called, used for
// greeting and prompt personalization.
type Contact struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// TranscriptEntry is a single turn in a call transcript. Entries are
// append-only and kept in chronological order.
type TranscriptEntry struct {
	Speaker       string  `json:"speaker"`
	Text          string  `json:"text"`
	OffsetSeconds float64 `json:"timestamp"`
}

// CostBreakdown accumulates provider-billed units over the life of a call.
// Fields only ever grow.
type CostBreakdown struct {
	Telephony float64 `json:"telephony"`
	STT       float64 `json:"stt"`
	LLM       float64 `json:"llm"`
	TTS       float64 `json:"tts"`
	Total     float64 `json:"total"`
}

// CallSession is the live dialogue state for one in-progress call. It exists
// in the session store from answer until finalization; the durable call
// record is the source of truth afterward.
type CallSession struct {
	CallID  string       `json:"call_id"`
	Agent   AgentProfile `json:"agent"`
	Contact Contact      `json:"contact"`

	Transcript []TranscriptEntry `json:"transcript"`
	Messages   []ChatMessage     `json:"messages"`

	// TurnCount increments once per contact utterance processed. Empty
	// reprompts do not count.
	TurnCount int `json:"turn_count"`
	// EmptyStreak counts consecutive empty speech results; two in a row
	// end the call.
	EmptyStreak int `json:"empty_streak"`

	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TTSChars     int64 `json:"tts_chars"`

	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	// Deadline is computed once at call start from the agent's duration
	// cap and checked on every speech event.
	Deadline       time.Time `json:"deadline"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// NewCallSession seeds a session at answer time.
func NewCallSession(callID string, agent AgentProfile, contact Contact, now time.Time) *CallSession {
	return &CallSession{
		CallID:         callID,
		Agent:          agent,
		Contact:        contact,
		Status:         CallStatusInProgress,
		StartedAt:      now,
		Deadline:       now.Add(agent.MaxCallDuration()),
		LastActivityAt: now,
	}
}

// AppendTurn records one utterance and mirrors it into the chat history the
// turn processor consumes.
func (s *CallSession) AppendTurn(speaker, text string, now time.Time) {
	s.Transcript = append(s.Transcript, TranscriptEntry{
		Speaker:       speaker,
		Text:          text,
		OffsetSeconds: now.Sub(s.StartedAt).Seconds(),
	})
	role := ChatRoleUser
	if speaker == SpeakerAgent {
		role = ChatRoleAssistant
	}
	s.Messages = append(s.Messages, ChatMessage{Role: role, Content: text})
	s.LastActivityAt = now
}

// Expired reports whether the session has been idle long enough to reap:
// past its deadline plus the grace period with no activity.
func (s *CallSession) Expired(now time.Time, grace time.Duration) bool {
	return now.After(s.Deadline.Add(grace)) && now.Sub(s.LastActivityAt) > grace
}

// CallSummary is the finalized output of a call, handed to the caller for
// persistence when the session is evicted.
type CallSummary struct {
	CallID          string            `json:"call_id"`
	Transcript      []TranscriptEntry `json:"transcript"`
	Cost            CostBreakdown     `json:"cost_breakdown"`
	DurationSeconds int               `json:"duration_seconds"`
}

// TranscriptText flattens the transcript into the "speaker: text" lines
// stored on the call record.
func (s CallSummary) TranscriptText() string {
	lines := make([]string, 0, len(s.Transcript))
	for _, e := range s.Transcript {
		lines = append(lines, e.Speaker+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}
