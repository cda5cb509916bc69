package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/pkg/logging"
)

// Fixed spoken lines. Turn logic must always resolve to speech; a live call
// is never left hanging on an internal error.
const (
	repromptLine       = "I'm sorry, I didn't catch that. Could you say that again?"
	silenceGoodbyeLine = "It seems like now isn't a good time. Thank you for your time. Goodbye!"
	wrapUpLine         = "I appreciate your time. I need to wrap up, but I'd love to continue this conversation. Can I call you back?"
	endPhraseLine      = "I understand. Thank you for your time today. Have a great day!"
	fallbackLine       = "Let me get back to you on that. Thanks for your time, goodbye."
)

const maxEmptyReprompts = 2

// defaultTurnTimeout bounds one model completion. Twilio abandons a webhook
// that takes longer than 15 seconds, so the reply must resolve well inside
// that.
const defaultTurnTimeout = 8 * time.Second

// TurnResult is the outcome of one speech event: what the agent says next,
// the voice to synthesize it with, and whether the call ends after saying it.
type TurnResult struct {
	Reply   string
	Voice   string
	EndCall bool
}

// Orchestrator drives a call through its turn-based state machine. Each
// webhook invocation is stateless; all dialogue state lives in the
// SessionStore. Access is serialized per call ID.
type Orchestrator struct {
	store       SessionStore
	turns       *TurnProcessor
	logger      *logging.Logger
	turnTimeout time.Duration

	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// OrchestratorConfig configures the Orchestrator.
type OrchestratorConfig struct {
	Store         SessionStore
	TurnProcessor *TurnProcessor
	Logger        *logging.Logger
	// TurnTimeout bounds a single reply generation. Zero uses the default;
	// a completion that overruns it resolves as a generation failure and
	// the call ends on the scripted fallback instead of dead air.
	TurnTimeout time.Duration
	// Now overrides the clock for tests.
	Now func() time.Time
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = defaultTurnTimeout
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{
		store:       cfg.Store,
		turns:       cfg.TurnProcessor,
		logger:      cfg.Logger,
		turnTimeout: cfg.TurnTimeout,
		now:         now,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockCall serializes webhook processing per call ID: a second webhook for
// a call already mid-turn queues behind the first.
func (o *Orchestrator) lockCall(callID string) func() {
	o.mu.Lock()
	l, ok := o.locks[callID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[callID] = l
	}
	o.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (o *Orchestrator) dropLock(callID string) {
	o.mu.Lock()
	delete(o.locks, callID)
	o.mu.Unlock()
}

func (o *Orchestrator) lockCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.locks)
}

// BeginCall creates the session for an answered call and returns the
// rendered greeting for speech synthesis. A retry of an already-begun call
// returns the cached greeting without appending a duplicate turn; a begin
// against a call that has progressed past its greeting is a conflict.
func (o *Orchestrator) BeginCall(ctx context.Context, callID string, agent AgentProfile, contact Contact) (string, error) {
	unlock := o.lockCall(callID)
	defer unlock()

	existing, err := o.store.Get(ctx, callID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if existing.TurnCount == 0 && len(existing.Transcript) == 1 {
			return existing.Transcript[0].Text, nil
		}
		return "", fmt.Errorf("%w: call %s", ErrSessionConflict, callID)
	}

	now := o.now()
	session := NewCallSession(callID, agent, contact, now)
	greeting := RenderGreeting(agent, contact)
	session.AppendTurn(SpeakerAgent, greeting, now)
	session.TTSChars += int64(len(greeting))

	if err := o.store.Put(ctx, session); err != nil {
		return "", err
	}

	o.logger.Info("call session started",
		"call_id", callID,
		"agent_id", agent.ID,
		"deadline", session.Deadline,
	)
	return greeting, nil
}

// ProcessSpeech runs one turn of the conversation. Empty recognized text is
// a valid input: it triggers a reprompt, and two consecutive empties end
// the call. End conditions are evaluated before the model is invoked so a
// terminating call never pays for a reply it will not use.
func (o *Orchestrator) ProcessSpeech(ctx context.Context, callID, recognizedText string) (TurnResult, error) {
	unlock := o.lockCall(callID)
	defer unlock()

	session, err := o.store.Get(ctx, callID)
	if err != nil {
		return TurnResult{}, err
	}
	if session == nil {
		// No session will ever exist for this call again; the lock entry
		// would otherwise outlive it.
		o.dropLock(callID)
		return TurnResult{}, fmt.Errorf("%w: call %s", ErrUnknownSession, callID)
	}

	voice := session.Agent.Voice
	now := o.now()
	recognizedText = strings.TrimSpace(recognizedText)

	if recognizedText == "" {
		session.EmptyStreak++
		if session.EmptyStreak >= maxEmptyReprompts {
			session.AppendTurn(SpeakerAgent, silenceGoodbyeLine, now)
			_ = o.store.Put(ctx, session)
			o.logger.Info("ending call after consecutive empty speech", "call_id", callID)
			return TurnResult{Reply: silenceGoodbyeLine, Voice: voice, EndCall: true}, nil
		}
		session.LastActivityAt = now
		if err := o.store.Put(ctx, session); err != nil {
			return TurnResult{}, err
		}
		return TurnResult{Reply: repromptLine, Voice: voice, EndCall: false}, nil
	}
	session.EmptyStreak = 0

	if now.After(session.Deadline) {
		session.AppendTurn(SpeakerContact, recognizedText, now)
		session.AppendTurn(SpeakerAgent, wrapUpLine, now)
		_ = o.store.Put(ctx, session)
		o.logger.Info("ending call at duration cap", "call_id", callID)
		return TurnResult{Reply: wrapUpLine, Voice: voice, EndCall: true}, nil
	}

	matcher := NewEndPhraseMatcher(session.Agent.EndCallPhrases)
	if phrase := matcher.Match(recognizedText); phrase != "" {
		session.AppendTurn(SpeakerContact, recognizedText, now)
		session.TurnCount++
		session.AppendTurn(SpeakerAgent, endPhraseLine, now)
		_ = o.store.Put(ctx, session)
		o.logger.Info("ending call on end phrase", "call_id", callID, "phrase", phrase)
		return TurnResult{Reply: endPhraseLine, Voice: voice, EndCall: true}, nil
	}

	session.AppendTurn(SpeakerContact, recognizedText, now)
	session.TurnCount++

	if session.TurnCount > session.Agent.TurnCeiling() {
		session.AppendTurn(SpeakerAgent, wrapUpLine, now)
		_ = o.store.Put(ctx, session)
		o.logger.Info("ending call at turn ceiling", "call_id", callID, "turns", session.TurnCount)
		return TurnResult{Reply: wrapUpLine, Voice: voice, EndCall: true}, nil
	}

	turnCtx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	reply, err := o.turns.NextReply(turnCtx, session)
	cancel()
	if err != nil {
		// Recover locally: speak a scripted goodbye instead of leaving
		// the caller in silence. A timed-out completion lands here too.
		o.logger.Error("reply generation failed", "call_id", callID, "error", err)
		session.AppendTurn(SpeakerAgent, fallbackLine, o.now())
		_ = o.store.Put(ctx, session)
		return TurnResult{Reply: fallbackLine, Voice: voice, EndCall: true}, nil
	}

	session.AppendTurn(SpeakerAgent, reply, o.now())
	if err := o.store.Put(ctx, session); err != nil {
		return TurnResult{}, err
	}
	return TurnResult{Reply: reply, Voice: voice, EndCall: false}, nil
}

// EndCall finalizes and evicts the session, returning the accumulated
// transcript and cost for persistence. Duplicate end signals are a no-op
// returning nil.
func (o *Orchestrator) EndCall(ctx context.Context, callID string) (*CallSummary, error) {
	unlock := o.lockCall(callID)
	defer func() {
		unlock()
		o.dropLock(callID)
	}()

	session, err := o.store.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	duration := o.now().Sub(session.StartedAt)
	if duration < 0 {
		duration = 0
	}
	summary := &CallSummary{
		CallID:          callID,
		Transcript:      session.Transcript,
		Cost:            computeCost(session, duration),
		DurationSeconds: int(duration.Round(time.Second).Seconds()),
	}

	if err := o.store.Delete(ctx, callID); err != nil {
		return nil, err
	}

	o.logger.Info("call session finalized",
		"call_id", callID,
		"turns", session.TurnCount,
		"duration_seconds", summary.DurationSeconds,
		"total_cost", summary.Cost.Total,
	)
	return summary, nil
}

// SweepExpired reaps sessions orphaned by provider hangups. Run it
// periodically; unbounded growth is otherwise guaranteed under sustained
// campaign volume.
func (o *Orchestrator) SweepExpired(ctx context.Context, grace time.Duration) (int, error) {
	reaped, err := o.store.SweepExpired(ctx, o.now(), grace)
	if err != nil {
		return 0, err
	}
	for _, callID := range reaped {
		o.dropLock(callID)
	}
	if len(reaped) > 0 {
		o.logger.Warn("reaped orphaned call sessions", "count", len(reaped))
	}
	return len(reaped), nil
}
