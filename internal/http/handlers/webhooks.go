package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/conversation"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/crm"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/observability/metrics"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/recording"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/telephony"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/pkg/logging"
)

// Spoken lines for webhook failure paths. The caller always hears speech;
// Twilio treats non-TwiML error responses as dead air.
const (
	errorGoodbyeLine = "Sorry, there was an error. Goodbye."
	agentGoneLine    = "Sorry, this agent is not available. Goodbye."
)

// conversationEngine is the calling engine surface the webhook handlers use.
type conversationEngine interface {
	BeginCall(ctx context.Context, callID string, agent conversation.AgentProfile, contact conversation.Contact) (string, error)
	ProcessSpeech(ctx context.Context, callID, recognizedText string) (conversation.TurnResult, error)
	EndCall(ctx context.Context, callID string) (*conversation.CallSummary, error)
}

// chainTrigger fires the next campaign step after a campaign call ends.
type chainTrigger interface {
	Continue(ctx context.Context, campaignID, userID, completedCallID string)
}

// recordingArchiver moves a ready provider recording to durable storage.
type recordingArchiver interface {
	Archive(ctx context.Context, ev recording.ReadyEvent) error
}

// transcriptAnalyzer grades a finished transcript after the call ends.
type transcriptAnalyzer interface {
	Analyze(ctx context.Context, transcript []conversation.TranscriptEntry, objective string) (conversation.CallAnalysis, error)
}

// TwilioWebhookConfig wires a TwilioWebhookHandler.
type TwilioWebhookConfig struct {
	Engine   conversationEngine
	Agents   crm.AgentSource
	Calls    crm.CallRecords
	Chain    chainTrigger
	Archiver recordingArchiver
	// Analyzer grades finished transcripts. Nil disables analysis.
	Analyzer transcriptAnalyzer
	Metrics  *metrics.CallMetrics
	// BaseURL is the public origin rendered into gather action URLs.
	BaseURL string
	Logger  *logging.Logger
}

// TwilioWebhookHandler serves the four provider webhooks that drive a call:
// answer, speech, status transitions, and recording readiness. Every
// response is HTTP 200; a failure is expressed as spoken TwiML, never as an
// error status the provider would retry or misread.
type TwilioWebhookHandler struct {
	engine   conversationEngine
	agents   crm.AgentSource
	calls    crm.CallRecords
	chain    chainTrigger
	archiver recordingArchiver
	analyzer transcriptAnalyzer
	metrics  *metrics.CallMetrics
	baseURL  string
	logger   *logging.Logger
}

func NewTwilioWebhookHandler(cfg TwilioWebhookConfig) *TwilioWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &TwilioWebhookHandler{
		engine:   cfg.Engine,
		agents:   cfg.Agents,
		calls:    cfg.Calls,
		chain:    cfg.Chain,
		archiver: cfg.Archiver,
		analyzer: cfg.Analyzer,
		metrics:  cfg.Metrics,
		baseURL:  cfg.BaseURL,
		logger:   cfg.Logger,
	}
}

// HandleVoice is POST /webhooks/twilio/voice. Twilio calls it when the
// outbound call is answered; the response TwiML speaks the greeting and
// starts listening.
func (h *TwilioWebhookHandler) HandleVoice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("voice", time.Since(start).Seconds()) }()
	ctx := r.Context()

	callID := r.URL.Query().Get("callId")
	agentID := r.URL.Query().Get("agentId")
	if callID == "" || agentID == "" {
		h.logger.Warn("voice webhook missing identifiers")
		writeTwiML(w, telephony.RenderHangupMarkup(errorGoodbyeLine, ""))
		return
	}

	rec, err := h.calls.GetCall(ctx, callID)
	if err != nil {
		h.logger.Error("voice webhook unknown call", "call_id", callID, "error", err)
		writeTwiML(w, telephony.RenderHangupMarkup(errorGoodbyeLine, ""))
		return
	}

	agent, err := h.agents.GetAgent(ctx, rec.UserID, agentID)
	if err != nil {
		h.logger.Error("voice webhook agent lookup failed", "call_id", callID, "agent_id", agentID, "error", err)
		writeTwiML(w, telephony.RenderHangupMarkup(agentGoneLine, ""))
		return
	}

	contact := conversation.Contact{
		ID:      rec.ContactID,
		Name:    rec.ContactName,
		Company: rec.ContactCompany,
		Phone:   rec.ToNumber,
	}
	greeting, err := h.engine.BeginCall(ctx, callID, *agent, contact)
	if err != nil {
		h.logger.Error("begin call failed", "call_id", callID, "error", err)
		writeTwiML(w, telephony.RenderHangupMarkup(errorGoodbyeLine, agent.Voice))
		return
	}

	if err := h.calls.UpdateCallStatus(ctx, callID, telephony.StatusInProgress, r.PostFormValue("CallSid")); err != nil {
		h.logger.Warn("call status update failed", "call_id", callID, "error", err)
	}
	h.metrics.ObserveCallStarted()

	writeTwiML(w, telephony.RenderConversationMarkup(telephony.ConversationMarkupParams{
		BaseURL: h.baseURL,
		CallID:  callID,
		AgentID: agentID,
		Message: greeting,
		Voice:   agent.Voice,
	}))
}

// HandleGather is POST /webhooks/twilio/gather. Twilio posts the recognized
// speech of one turn; the response TwiML speaks the reply and either keeps
// listening or hangs up.
func (h *TwilioWebhookHandler) HandleGather(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("gather", time.Since(start).Seconds()) }()
	ctx := r.Context()

	callID := r.URL.Query().Get("callId")
	agentID := r.URL.Query().Get("agentId")
	if callID == "" || agentID == "" {
		writeTwiML(w, telephony.RenderHangupMarkup(errorGoodbyeLine, ""))
		return
	}

	speech := r.PostFormValue("SpeechResult")
	result, err := h.engine.ProcessSpeech(ctx, callID, speech)
	if err != nil {
		if errors.Is(err, conversation.ErrUnknownSession) {
			h.logger.Warn("gather for unknown session", "call_id", callID)
			writeTwiML(w, telephony.RenderRejectMarkup())
			return
		}
		h.logger.Error("speech processing failed", "call_id", callID, "error", err)
		writeTwiML(w, telephony.RenderHangupMarkup(errorGoodbyeLine, ""))
		return
	}

	if result.EndCall {
		h.metrics.ObserveTurn("end")
		// Respond before finalizing so the goodbye is spoken without
		// waiting on persistence or analysis.
		writeTwiML(w, telephony.RenderHangupMarkup(result.Reply, result.Voice))
		h.finalizeCall(ctx, callID, 0)
		return
	}

	h.metrics.ObserveTurn("reply")
	writeTwiML(w, telephony.RenderConversationMarkup(telephony.ConversationMarkupParams{
		BaseURL: h.baseURL,
		CallID:  callID,
		AgentID: agentID,
		Message: result.Reply,
		Voice:   result.Voice,
	}))
}

// HandleStatus is POST /webhooks/twilio/status. Twilio reports lifecycle
// transitions; a terminal status finalizes the session and, for campaign
// calls, fires the chain continuation.
func (h *TwilioWebhookHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("status", time.Since(start).Seconds()) }()
	ctx := r.Context()

	callID := r.URL.Query().Get("callId")
	if callID == "" {
		writeOK(w)
		return
	}

	status := telephony.MapProviderStatus(r.PostFormValue("CallStatus"))
	if err := h.calls.UpdateCallStatus(ctx, callID, status, r.PostFormValue("CallSid")); err != nil {
		h.logger.Warn("status update failed", "call_id", callID, "status", status, "error", err)
	}

	if telephony.IsTerminalStatus(status) {
		providerDuration, _ := strconv.Atoi(r.PostFormValue("CallDuration"))
		h.finalizeCall(ctx, callID, providerDuration)
		h.metrics.ObserveCallEnded(status)

		rec, err := h.calls.GetCall(ctx, callID)
		if err != nil {
			h.logger.Warn("terminal status for unknown call", "call_id", callID, "error", err)
		} else if rec.CampaignID != "" && h.chain != nil {
			h.chain.Continue(ctx, rec.CampaignID, rec.UserID, callID)
		}
	}

	writeOK(w)
}

// HandleRecording is POST /webhooks/twilio/recording. Twilio reports that
// call audio is ready for download.
func (h *TwilioWebhookHandler) HandleRecording(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("recording", time.Since(start).Seconds()) }()

	callID := r.URL.Query().Get("callId")
	if callID == "" || h.archiver == nil {
		writeOK(w)
		return
	}

	duration, _ := strconv.Atoi(r.PostFormValue("RecordingDuration"))
	ev := recording.ReadyEvent{
		CallID:          callID,
		RecordingURL:    r.PostFormValue("RecordingUrl"),
		RecordingSID:    r.PostFormValue("RecordingSid"),
		DurationSeconds: duration,
		Status:          r.PostFormValue("RecordingStatus"),
	}
	if ev.RecordingURL != "" {
		if err := h.archiver.Archive(r.Context(), ev); err != nil {
			h.logger.Error("recording archive failed", "call_id", callID, "error", err)
		}
	}
	writeOK(w)
}

// finalizeCall evicts the session and persists its transcript and cost.
// Safe to reach from both the gather end path and the status webhook; the
// second caller gets a nil summary and does nothing. The provider's billed
// duration wins over the session's own measure when it is reported.
func (h *TwilioWebhookHandler) finalizeCall(ctx context.Context, callID string, providerDuration int) {
	summary, err := h.engine.EndCall(ctx, callID)
	if err != nil {
		h.logger.Error("call finalization failed", "call_id", callID, "error", err)
		return
	}
	if summary == nil {
		return
	}
	duration := summary.DurationSeconds
	if providerDuration > 0 {
		duration = providerDuration
	}
	if err := h.calls.SaveCallOutcome(ctx, callID, crm.CallOutcome{
		Transcript:      summary.Transcript,
		TranscriptText:  summary.TranscriptText(),
		Cost:            summary.Cost,
		DurationSeconds: duration,
		EndedAt:         time.Now().UTC(),
	}); err != nil {
		h.logger.Error("call outcome save failed", "call_id", callID, "error", err)
	}

	h.analyzeCall(ctx, callID, summary.Transcript)
}

const analyzeTimeout = 10 * time.Second

// analyzeCall grades the finished transcript and attaches the result to the
// call record. Best effort: any failure is logged and the already-persisted
// transcript stands on its own.
func (h *TwilioWebhookHandler) analyzeCall(ctx context.Context, callID string, transcript []conversation.TranscriptEntry) {
	if h.analyzer == nil || len(transcript) == 0 {
		return
	}

	objective := ""
	if rec, err := h.calls.GetCall(ctx, callID); err == nil && rec.AgentID != "" {
		if agent, err := h.agents.GetAgent(ctx, rec.UserID, rec.AgentID); err == nil {
			objective = agent.Objective
		}
	}

	analyzeCtx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()
	analysis, err := h.analyzer.Analyze(analyzeCtx, transcript, objective)
	if err != nil {
		h.logger.Warn("call analysis failed", "call_id", callID, "error", err)
		return
	}
	if err := h.calls.SaveCallAnalysis(ctx, callID, analysis); err != nil {
		h.logger.Error("call analysis save failed", "call_id", callID, "error", err)
	}
}

func writeTwiML(w http.ResponseWriter, markup string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(markup)) //nolint:errcheck
}

func writeOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck
}
