package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/crm"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/http/middleware"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/telephony"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/pkg/logging"
)

// outboundDialer places a provider call.
type outboundDialer interface {
	Dial(ctx context.Context, p telephony.DialParams) (telephony.DialResult, error)
}

// CallHandlerConfig wires a CallHandler.
type CallHandlerConfig struct {
	Agents crm.AgentSource
	Calls  crm.CallRecords
	Dialer outboundDialer
	Logger *logging.Logger
}

// CallHandler serves one-off outbound call requests outside of campaigns.
type CallHandler struct {
	agents crm.AgentSource
	calls  crm.CallRecords
	dialer outboundDialer
	logger *logging.Logger
}

func NewCallHandler(cfg CallHandlerConfig) *CallHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &CallHandler{
		agents: cfg.Agents,
		calls:  cfg.Calls,
		dialer: cfg.Dialer,
		logger: cfg.Logger,
	}
}

type outboundCallRequest struct {
	AgentID        string `json:"agentId"`
	To             string `json:"to"`
	ContactID      string `json:"contactId,omitempty"`
	ContactName    string `json:"contactName,omitempty"`
	ContactCompany string `json:"contactCompany,omitempty"`
}

type outboundCallResponse struct {
	CallID          string `json:"callId"`
	ProviderCallSID string `json:"providerCallSid"`
	Status          string `json:"status"`
}

// HandleOutboundCall is POST /calls/outbound. It creates the call record
// first so the voice webhook can find it, then dials.
func (h *CallHandler) HandleOutboundCall(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req outboundCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" || req.To == "" {
		writeJSONError(w, http.StatusBadRequest, "agentId and to are required")
		return
	}

	if _, err := h.agents.GetAgent(r.Context(), userID, req.AgentID); err != nil {
		if errors.Is(err, crm.ErrAgentNotFound) {
			writeJSONError(w, http.StatusNotFound, "agent not found")
			return
		}
		h.logger.Error("agent lookup failed", "agent_id", req.AgentID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "agent lookup failed")
		return
	}

	rec, err := h.calls.CreateCall(r.Context(), crm.NewCallParams{
		UserID:         userID,
		Direction:      "outbound",
		AgentID:        req.AgentID,
		ContactID:      req.ContactID,
		ContactName:    req.ContactName,
		ContactCompany: req.ContactCompany,
		ToNumber:       req.To,
		Status:         telephony.StatusQueued,
	})
	if err != nil {
		h.logger.Error("call record create failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "could not create call record")
		return
	}

	result, err := h.dialer.Dial(r.Context(), telephony.DialParams{
		To:      req.To,
		CallID:  rec.ID,
		AgentID: req.AgentID,
	})
	if err != nil {
		if uerr := h.calls.UpdateCallStatus(r.Context(), rec.ID, telephony.StatusFailed, ""); uerr != nil {
			h.logger.Warn("failed call status update failed", "call_id", rec.ID, "error", uerr)
		}
		if errors.Is(err, telephony.ErrNotConfigured) || errors.Is(err, telephony.ErrProviderUnavailable) {
			writeJSONError(w, http.StatusServiceUnavailable, "calling is not available right now")
			return
		}
		h.logger.Error("outbound dial failed", "call_id", rec.ID, "error", err)
		writeJSONError(w, http.StatusBadGateway, "dial failed")
		return
	}

	if err := h.calls.UpdateCallStatus(r.Context(), rec.ID, telephony.StatusRinging, result.ProviderCallSID); err != nil {
		h.logger.Warn("call status update failed", "call_id", rec.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, outboundCallResponse{
		CallID:          rec.ID,
		ProviderCallSID: result.ProviderCallSID,
		Status:          telephony.StatusRinging,
	})
}
