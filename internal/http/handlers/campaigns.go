package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/campaign"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/crm"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/http/middleware"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/pkg/logging"
)

// campaignRunner is the executor surface the campaign handlers use.
type campaignRunner interface {
	Start(ctx context.Context, userID, campaignID string) (campaign.StepResult, error)
	Continue(ctx context.Context, userID, campaignID, completedCallID string) (campaign.StepResult, error)
	Snapshot(ctx context.Context, userID, campaignID string) (campaign.Snapshot, error)
}

// CampaignHandlerConfig wires a CampaignHandler.
type CampaignHandlerConfig struct {
	Runner campaignRunner
	Logger *logging.Logger
}

// CampaignHandler serves the campaign execution endpoints. Execute accepts
// two kinds of callers: an authenticated user starting a campaign, and the
// engine's own status webhook trampolining the next dial after a campaign
// call ends.
type CampaignHandler struct {
	runner campaignRunner
	logger *logging.Logger
}

func NewCampaignHandler(cfg CampaignHandlerConfig) *CampaignHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &CampaignHandler{runner: cfg.Runner, logger: cfg.Logger}
}

type executeRequest struct {
	Action string `json:"action,omitempty"`
}

type executeResponse struct {
	Status  string `json:"status"`
	CallID  string `json:"callId,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// HandleExecute is POST /calling/campaigns/{campaignID}/execute.
func (h *CampaignHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	if middleware.IsChainCall(r.Context()) {
		h.handleChainExecute(w, r, campaignID)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req executeRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
	}
	action := req.Action
	if action == "" {
		action = "start"
	}

	var (
		result campaign.StepResult
		err    error
	)
	switch action {
	case "start":
		result, err = h.runner.Start(r.Context(), userID, campaignID)
	case "continue":
		result, err = h.runner.Continue(r.Context(), userID, campaignID, "")
	default:
		writeJSONError(w, http.StatusBadRequest, "unknown action: "+action)
		return
	}
	if err != nil {
		h.writeExecuteError(w, campaignID, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse(result))
}

// handleChainExecute serves the trampoline callback from the status webhook.
// The chain client ignores the response body; errors are logged, not
// surfaced, so a misfire never produces webhook retries upstream.
func (h *CampaignHandler) handleChainExecute(w http.ResponseWriter, r *http.Request, campaignID string) {
	var req campaign.ChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid chain payload")
		return
	}
	result, err := h.runner.Continue(r.Context(), req.UserID, campaignID, req.CompletedCallID)
	if err != nil {
		h.logger.Warn("campaign chain step failed", "campaign_id", campaignID, "error", err)
		writeJSON(w, http.StatusOK, executeResponse{Status: "error"})
		return
	}
	writeJSON(w, http.StatusOK, stepResponse(result))
}

// HandleProgress is GET /calling/campaigns/{campaignID}/progress.
func (h *CampaignHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	snap, err := h.runner.Snapshot(r.Context(), userID, campaignID)
	if err != nil {
		if errors.Is(err, crm.ErrCampaignNotFound) {
			writeJSONError(w, http.StatusNotFound, "campaign not found")
			return
		}
		h.logger.Error("campaign snapshot failed", "campaign_id", campaignID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "progress lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *CampaignHandler) writeExecuteError(w http.ResponseWriter, campaignID string, err error) {
	switch {
	case errors.Is(err, crm.ErrCampaignNotFound):
		writeJSONError(w, http.StatusNotFound, "campaign not found")
	case errors.Is(err, campaign.ErrAlreadyRunning):
		writeJSONError(w, http.StatusConflict, "campaign is already running")
	case errors.Is(err, campaign.ErrNotRunning):
		writeJSONError(w, http.StatusConflict, "campaign is not running")
	case errors.Is(err, campaign.ErrEmptyCampaign), strings.Contains(err.Error(), "no agent assigned"):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("campaign execute failed", "campaign_id", campaignID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "campaign execution failed")
	}
}

func stepResponse(result campaign.StepResult) executeResponse {
	switch {
	case result.Called:
		return executeResponse{Status: "calling", CallID: result.CallID, Contact: result.Contact}
	case result.Done:
		return executeResponse{Status: "completed"}
	default:
		return executeResponse{Status: "ignored"}
	}
}
