package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/campaign"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/crm"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/http/middleware"
)

type stubRunner struct {
	startResult    campaign.StepResult
	startErr       error
	continueResult campaign.StepResult
	continueErr    error
	snapshot       campaign.Snapshot
	snapshotErr    error

	startCalls      int
	continueCalls   int
	lastUserID      string
	lastCampaignID  string
	lastCompletedID string
}

func (s *stubRunner) Start(_ context.Context, userID, campaignID string) (campaign.StepResult, error) {
	s.startCalls++
	s.lastUserID = userID
	s.lastCampaignID = campaignID
	return s.startResult, s.startErr
}

func (s *stubRunner) Continue(_ context.Context, userID, campaignID, completedCallID string) (campaign.StepResult, error) {
	s.continueCalls++
	s.lastUserID = userID
	s.lastCampaignID = campaignID
	s.lastCompletedID = completedCallID
	return s.continueResult, s.continueErr
}

func (s *stubRunner) Snapshot(_ context.Context, userID, campaignID string) (campaign.Snapshot, error) {
	s.lastUserID = userID
	s.lastCampaignID = campaignID
	return s.snapshot, s.snapshotErr
}

func campaignRouter(runner *stubRunner) http.Handler {
	h := NewCampaignHandler(CampaignHandlerConfig{Runner: runner})
	r := chi.NewRouter()
	r.Post("/calling/campaigns/{campaignID}/execute", h.HandleExecute)
	r.Get("/calling/campaigns/{campaignID}/progress", h.HandleProgress)
	return r
}

func executeJSON(t *testing.T, router http.Handler, ctx context.Context, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/calling/campaigns/camp-1/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeExecute(t *testing.T, w *httptest.ResponseRecorder) executeResponse {
	t.Helper()
	var resp executeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHandleExecuteStart(t *testing.T) {
	runner := &stubRunner{startResult: campaign.StepResult{Called: true, CallID: "call-1", Contact: "Alex"}}
	router := campaignRouter(runner)

	w := executeJSON(t, router, middleware.WithUser(context.Background(), "user-1"), `{"action":"start"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := decodeExecute(t, w)
	if resp.Status != "calling" || resp.CallID != "call-1" || resp.Contact != "Alex" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if runner.startCalls != 1 || runner.lastUserID != "user-1" || runner.lastCampaignID != "camp-1" {
		t.Fatalf("runner not invoked with identity: %+v", runner)
	}
}

func TestHandleExecuteDefaultsToStart(t *testing.T) {
	runner := &stubRunner{startResult: campaign.StepResult{Done: true}}
	router := campaignRouter(runner)

	w := executeJSON(t, router, middleware.WithUser(context.Background(), "user-1"), "")

	resp := decodeExecute(t, w)
	if resp.Status != "completed" {
		t.Fatalf("status = %q, want completed", resp.Status)
	}
	if runner.startCalls != 1 {
		t.Fatalf("start calls = %d, want 1", runner.startCalls)
	}
}

func TestHandleExecuteWithoutIdentity(t *testing.T) {
	runner := &stubRunner{}
	router := campaignRouter(runner)

	w := executeJSON(t, router, context.Background(), `{"action":"start"}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if runner.startCalls != 0 {
		t.Fatalf("runner invoked without identity")
	}
}

func TestHandleExecuteErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", crm.ErrCampaignNotFound, http.StatusNotFound},
		{"already running", campaign.ErrAlreadyRunning, http.StatusConflict},
		{"empty", campaign.ErrEmptyCampaign, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &stubRunner{startErr: tc.err}
			router := campaignRouter(runner)

			w := executeJSON(t, router, middleware.WithUser(context.Background(), "user-1"), `{"action":"start"}`)

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestHandleExecuteChainCall(t *testing.T) {
	runner := &stubRunner{continueResult: campaign.StepResult{Called: true, CallID: "call-2", Contact: "Blake"}}
	router := campaignRouter(runner)

	w := executeJSON(t, router, middleware.WithChainCall(context.Background()),
		`{"userId":"user-1","completedCallId":"call-1"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decodeExecute(t, w)
	if resp.Status != "calling" || resp.CallID != "call-2" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if runner.continueCalls != 1 || runner.lastUserID != "user-1" || runner.lastCompletedID != "call-1" {
		t.Fatalf("chain identity not forwarded: %+v", runner)
	}
}

func TestHandleExecuteChainCallStaleIsIgnored(t *testing.T) {
	// A zero StepResult is the executor's stale-callback no-op.
	runner := &stubRunner{}
	router := campaignRouter(runner)

	w := executeJSON(t, router, middleware.WithChainCall(context.Background()),
		`{"userId":"user-1","completedCallId":"call-stale"}`)

	resp := decodeExecute(t, w)
	if resp.Status != "ignored" {
		t.Fatalf("status = %q, want ignored", resp.Status)
	}
}

func TestHandleExecuteChainCallErrorStaysOK(t *testing.T) {
	runner := &stubRunner{continueErr: campaign.ErrNotRunning}
	router := campaignRouter(runner)

	w := executeJSON(t, router, middleware.WithChainCall(context.Background()),
		`{"userId":"user-1","completedCallId":"call-1"}`)

	// The trampoline caller never retries; errors must not look like ones.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decodeExecute(t, w)
	if resp.Status != "error" {
		t.Fatalf("status = %q, want error", resp.Status)
	}
}

func TestHandleProgress(t *testing.T) {
	runner := &stubRunner{snapshot: campaign.Snapshot{
		CampaignID: "camp-1",
		Status:     campaign.StatusRunning,
		Total:      5,
		Called:     2,
		Remaining:  3,
	}}
	router := campaignRouter(runner)

	req := httptest.NewRequest(http.MethodGet, "/calling/campaigns/camp-1/progress", nil)
	req = req.WithContext(middleware.WithUser(context.Background(), "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var snap campaign.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Status != campaign.StatusRunning || snap.Remaining != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestHandleProgressUnknownCampaign(t *testing.T) {
	runner := &stubRunner{snapshotErr: crm.ErrCampaignNotFound}
	router := campaignRouter(runner)

	req := httptest.NewRequest(http.MethodGet, "/calling/campaigns/ghost/progress", nil)
	req = req.WithContext(middleware.WithUser(context.Background(), "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
