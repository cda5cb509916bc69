package crm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/conversation"
)

func TestMemoryStoreCallLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, err := store.CreateCall(ctx, NewCallParams{
		UserID:      "user-1",
		Direction:   "outbound",
		ContactName: "Alex",
		ToNumber:    "+15555550100",
		Status:      "queued",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.UpdateCallStatus(ctx, rec.ID, "ringing", "CA123"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := store.SaveCallOutcome(ctx, rec.ID, CallOutcome{
		TranscriptText:  "agent: hi",
		Cost:            conversation.CostBreakdown{Total: 0.02},
		DurationSeconds: 30,
		EndedAt:         time.Now(),
	}); err != nil {
		t.Fatalf("save outcome: %v", err)
	}
	if err := store.SaveCallRecording(ctx, rec.ID, RecordingInfo{URL: "u", SID: "RE1"}); err != nil {
		t.Fatalf("save recording: %v", err)
	}
	if err := store.SaveCallAnalysis(ctx, rec.ID, conversation.CallAnalysis{
		Summary:        "Short call.",
		Outcome:        conversation.OutcomeInterested,
		Sentiment:      "positive",
		Score:          70,
		ScoreBreakdown: conversation.ScoreBreakdown{Overall: 70},
		Topics:         []string{"pricing"},
	}); err != nil {
		t.Fatalf("save analysis: %v", err)
	}

	got, err := store.GetCall(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "ringing" || got.ProviderCallSID != "CA123" {
		t.Errorf("status not applied: %+v", got)
	}
	if got.CostBreakdown == nil || got.CostBreakdown.Total != 0.02 {
		t.Errorf("cost not saved: %+v", got.CostBreakdown)
	}
	if got.RecordingSID != "RE1" {
		t.Errorf("recording not saved: %+v", got)
	}
	if got.Outcome != conversation.OutcomeInterested || got.AIScore != 70 {
		t.Errorf("analysis not saved: %+v", got)
	}
	if got.ScoreBreakdown == nil || got.ScoreBreakdown.Overall != 70 {
		t.Errorf("score breakdown not saved: %+v", got.ScoreBreakdown)
	}
}

func TestMemoryStoreScoping(t *testing.T) {
	store := NewMemoryStore()
	store.PutCampaign(Campaign{ID: "camp-1", UserID: "owner"})

	if _, err := store.GetCampaign(context.Background(), "other", "camp-1"); !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("campaign must be owner-scoped, got %v", err)
	}
	if _, err := store.GetAgent(context.Background(), "owner", "ghost"); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}
