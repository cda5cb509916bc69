package crm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/conversation"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewPostgresStore(mock)
}

func TestGetAgent(t *testing.T) {
	mock, store := newMockStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "name", "system_prompt", "greeting", "objective", "voice", "model",
		"temperature", "max_tokens", "max_call_duration_seconds", "max_turns",
		"end_call_phrases", "knowledge_base", "objection_responses",
	}).AddRow(
		"agent-1", "Jordan", "You sell software.", "Hi there", "Book a demo", "Polly.Matthew", "",
		float32(0.7), int32(150), 300, 50,
		[]string{"not interested"},
		[]byte(`[{"source":"pricing","content":"Starter is $49."}]`),
		[]byte(`{"too expensive":"Mention starter."}`),
	)
	mock.ExpectQuery("SELECT (.+) FROM ai_agents").
		WithArgs("agent-1", "user-1").
		WillReturnRows(rows)

	agent, err := store.GetAgent(context.Background(), "user-1", "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if agent.Name != "Jordan" {
		t.Errorf("name: %q", agent.Name)
	}
	if len(agent.KnowledgeBase) != 1 || agent.KnowledgeBase[0].Source != "pricing" {
		t.Errorf("knowledge base: %+v", agent.KnowledgeBase)
	}
	if agent.ObjectionResponses["too expensive"] == "" {
		t.Errorf("objection responses: %+v", agent.ObjectionResponses)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM ai_agents").
		WithArgs("ghost", "user-1").
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.GetAgent(context.Background(), "user-1", "ghost"); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestGetCampaign(t *testing.T) {
	mock, store := newMockStore(t)

	rows := pgxmock.NewRows([]string{"id", "user_id", "name", "agent_id", "status", "contacts"}).
		AddRow("camp-1", "user-1", "Q3 outreach", "agent-1", "draft",
			[]byte(`[{"name":"Alex","phone":"+15555550100","company":"Acme"}]`))
	mock.ExpectQuery("SELECT (.+) FROM ai_call_campaigns").
		WithArgs("camp-1", "user-1").
		WillReturnRows(rows)

	campaign, err := store.GetCampaign(context.Background(), "user-1", "camp-1")
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if len(campaign.Contacts) != 1 || campaign.Contacts[0].Name != "Alex" {
		t.Errorf("contacts: %+v", campaign.Contacts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateCall(t *testing.T) {
	mock, store := newMockStore(t)

	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO ai_calls").
		WithArgs(pgxmock.AnyArg(), "user-1", "outbound", pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), "Alex", "Acme", "+15555550100", "+15555550000", "queued").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	rec, err := store.CreateCall(context.Background(), NewCallParams{
		UserID:         "user-1",
		Direction:      "outbound",
		AgentID:        "agent-1",
		CampaignID:     "camp-1",
		ContactName:    "Alex",
		ContactCompany: "Acme",
		ToNumber:       "+15555550100",
		FromNumber:     "+15555550000",
		Status:         "queued",
	})
	if err != nil {
		t.Fatalf("create call: %v", err)
	}
	if rec.ID == "" {
		t.Error("missing generated id")
	}
	if !rec.CreatedAt.Equal(createdAt) {
		t.Errorf("created_at: %v", rec.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateCallStatus(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE ai_calls").
		WithArgs("ringing", "CA123", "call-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.UpdateCallStatus(context.Background(), "call-1", "ringing", "CA123"); err != nil {
		t.Fatalf("update status: %v", err)
	}

	mock.ExpectExec("UPDATE ai_calls").
		WithArgs("completed", "", "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.UpdateCallStatus(context.Background(), "ghost", "completed", ""); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestSaveCallOutcome(t *testing.T) {
	mock, store := newMockStore(t)

	endedAt := time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE ai_calls").
		WithArgs("agent: Hi Alex", pgxmock.AnyArg(), pgxmock.AnyArg(), 63, endedAt, "call-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.SaveCallOutcome(context.Background(), "call-1", CallOutcome{
		Transcript:      []conversation.TranscriptEntry{{Speaker: "agent", Text: "Hi Alex"}},
		TranscriptText:  "agent: Hi Alex",
		Cost:            conversation.CostBreakdown{Total: 0.05},
		DurationSeconds: 63,
		EndedAt:         endedAt,
	})
	if err != nil {
		t.Fatalf("save outcome: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveCallAnalysis(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE ai_calls").
		WithArgs("Contact agreed to a demo.", "meeting_booked", "positive", 82,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "Send an invite.", "call-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.SaveCallAnalysis(context.Background(), "call-1", conversation.CallAnalysis{
		Summary:        "Contact agreed to a demo.",
		Outcome:        conversation.OutcomeMeetingBooked,
		Sentiment:      "positive",
		Score:          82,
		ScoreBreakdown: conversation.ScoreBreakdown{Overall: 82},
		Objections:     []string{"too expensive"},
		Topics:         []string{"pricing"},
		NextSteps:      "Send an invite.",
	})
	if err != nil {
		t.Fatalf("save analysis: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveCallAnalysisUnknownCall(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE ai_calls").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SaveCallAnalysis(context.Background(), "ghost", conversation.CallAnalysis{})
	if !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("err: got %v, want ErrCallNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveCallRecording(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE ai_calls").
		WithArgs("https://cdn.example.com/rec.mp3", "RE123", 63, "recordings/call-1/RE123.mp3", "call-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.SaveCallRecording(context.Background(), "call-1", RecordingInfo{
		URL:             "https://cdn.example.com/rec.mp3",
		SID:             "RE123",
		DurationSeconds: 63,
		StoragePath:     "recordings/call-1/RE123.mp3",
	})
	if err != nil {
		t.Fatalf("save recording: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
