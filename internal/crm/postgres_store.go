package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/conversation"
)

// PgxPool is the slice of pgxpool.Pool the store uses. pgxmock satisfies it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists agents, campaigns, and call records in Postgres.
type PostgresStore struct {
	pool PgxPool
}

func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("crm: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

// GetAgent fetches an active agent scoped to its owner.
func (s *PostgresStore) GetAgent(ctx context.Context, userID, agentID string) (*conversation.AgentProfile, error) {
	query := `
		SELECT id, name, system_prompt, greeting, objective, voice, model,
		       temperature, max_tokens, max_call_duration_seconds, max_turns,
		       end_call_phrases, knowledge_base, objection_responses
		FROM ai_agents
		WHERE id = $1 AND user_id = $2 AND is_active = true
	`
	row := s.pool.QueryRow(ctx, query, agentID, userID)

	var agent conversation.AgentProfile
	var knowledgeBase, objections []byte
	if err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.SystemPrompt,
		&agent.Greeting,
		&agent.Objective,
		&agent.Voice,
		&agent.Model,
		&agent.Temperature,
		&agent.MaxTokens,
		&agent.MaxCallDurationSeconds,
		&agent.MaxTurns,
		&agent.EndCallPhrases,
		&knowledgeBase,
		&objections,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("crm: select agent: %w", err)
	}
	if len(knowledgeBase) > 0 {
		if err := json.Unmarshal(knowledgeBase, &agent.KnowledgeBase); err != nil {
			return nil, fmt.Errorf("crm: agent knowledge base: %w", err)
		}
	}
	if len(objections) > 0 {
		if err := json.Unmarshal(objections, &agent.ObjectionResponses); err != nil {
			return nil, fmt.Errorf("crm: agent objection responses: %w", err)
		}
	}
	return &agent, nil
}

// GetCampaign fetches a campaign and its imported contact list scoped to
// its owner.
func (s *PostgresStore) GetCampaign(ctx context.Context, userID, campaignID string) (*Campaign, error) {
	query := `
		SELECT id, user_id, name, agent_id, status, contacts
		FROM ai_call_campaigns
		WHERE id = $1 AND user_id = $2
	`
	row := s.pool.QueryRow(ctx, query, campaignID, userID)

	var campaign Campaign
	var contacts []byte
	if err := row.Scan(
		&campaign.ID,
		&campaign.UserID,
		&campaign.Name,
		&campaign.AgentID,
		&campaign.Status,
		&contacts,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("crm: select campaign: %w", err)
	}
	if len(contacts) > 0 {
		if err := json.Unmarshal(contacts, &campaign.Contacts); err != nil {
			return nil, fmt.Errorf("crm: campaign contacts: %w", err)
		}
	}
	return &campaign, nil
}

func (s *PostgresStore) UpdateCampaignStatus(ctx context.Context, campaignID, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ai_call_campaigns SET status = $1, updated_at = now() WHERE id = $2`,
		status, campaignID)
	if err != nil {
		return fmt.Errorf("crm: update campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// CreateCall inserts a new call record and returns it with its generated ID.
func (s *PostgresStore) CreateCall(ctx context.Context, params NewCallParams) (*CallRecord, error) {
	id := uuid.New()
	query := `
		INSERT INTO ai_calls (id, user_id, direction, agent_id, campaign_id, contact_id,
		                      contact_name, contact_company, to_number, from_number, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := s.pool.QueryRow(ctx, query,
		id,
		params.UserID,
		params.Direction,
		nullable(params.AgentID),
		nullable(params.CampaignID),
		nullable(params.ContactID),
		params.ContactName,
		params.ContactCompany,
		params.ToNumber,
		params.FromNumber,
		params.Status,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("crm: insert call: %w", err)
	}

	return &CallRecord{
		ID:             id.String(),
		UserID:         params.UserID,
		Direction:      params.Direction,
		AgentID:        params.AgentID,
		CampaignID:     params.CampaignID,
		ContactID:      params.ContactID,
		ContactName:    params.ContactName,
		ContactCompany: params.ContactCompany,
		ToNumber:       params.ToNumber,
		FromNumber:     params.FromNumber,
		Status:         params.Status,
		CreatedAt:      createdAt,
	}, nil
}

func (s *PostgresStore) GetCall(ctx context.Context, callID string) (*CallRecord, error) {
	query := `
		SELECT id, user_id, direction, agent_id, campaign_id, contact_id,
		       contact_name, contact_company, to_number, from_number, status,
		       twilio_call_sid, duration_seconds, recording_url, created_at
		FROM ai_calls
		WHERE id = $1
	`
	row := s.pool.QueryRow(ctx, query, callID)

	var rec CallRecord
	var agentID, campaignID, contactID, providerSID, recordingURL *string
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Direction,
		&agentID,
		&campaignID,
		&contactID,
		&rec.ContactName,
		&rec.ContactCompany,
		&rec.ToNumber,
		&rec.FromNumber,
		&rec.Status,
		&providerSID,
		&rec.DurationSeconds,
		&recordingURL,
		&rec.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("crm: select call: %w", err)
	}
	rec.AgentID = deref(agentID)
	rec.CampaignID = deref(campaignID)
	rec.ContactID = deref(contactID)
	rec.ProviderCallSID = deref(providerSID)
	rec.RecordingURL = deref(recordingURL)
	return &rec, nil
}

// UpdateCallStatus advances the record's lifecycle status, attaching the
// provider SID when it is first known.
func (s *PostgresStore) UpdateCallStatus(ctx context.Context, callID, status, providerCallSID string) error {
	query := `
		UPDATE ai_calls
		SET status = $1,
		    twilio_call_sid = COALESCE(NULLIF($2, ''), twilio_call_sid)
		WHERE id = $3
	`
	tag, err := s.pool.Exec(ctx, query, status, providerCallSID, callID)
	if err != nil {
		return fmt.Errorf("crm: update call status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCallNotFound
	}
	return nil
}

// SaveCallOutcome writes the finalized transcript and cost exactly once at
// call end.
func (s *PostgresStore) SaveCallOutcome(ctx context.Context, callID string, outcome CallOutcome) error {
	transcriptJSON, err := json.Marshal(outcome.Transcript)
	if err != nil {
		return fmt.Errorf("crm: marshal transcript: %w", err)
	}
	costJSON, err := json.Marshal(outcome.Cost)
	if err != nil {
		return fmt.Errorf("crm: marshal cost: %w", err)
	}

	query := `
		UPDATE ai_calls
		SET transcript = $1,
		    transcript_json = $2,
		    cost_breakdown = $3,
		    duration_seconds = $4,
		    ended_at = $5
		WHERE id = $6
	`
	tag, err := s.pool.Exec(ctx, query,
		outcome.TranscriptText,
		transcriptJSON,
		costJSON,
		outcome.DurationSeconds,
		outcome.EndedAt,
		callID,
	)
	if err != nil {
		return fmt.Errorf("crm: save call outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCallNotFound
	}
	return nil
}

// SaveCallAnalysis writes the model's post-call read of the transcript.
// Callers treat failures as non-fatal; the transcript itself is already
// persisted by SaveCallOutcome.
func (s *PostgresStore) SaveCallAnalysis(ctx context.Context, callID string, analysis conversation.CallAnalysis) error {
	breakdownJSON, err := json.Marshal(analysis.ScoreBreakdown)
	if err != nil {
		return fmt.Errorf("crm: marshal score breakdown: %w", err)
	}
	objectionsJSON, err := json.Marshal(analysis.Objections)
	if err != nil {
		return fmt.Errorf("crm: marshal objections: %w", err)
	}
	topicsJSON, err := json.Marshal(analysis.Topics)
	if err != nil {
		return fmt.Errorf("crm: marshal topics: %w", err)
	}

	query := `
		UPDATE ai_calls
		SET summary = $1,
		    outcome = $2,
		    sentiment = $3,
		    ai_score = $4,
		    score_breakdown = $5,
		    objections_detected = $6,
		    key_topics = $7,
		    next_steps = $8
		WHERE id = $9
	`
	tag, err := s.pool.Exec(ctx, query,
		analysis.Summary,
		analysis.Outcome,
		analysis.Sentiment,
		analysis.Score,
		breakdownJSON,
		objectionsJSON,
		topicsJSON,
		analysis.NextSteps,
		callID,
	)
	if err != nil {
		return fmt.Errorf("crm: save call analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCallNotFound
	}
	return nil
}

func (s *PostgresStore) SaveCallRecording(ctx context.Context, callID string, rec RecordingInfo) error {
	query := `
		UPDATE ai_calls
		SET recording_url = $1,
		    recording_sid = $2,
		    recording_duration = $3,
		    recording_storage_path = $4
		WHERE id = $5
	`
	tag, err := s.pool.Exec(ctx, query,
		rec.URL,
		rec.SID,
		rec.DurationSeconds,
		rec.StoragePath,
		callID,
	)
	if err != nil {
		return fmt.Errorf("crm: save call recording: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCallNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
