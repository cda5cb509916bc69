package crm

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/conversation"
)

// MemoryStore is an in-memory implementation of the CRM contracts, used in
// tests and for running the engine without a database.
type MemoryStore struct {
	mu        sync.Mutex
	agents    map[string]conversation.AgentProfile
	campaigns map[string]Campaign
	calls     map[string]CallRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:    make(map[string]conversation.AgentProfile),
		campaigns: make(map[string]Campaign),
		calls:     make(map[string]CallRecord),
	}
}

func (s *MemoryStore) PutAgent(agent conversation.AgentProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent
}

func (s *MemoryStore) PutCampaign(campaign Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[campaign.ID] = campaign
}

func (s *MemoryStore) GetAgent(_ context.Context, _, agentID string) (*conversation.AgentProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return &agent, nil
}

func (s *MemoryStore) GetCampaign(_ context.Context, userID, campaignID string) (*Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[campaignID]
	if !ok || campaign.UserID != userID {
		return nil, ErrCampaignNotFound
	}
	return &campaign, nil
}

func (s *MemoryStore) UpdateCampaignStatus(_ context.Context, campaignID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return ErrCampaignNotFound
	}
	campaign.Status = status
	s.campaigns[campaignID] = campaign
	return nil
}

func (s *MemoryStore) CreateCall(_ context.Context, params NewCallParams) (*CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := CallRecord{
		ID:             uuid.New().String(),
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
	}
	s.calls[rec.ID] = rec
	return &rec, nil
}

func (s *MemoryStore) GetCall(_ context.Context, callID string) (*CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.calls[callID]
	if !ok {
		return nil, ErrCallNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) UpdateCallStatus(_ context.Context, callID, status, providerCallSID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.calls[callID]
	if !ok {
		return ErrCallNotFound
	}
	rec.Status = status
	if providerCallSID != "" {
		rec.ProviderCallSID = providerCallSID
	}
	s.calls[callID] = rec
	return nil
}

func (s *MemoryStore) SaveCallOutcome(_ context.Context, callID string, outcome CallOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.calls[callID]
	if !ok {
		return ErrCallNotFound
	}
	rec.TranscriptJSON = outcome.Transcript
	rec.Transcript = outcome.TranscriptText
	cost := outcome.Cost
	rec.CostBreakdown = &cost
	rec.DurationSeconds = outcome.DurationSeconds
	endedAt := outcome.EndedAt
	rec.EndedAt = &endedAt
	s.calls[callID] = rec
	return nil
}

func (s *MemoryStore) SaveCallAnalysis(_ context.Context, callID string, analysis conversation.CallAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.calls[callID]
	if !ok {
		return ErrCallNotFound
	}
	rec.Summary = analysis.Summary
	rec.Outcome = analysis.Outcome
	rec.Sentiment = analysis.Sentiment
	rec.AIScore = analysis.Score
	breakdown := analysis.ScoreBreakdown
	rec.ScoreBreakdown = &breakdown
	rec.ObjectionsDetected = analysis.Objections
	rec.KeyTopics = analysis.Topics
	rec.NextSteps = analysis.NextSteps
	s.calls[callID] = rec
	return nil
}

func (s *MemoryStore) SaveCallRecording(_ context.Context, callID string, info RecordingInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.calls[callID]
	if !ok {
		return ErrCallNotFound
	}
	rec.RecordingURL = info.URL
	rec.RecordingSID = info.SID
	rec.RecordingDuration = info.DurationSeconds
	s.calls[callID] = rec
	return nil
}
