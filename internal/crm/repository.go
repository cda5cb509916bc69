package crm

import (
	"context"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/conversation"
)

// AgentSource resolves the agent profile snapshotted at call start.
type AgentSource interface {
	GetAgent(ctx context.Context, userID, agentID string) (*conversation.AgentProfile, error)
}

// CampaignSource resolves campaigns scoped to their owner.
type CampaignSource interface {
	GetCampaign(ctx context.Context, userID, campaignID string) (*Campaign, error)
	UpdateCampaignStatus(ctx context.Context, campaignID, status string) error
}

// CallRecords is the narrow write surface the calling engine touches on the
// durable call table. Nothing here reads other CRM data.
type CallRecords interface {
	CreateCall(ctx context.Context, params NewCallParams) (*CallRecord, error)
	GetCall(ctx context.Context, callID string) (*CallRecord, error)
	UpdateCallStatus(ctx context.Context, callID, status, providerCallSID string) error
	SaveCallOutcome(ctx context.Context, callID string, outcome CallOutcome) error
	SaveCallAnalysis(ctx context.Context, callID string, analysis conversation.CallAnalysis) error
	SaveCallRecording(ctx context.Context, callID string, rec RecordingInfo) error
}
