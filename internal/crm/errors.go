package crm

import "errors"

var (
	ErrAgentNotFound    = errors.New("crm: agent not found")
	ErrCampaignNotFound = errors.New("crm: campaign not found")
	ErrCallNotFound     = errors.New("crm: call not found")
)
