package campaign

import "errors"

var (
	// ErrAlreadyRunning means a start was requested while a run is live.
	ErrAlreadyRunning = errors.New("campaign: execution already running")
	// ErrEmptyCampaign means the campaign has no imported contacts.
	ErrEmptyCampaign = errors.New("campaign: no contacts to call")
	// ErrNotRunning means a continuation arrived for a campaign with no
	// live run.
	ErrNotRunning = errors.New("campaign: execution not running")
	// ErrProgressConflict means a conditional save lost a concurrent
	// update race.
	ErrProgressConflict = errors.New("campaign: progress revision conflict")
)
