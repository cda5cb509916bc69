package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/crm"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/observability/metrics"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/telephony"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/pkg/logging"
)

// Dialer places outbound calls. Satisfied by telephony.TwilioDialer.
type Dialer interface {
	Dial(ctx context.Context, p telephony.DialParams) (telephony.DialResult, error)
}

// StepResult reports what one execution step did.
type StepResult struct {
	// Called is true when a dial was placed.
	Called bool
	// Done is true when the campaign finished with this step.
	Done    bool
	CallID  string
	Contact string
}

// ExecutorConfig wires an Executor.
type ExecutorConfig struct {
	Progress  ProgressStore
	Campaigns crm.CampaignSource
	Agents    crm.AgentSource
	Calls     crm.CallRecords
	Dialer    Dialer
	Metrics   *metrics.CallMetrics
	Logger    *logging.Logger
	// Now overrides the clock for tests.
	Now func() time.Time
}

// Executor runs campaigns one contact at a time. There is no worker loop:
// each completed call triggers the next step through the chain endpoint, so
// a run survives process restarts as long as the progress store does.
type Executor struct {
	progress  ProgressStore
	campaigns crm.CampaignSource
	agents    crm.AgentSource
	calls     crm.CallRecords
	dialer    Dialer
	metrics   *metrics.CallMetrics
	logger    *logging.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Executor{
		progress:  cfg.Progress,
		campaigns: cfg.Campaigns,
		agents:    cfg.Agents,
		calls:     cfg.Calls,
		dialer:    cfg.Dialer,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       now,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (e *Executor) lockCampaign(campaignID string) func() {
	e.mu.Lock()
	l, ok := e.locks[campaignID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[campaignID] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Start builds fresh progress from the campaign's contact list and places
// the first call. A live run makes a second start ErrAlreadyRunning; a
// finished run is replaced.
func (e *Executor) Start(ctx context.Context, userID, campaignID string) (StepResult, error) {
	unlock := e.lockCampaign(campaignID)
	defer unlock()

	campaign, err := e.campaigns.GetCampaign(ctx, userID, campaignID)
	if err != nil {
		return StepResult{}, err
	}
	if campaign.AgentID == "" {
		return StepResult{}, fmt.Errorf("campaign: no agent assigned to campaign %s", campaignID)
	}
	if len(campaign.Contacts) == 0 {
		return StepResult{}, ErrEmptyCampaign
	}
	if _, err := e.agents.GetAgent(ctx, userID, campaign.AgentID); err != nil {
		return StepResult{}, err
	}

	existing, err := e.progress.Get(ctx, campaignID)
	if err != nil {
		return StepResult{}, err
	}
	if existing != nil && existing.Status == StatusRunning {
		return StepResult{}, fmt.Errorf("%w: campaign %s", ErrAlreadyRunning, campaignID)
	}

	p := &Progress{
		CampaignID: campaignID,
		UserID:     userID,
		AgentID:    campaign.AgentID,
		Status:     StatusRunning,
		Pending:    campaign.Contacts,
		StartedAt:  e.now(),
	}
	if existing != nil {
		// Replacing a finished run continues its revision sequence.
		p.Revision = existing.Revision
	}
	if err := e.progress.Save(ctx, p); err != nil {
		return StepResult{}, err
	}
	if err := e.campaigns.UpdateCampaignStatus(ctx, campaignID, crm.CampaignStatusActive); err != nil {
		e.logger.Warn("campaign status update failed", "campaign_id", campaignID, "error", err)
	}

	e.logger.Info("campaign execution started",
		"campaign_id", campaignID,
		"contacts", len(p.Pending),
	)
	return e.step(ctx, p)
}

// Continue advances a running campaign. A chain trigger carries the ID of
// the call that just ended and must match the recorded current call; stale
// or duplicate triggers are no-ops, so a provider re-delivering a status
// webhook can never double-dial. An empty completedCallID is a manual
// resume: it recovers a run whose chain trigger was lost, and advances only
// once the recorded current call has actually reached a terminal status.
func (e *Executor) Continue(ctx context.Context, userID, campaignID, completedCallID string) (StepResult, error) {
	unlock := e.lockCampaign(campaignID)
	defer unlock()

	p, err := e.progress.Get(ctx, campaignID)
	if err != nil {
		return StepResult{}, err
	}
	if p == nil || p.Status != StatusRunning {
		return StepResult{}, fmt.Errorf("%w: campaign %s", ErrNotRunning, campaignID)
	}
	if p.UserID != userID {
		return StepResult{}, crm.ErrCampaignNotFound
	}

	if completedCallID == "" {
		if p.CurrentCallID != "" {
			rec, err := e.calls.GetCall(ctx, p.CurrentCallID)
			if err != nil {
				return StepResult{}, err
			}
			if !telephony.IsTerminalStatus(rec.Status) {
				e.logger.Info("campaign resume ignored, current call still live",
					"campaign_id", campaignID,
					"current_call_id", p.CurrentCallID,
					"status", rec.Status,
				)
				return StepResult{}, nil
			}
		}
	} else if p.CurrentCallID == "" || p.CurrentCallID != completedCallID {
		e.logger.Info("ignoring stale campaign chain trigger",
			"campaign_id", campaignID,
			"completed_call_id", completedCallID,
			"current_call_id", p.CurrentCallID,
		)
		return StepResult{}, nil
	}

	p.CurrentCallID = ""
	return e.step(ctx, p)
}

// Snapshot returns the current run state, or the not-started view when no
// run exists.
func (e *Executor) Snapshot(ctx context.Context, userID, campaignID string) (Snapshot, error) {
	if _, err := e.campaigns.GetCampaign(ctx, userID, campaignID); err != nil {
		return Snapshot{}, err
	}
	p, err := e.progress.Get(ctx, campaignID)
	if err != nil {
		return Snapshot{}, err
	}
	if p == nil {
		return Snapshot{CampaignID: campaignID, Status: StatusNotStarted}, nil
	}
	return p.Snapshot(), nil
}

// step pops the queue head and dials it. The contact's move to the called
// list is saved before the dial commits: a failed dial is recorded and
// never retried, and the next chain trigger moves on to the next contact.
func (e *Executor) step(ctx context.Context, p *Progress) (StepResult, error) {
	if len(p.Pending) == 0 {
		return e.complete(ctx, p)
	}

	contact := p.Pending[0]
	p.Pending = p.Pending[1:]

	rec, err := e.calls.CreateCall(ctx, crm.NewCallParams{
		UserID:         p.UserID,
		Direction:      "outbound",
		AgentID:        p.AgentID,
		CampaignID:     p.CampaignID,
		ContactID:      contact.ID,
		ContactName:    contact.Name,
		ContactCompany: contact.Company,
		ToNumber:       contact.Phone,
		Status:         telephony.StatusQueued,
	})
	if err != nil {
		p.Called = append(p.Called, ContactOutcome{
			Contact:     contact,
			Outcome:     OutcomeFailed,
			Error:       err.Error(),
			AttemptedAt: e.now(),
		})
		if saveErr := e.progress.Save(ctx, p); saveErr != nil {
			return StepResult{}, saveErr
		}
		e.logger.Error("campaign call record creation failed",
			"campaign_id", p.CampaignID,
			"contact", contact.Phone,
			"error", err,
		)
		return e.step(ctx, p)
	}

	// The claim is persisted before the dial: a crash or a racing second
	// instance sees the contact already moved off the queue and never
	// dials it twice. A failed dial flips the recorded outcome afterward.
	p.Called = append(p.Called, ContactOutcome{
		Contact:     contact,
		CallID:      rec.ID,
		Outcome:     OutcomeCalled,
		AttemptedAt: e.now(),
	})
	p.CurrentCallID = rec.ID
	if err := e.progress.Save(ctx, p); err != nil {
		return StepResult{}, err
	}

	result, err := e.dialer.Dial(ctx, telephony.DialParams{
		To:      contact.Phone,
		CallID:  rec.ID,
		AgentID: p.AgentID,
	})
	if err != nil {
		claimed := &p.Called[len(p.Called)-1]
		claimed.Outcome = OutcomeFailed
		claimed.Error = err.Error()
		p.CurrentCallID = ""
		if saveErr := e.progress.Save(ctx, p); saveErr != nil {
			return StepResult{}, saveErr
		}
		if updateErr := e.calls.UpdateCallStatus(ctx, rec.ID, telephony.StatusFailed, ""); updateErr != nil {
			e.logger.Warn("failed call status update", "call_id", rec.ID, "error", updateErr)
		}
		e.metrics.ObserveCampaignDial(OutcomeFailed)
		e.logger.Error("campaign dial failed",
			"campaign_id", p.CampaignID,
			"call_id", rec.ID,
			"contact", contact.Phone,
			"error", err,
		)
		return e.step(ctx, p)
	}

	if err := e.calls.UpdateCallStatus(ctx, rec.ID, telephony.StatusRinging, result.ProviderCallSID); err != nil {
		e.logger.Warn("call status update failed", "call_id", rec.ID, "error", err)
	}

	e.metrics.ObserveCampaignDial(OutcomeCalled)
	e.logger.Info("campaign call placed",
		"campaign_id", p.CampaignID,
		"call_id", rec.ID,
		"contact", contact.Phone,
		"remaining", len(p.Pending),
	)
	return StepResult{Called: true, CallID: rec.ID, Contact: contact.Phone}, nil
}

func (e *Executor) complete(ctx context.Context, p *Progress) (StepResult, error) {
	completedAt := e.now()
	p.Status = StatusCompleted
	p.CompletedAt = &completedAt
	p.CurrentCallID = ""
	if err := e.progress.Save(ctx, p); err != nil {
		return StepResult{}, err
	}
	if err := e.campaigns.UpdateCampaignStatus(ctx, p.CampaignID, crm.CampaignStatusCompleted); err != nil {
		e.logger.Warn("campaign status update failed", "campaign_id", p.CampaignID, "error", err)
	}
	e.logger.Info("campaign execution completed",
		"campaign_id", p.CampaignID,
		"called", len(p.Called),
	)
	return StepResult{Done: true}, nil
}
