package telephony

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go"
	twilioopenapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/pkg/logging"
)

// callAPI is the slice of the Twilio REST surface the dialer uses.
type callAPI interface {
	CreateCall(params *twilioopenapi.CreateCallParams) (*twilioopenapi.ApiV2010Call, error)
	UpdateCall(sid string, params *twilioopenapi.UpdateCallParams) (*twilioopenapi.ApiV2010Call, error)
}

// DialParams describes one outbound call attempt.
type DialParams struct {
	To      string
	CallID  string
	AgentID string
}

// DialResult is the provider's acknowledgement of a placed call.
type DialResult struct {
	ProviderCallSID string
	Status          string
}

// DialerConfig configures a TwilioDialer.
type DialerConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	// BaseURL is the public origin Twilio calls back into.
	BaseURL string
	Logger  *logging.Logger

	// API overrides the REST client for tests.
	API callAPI
}

// TwilioDialer places outbound calls through the Twilio Voice API and wires
// every webhook the engine depends on: answer, status transitions, and
// recording availability.
type TwilioDialer struct {
	api        callAPI
	fromNumber string
	baseURL    string
	configured bool
	logger     *logging.Logger
}

func NewTwilioDialer(cfg DialerConfig) *TwilioDialer {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	api := cfg.API
	configured := cfg.AccountSID != "" && cfg.AuthToken != "" && cfg.FromNumber != ""
	if api == nil && configured {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		api = client.Api
	}
	return &TwilioDialer{
		api:        api,
		fromNumber: cfg.FromNumber,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		configured: api != nil && cfg.FromNumber != "",
		logger:     cfg.Logger,
	}
}

// Configured reports whether the dialer has working provider credentials.
func (d *TwilioDialer) Configured() bool { return d.configured }

// Dial places one outbound call. The provider is told to record the call
// and to report answer, status transitions, and recording readiness to the
// engine's webhook endpoints, each carrying the internal call ID.
func (d *TwilioDialer) Dial(ctx context.Context, p DialParams) (DialResult, error) {
	if !d.configured {
		return DialResult{}, ErrNotConfigured
	}
	if p.To == "" || p.CallID == "" {
		return DialResult{}, fmt.Errorf("telephony: to and call id are required")
	}
	if err := ctx.Err(); err != nil {
		return DialResult{}, err
	}

	callID := url.QueryEscape(p.CallID)
	agentID := url.QueryEscape(p.AgentID)

	params := &twilioopenapi.CreateCallParams{}
	params.SetTo(p.To)
	params.SetFrom(d.fromNumber)
	params.SetUrl(fmt.Sprintf("%s/webhooks/twilio/voice?callId=%s&agentId=%s", d.baseURL, callID, agentID))
	params.SetMethod("POST")
	params.SetStatusCallback(fmt.Sprintf("%s/webhooks/twilio/status?callId=%s", d.baseURL, callID))
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	params.SetRecord(true)
	params.SetRecordingStatusCallback(fmt.Sprintf("%s/webhooks/twilio/recording?callId=%s", d.baseURL, callID))
	params.SetRecordingStatusCallbackMethod("POST")
	params.SetMachineDetection("DetectMessageEnd")

	call, err := d.api.CreateCall(params)
	if err != nil {
		return DialResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	result := DialResult{}
	if call.Sid != nil {
		result.ProviderCallSID = *call.Sid
	}
	if call.Status != nil {
		result.Status = *call.Status
	}
	d.logger.Info("outbound call placed",
		"call_id", p.CallID,
		"provider_sid", result.ProviderCallSID,
		"to", p.To,
	)
	return result, nil
}

// Hangup asks the provider to complete an in-flight call.
func (d *TwilioDialer) Hangup(ctx context.Context, providerCallSID string) error {
	if !d.configured {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioopenapi.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := d.api.UpdateCall(providerCallSID, params); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}
