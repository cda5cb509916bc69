package telephony

import (
	"context"
	"errors"
	"strings"
	"testing"

	twilioopenapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeCallAPI struct {
	created *twilioopenapi.CreateCallParams
	updated *twilioopenapi.UpdateCallParams
	sid     string
	err     error
}

func (f *fakeCallAPI) CreateCall(params *twilioopenapi.CreateCallParams) (*twilioopenapi.ApiV2010Call, error) {
	f.created = params
	if f.err != nil {
		return nil, f.err
	}
	status := "queued"
	return &twilioopenapi.ApiV2010Call{Sid: &f.sid, Status: &status}, nil
}

func (f *fakeCallAPI) UpdateCall(_ string, params *twilioopenapi.UpdateCallParams) (*twilioopenapi.ApiV2010Call, error) {
	f.updated = params
	return nil, f.err
}

func testDialer(api callAPI) *TwilioDialer {
	return NewTwilioDialer(DialerConfig{
		FromNumber: "+15555550000",
		BaseURL:    "https://engine.example.com/",
		API:        api,
	})
}

func TestDialWiresWebhooks(t *testing.T) {
	api := &fakeCallAPI{sid: "CA123"}
	d := testDialer(api)

	result, err := d.Dial(context.Background(), DialParams{
		To:      "+15555550100",
		CallID:  "call-1",
		AgentID: "agent-1",
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if result.ProviderCallSID != "CA123" {
		t.Errorf("sid: got %q", result.ProviderCallSID)
	}
	if result.Status != "queued" {
		t.Errorf("status: got %q", result.Status)
	}

	p := api.created
	if got := *p.To; got != "+15555550100" {
		t.Errorf("to: %q", got)
	}
	if got := *p.From; got != "+15555550000" {
		t.Errorf("from: %q", got)
	}
	if got := *p.Url; got != "https://engine.example.com/webhooks/twilio/voice?callId=call-1&agentId=agent-1" {
		t.Errorf("voice url: %q", got)
	}
	if got := *p.StatusCallback; !strings.HasSuffix(got, "/webhooks/twilio/status?callId=call-1") {
		t.Errorf("status callback: %q", got)
	}
	if got := *p.RecordingStatusCallback; !strings.HasSuffix(got, "/webhooks/twilio/recording?callId=call-1") {
		t.Errorf("recording callback: %q", got)
	}
	if p.Record == nil || !*p.Record {
		t.Error("recording not requested")
	}
	if got := *p.MachineDetection; got != "DetectMessageEnd" {
		t.Errorf("machine detection: %q", got)
	}
}

func TestDialRequiresConfiguration(t *testing.T) {
	d := NewTwilioDialer(DialerConfig{})
	if _, err := d.Dial(context.Background(), DialParams{To: "+1", CallID: "c"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if d.Configured() {
		t.Error("dialer should report unconfigured")
	}
}

func TestDialWrapsProviderFailure(t *testing.T) {
	api := &fakeCallAPI{err: errors.New("503")}
	d := testDialer(api)
	_, err := d.Dial(context.Background(), DialParams{To: "+15555550100", CallID: "call-1"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestHangup(t *testing.T) {
	api := &fakeCallAPI{}
	d := testDialer(api)
	if err := d.Hangup(context.Background(), "CA123"); err != nil {
		t.Fatalf("hangup: %v", err)
	}
	if api.updated == nil || *api.updated.Status != "completed" {
		t.Error("hangup must set provider status to completed")
	}
}

func TestMapProviderStatus(t *testing.T) {
	tests := []struct{ in, want string }{
		{"initiated", StatusQueued},
		{"ringing", StatusRinging},
		{"in-progress", StatusInProgress},
		{"completed", StatusCompleted},
		{"busy", StatusNoAnswer},
		{"no-answer", StatusNoAnswer},
		{"canceled", StatusFailed},
		{"failed", StatusFailed},
		{"something-new", "something-new"},
	}
	for _, tt := range tests {
		if got := MapProviderStatus(tt.in); got != tt.want {
			t.Errorf("MapProviderStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsTerminalStatus(t *testing.T) {
	for _, s := range []string{StatusCompleted, StatusFailed, StatusNoAnswer} {
		if !IsTerminalStatus(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []string{StatusQueued, StatusRinging, StatusInProgress} {
		if IsTerminalStatus(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
