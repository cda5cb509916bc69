package campaign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/pkg/logging"
)

// Chain request markers. The execute endpoint accepts these instead of a
// bearer token so the engine can trigger itself across instances.
const (
	ChainHeader       = "X-Campaign-Chain"
	ChainSecretHeader = "X-Campaign-Chain-Secret"
)

// ChainRequest is the body of an internal continuation trigger.
type ChainRequest struct {
	UserID          string `json:"userId"`
	CompletedCallID string `json:"completedCallId"`
}

// ChainClient triggers the next campaign step over HTTP. The trampoline
// keeps each webhook invocation short: instead of dialing inline, the
// status handler fires one POST and returns.
type ChainClient struct {
	baseURL string
	secret  string
	client  *http.Client
	logger  *logging.Logger
}

// ChainClientConfig wires a ChainClient.
type ChainClientConfig struct {
	// BaseURL is the engine's own public origin.
	BaseURL string
	Secret  string
	Client  *http.Client
	Logger  *logging.Logger
}

func NewChainClient(cfg ChainClientConfig) *ChainClient {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &ChainClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.Secret,
		client:  client,
		logger:  cfg.Logger,
	}
}

// Continue fires the continuation trigger for one completed campaign call.
// Failures are logged, not returned: a lost trigger stalls the campaign
// until the next start, but must never fail the webhook that fired it.
func (c *ChainClient) Continue(ctx context.Context, campaignID, userID, completedCallID string) {
	body, err := json.Marshal(ChainRequest{
		UserID:          userID,
		CompletedCallID: completedCallID,
	})
	if err != nil {
		c.logger.Error("campaign chain marshal failed", "campaign_id", campaignID, "error", err)
		return
	}

	url := fmt.Sprintf("%s/calling/campaigns/%s/execute", c.baseURL, campaignID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("campaign chain request failed", "campaign_id", campaignID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ChainHeader, "true")
	req.Header.Set(ChainSecretHeader, c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("campaign chain trigger failed", "campaign_id", campaignID, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode >= 400 {
		c.logger.Error("campaign chain trigger rejected",
			"campaign_id", campaignID,
			"status", resp.StatusCode,
		)
		return
	}
	c.logger.Info("campaign chain continued",
		"campaign_id", campaignID,
		"completed_call_id", completedCallID,
	)
}
