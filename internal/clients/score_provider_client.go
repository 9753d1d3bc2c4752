package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ScoreRequest is the outbound request toward the external score provider.
// The provider answers asynchronously on the fulfillment callback route.
type ScoreRequest struct {
	RequestID     string `json:"request_id"`
	LeagueID      string `json:"league_id"` // opaque league identifier as hex string
	Period        int64  `json:"period"`
	QueryTemplate string `json:"query,omitempty"`
	RoutingID     string `json:"routing_id,omitempty"`
	Budget        string `json:"budget,omitempty"`
}

// ScoreProvider abstracts the dispatch leg of the oracle protocol
type ScoreProvider interface {
	RequestScores(ctx context.Context, source string, request *ScoreRequest) error
}

// ScoreProviderClient dispatches score requests over HTTP
type ScoreProviderClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewScoreProviderClient creates a provider client. requestsPerSecond bounds
// the outbound rate; zero falls back to one request per second.
func NewScoreProviderClient(timeoutSeconds int, requestsPerSecond float64) *ScoreProviderClient {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &ScoreProviderClient{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// RequestScores posts the request to the configured source. A 2xx answer
// only acknowledges receipt; the score data arrives later on the callback.
func (c *ScoreProviderClient) RequestScores(ctx context.Context, source string, request *ScoreRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter interrupted: %w", err)
	}

	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal score request: %w", err)
	}

	url := source + "/score-requests"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to dispatch score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("score provider rejected request: status=%d body=%s", resp.StatusCode, string(data))
	}

	return nil
}
