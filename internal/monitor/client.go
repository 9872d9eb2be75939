package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
)

// ErrNoRun is returned by StateClient.Fetch before the server's first run.
var ErrNoRun = errors.New("no run has started")

// StateClient polls the state endpoint of a running deepagent server.
type StateClient struct {
	baseURL string
	client  *http.Client
}

// NewStateClient creates a client for the server at baseURL.
func NewStateClient(baseURL string) *StateClient {
	return &StateClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Fetch returns the server's current state summary.
func (c *StateClient) Fetch(ctx context.Context) (orchestrator.StateSummary, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/state")
	if err != nil {
		return orchestrator.StateSummary{}, fmt.Errorf("invalid base URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return orchestrator.StateSummary{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return orchestrator.StateSummary{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return orchestrator.StateSummary{}, ErrNoRun
	default:
		return orchestrator.StateSummary{}, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var sum orchestrator.StateSummary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		return orchestrator.StateSummary{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return sum, nil
}
