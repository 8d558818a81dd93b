// Package oracle provides adjudicator implementations for disputed market
// resolutions: an HTTP client for an external adjudication service and a
// static adjudicator for development and tests.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/omenmarkets/omen/internal/domain"
)

// HTTPAdjudicator implements domain.Adjudicator against an external HTTP
// adjudication service. Each disputed resolution triggers exactly one POST.
type HTTPAdjudicator struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPAdjudicator creates a client for the adjudication service at
// baseURL. apiKey may be empty when the service is unauthenticated.
func NewHTTPAdjudicator(baseURL, apiKey string, timeout time.Duration) *HTTPAdjudicator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAdjudicator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// adjudicateRequest is the request envelope for the adjudication endpoint.
type adjudicateRequest struct {
	MarketID        string `json:"market_id"`
	ProposedWinners []int  `json:"proposed_winners"`
}

// adjudicateResponse is the response envelope from the adjudication endpoint.
type adjudicateResponse struct {
	Winners []int  `json:"winners"`
	Error   string `json:"error,omitempty"`
}

// Adjudicate asks the external service for the final winner set of a
// disputed market.
func (a *HTTPAdjudicator) Adjudicate(ctx context.Context, marketID string, proposedWinners []int) ([]int, error) {
	body, err := json.Marshal(adjudicateRequest{
		MarketID:        marketID,
		ProposedWinners: proposedWinners,
	})
	if err != nil {
		return nil, fmt.Errorf("oracle: marshal adjudicate request: %w", err)
	}

	url := a.baseURL + "/v1/adjudicate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("oracle: build adjudicate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle: adjudicate market %s: %w", marketID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("oracle: read adjudicate response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle: adjudicate market %s: status %d: %s",
			marketID, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out adjudicateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("oracle: decode adjudicate response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("oracle: adjudicate market %s: %s", marketID, out.Error)
	}
	if len(out.Winners) == 0 {
		return nil, fmt.Errorf("oracle: adjudicate market %s: empty winner set", marketID)
	}

	return out.Winners, nil
}

// Compile-time interface check.
var _ domain.Adjudicator = (*HTTPAdjudicator)(nil)
