// ABOUTME: HTTP client for the web search provider with retry and backoff
// ABOUTME: Exposes the single web_search tool schema offered to the model

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/parley-chat/parley/internal/llm"
	"github.com/parley-chat/parley/internal/retry"
)

// ToolName is the function name the model uses to request a search.
const ToolName = "web_search"

// statusError is a non-2xx provider response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("search provider returned status %d: %s", e.status, e.body)
}

// Options control one search call.
type Options struct {
	NumResults int
	Highlights bool
}

// Result is one search hit.
type Result struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Text       string   `json:"text,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// Results is the provider response folded back into the conversation as a
// tool message.
type Results struct {
	Results []Result `json:"results"`
}

// Client calls the search provider over HTTP JSON.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	policy     retry.Policy
	logger     *slog.Logger
}

// ClientOptions configure the search client.
type ClientOptions struct {
	BaseURL string
	APIKey  string
	Policy  retry.Policy
	Logger  *slog.Logger
}

// DefaultPolicy is the retry budget for search calls.
func DefaultPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     4 * time.Second,
		Multiplier:   2,
		Retryable:    isTransient,
	}
}

// NewClient creates a search client.
func NewClient(opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := opts.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultPolicy()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		policy:     policy,
		logger:     logger.With("component", "search"),
	}
}

// isTransient treats rate limits and 5xx-class provider errors as retryable.
func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	// Transport-level failures are worth another attempt
	return true
}

// searchRequest is the provider wire format.
type searchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults,omitempty"`
	Highlights bool   `json:"highlights,omitempty"`
}

// Search runs one query with bounded retries. The returned Results are
// JSON-serializable for storage as a tool message.
func (c *Client) Search(ctx context.Context, query string, opts Options) (*Results, error) {
	body, err := json.Marshal(searchRequest{
		Query:      query,
		NumResults: opts.NumResults,
		Highlights: opts.Highlights,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	var results Results
	err = c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building search request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("search call failed", "query", query, "error", err)
			return fmt.Errorf("calling search provider: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			err := &statusError{status: resp.StatusCode, body: string(raw)}
			c.logger.Warn("search call failed", "query", query, "status", resp.StatusCode)
			return err
		}

		results = Results{}
		if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
			return fmt.Errorf("decoding search response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("search completed", "query", query, "results", len(results.Results))
	return &results, nil
}

// ToolDef returns the function tool schema offered to the model. The single
// required argument is the query string.
func ToolDef() llm.ToolDef {
	return llm.ToolDef{
		Name:        ToolName,
		Description: "Search the web for current information. Returns a list of relevant results.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
	}
}
