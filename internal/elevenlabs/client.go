// Package elevenlabs speaks the ElevenLabs Conversational AI WebSocket
// protocol and fetches signed conversation URLs for a configured agent.
package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public ElevenLabs API endpoint.
const DefaultBaseURL = "https://api.elevenlabs.io"

const signedURLPath = "/v1/convai/conversation/get_signed_url"

var (
	// ErrEmptySignedURL is returned when the API answers without a URL.
	ErrEmptySignedURL = errors.New("elevenlabs: empty signed url")

	errMissingAPIKey  = errors.New("elevenlabs: api key required")
	errMissingAgentID = errors.New("elevenlabs: agent id required")
)

// APIError reports a non-success HTTP response from the ElevenLabs API.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("elevenlabs: %s", e.Status)
	}
	return fmt.Sprintf("elevenlabs: %s: %s", e.Status, e.Body)
}

// Client fetches signed WebSocket URLs for one conversational agent.
type Client struct {
	apiKey     string
	agentID    string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a client for agentID authenticated with apiKey.
func NewClient(apiKey, agentID string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errMissingAPIKey
	}
	if agentID == "" {
		return nil, errMissingAgentID
	}
	c := &Client{
		apiKey:     apiKey,
		agentID:    agentID,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SignedURL requests a fresh signed conversation URL.
func (c *Client) SignedURL(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("agent_id", c.agentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+signedURLPath+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build signed url request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get signed url: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var out struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode signed url: %w", err)
	}
	if out.SignedURL == "" {
		return "", ErrEmptySignedURL
	}
	return out.SignedURL, nil
}
