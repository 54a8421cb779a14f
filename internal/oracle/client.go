// Package oracle provides the HTTP client for the external decision service.
// The service's internal reasoning is opaque; this client only carries the
// wire contract: three per-session decision operations returning structured
// results, plus a distinguished rate-limit failure.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"solana-agent-sim/internal/domain"
)

// DefaultTimeout bounds a single oracle HTTP call.
const DefaultTimeout = 60 * time.Second

// Client talks to the decision oracle service.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new oracle client.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session is one participant's live conversation with the oracle. The
// provider keeps per-session state (history, persona priming), which is why
// sessions are expensive to reconstruct and worth caching.
type Session struct {
	client    *Client
	sessionID string
}

// openSessionRequest primes a session with the participant's identity.
type openSessionRequest struct {
	ParticipantID string `json:"participant_id"`
	Personality   string `json:"personality"`
}

type openSessionResponse struct {
	SessionID string `json:"session_id"`
}

// OpenSession creates a provider-side session for a participant.
func (c *Client) OpenSession(ctx context.Context, participantID, personality string) (*Session, error) {
	req := openSessionRequest{ParticipantID: participantID, Personality: personality}

	var resp openSessionResponse
	if err := c.post(ctx, "/v1/sessions", req, &resp); err != nil {
		return nil, fmt.Errorf("open session for %s: %w", participantID, err)
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("open session for %s: empty session id", participantID)
	}

	return &Session{client: c, sessionID: resp.SessionID}, nil
}

// AnalyzeMarket asks the oracle for a market read.
func (s *Session) AnalyzeMarket(ctx context.Context, snap *domain.MarketSnapshot) (*domain.AnalysisResult, error) {
	var result domain.AnalysisResult
	path := fmt.Sprintf("/v1/sessions/%s/analyze", s.sessionID)
	if err := s.client.post(ctx, path, snap, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// socializeRequest carries the shared per-phase social context.
type socializeRequest struct {
	RecentMessages []string `json:"recent_messages"`
	Sentiment      float64  `json:"sentiment"`
}

// Socialize asks the oracle whether and what to post.
func (s *Session) Socialize(ctx context.Context, sc *domain.SocialContext) (*domain.SocialResult, error) {
	req := socializeRequest{Sentiment: sc.Sentiment}
	for _, m := range sc.RecentMessages {
		req.RecentMessages = append(req.RecentMessages, m.Text)
	}

	var result domain.SocialResult
	path := fmt.Sprintf("/v1/sessions/%s/socialize", s.sessionID)
	if err := s.client.post(ctx, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DecideTrade asks the oracle for a trade decision.
func (s *Session) DecideTrade(ctx context.Context, snap *domain.MarketSnapshot) (*domain.TradeResult, error) {
	var result domain.TradeResult
	path := fmt.Sprintf("/v1/sessions/%s/trade", s.sessionID)
	if err := s.client.post(ctx, path, snap, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Close releases the provider-side session. Safe to call once per session.
func (s *Session) Close(ctx context.Context) error {
	path := fmt.Sprintf("/v1/sessions/%s", s.sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.client.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	s.client.setHeaders(req)

	resp, err := s.client.client.Do(req)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("close session: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// post issues one JSON POST and decodes the response into result.
// A 429 status maps to ErrRateLimited.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
