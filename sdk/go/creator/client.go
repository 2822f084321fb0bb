package creator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Launches and distributions wait for on-chain confirmation, so it is longer
// than a typical API timeout.
const DefaultHTTPTimeout = 90 * time.Second

// Client wraps the HTTP interactions with a creatord REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// ChatMessage is one entry of the conversation history.
type ChatMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// TokenParams are the token name and symbol detected in a chat turn.
type TokenParams struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// DistributionPlan is the distribution detected in a chat turn.
type DistributionPlan struct {
	TotalAmount   float64 `json:"total_amount"`
	UserCount     int     `json:"user_count"`
	AmountPerUser float64 `json:"amount_per_user"`
	Type          string  `json:"distribution_type"`
}

// ChatResponse is the bot reply for one chat turn.
type ChatResponse struct {
	Message      string            `json:"message"`
	Actions      []string          `json:"actions,omitempty"`
	Token        *TokenParams      `json:"token,omitempty"`
	Distribution *DistributionPlan `json:"distribution,omitempty"`
}

// TokenCreateRequest describes a token launch.
type TokenCreateRequest struct {
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Description   string  `json:"description,omitempty"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	InitialBuySOL float64 `json:"initialBuySOL,omitempty"`
}

// TokenCreateResult is the outcome of a token launch.
type TokenCreateResult struct {
	Success   bool   `json:"success"`
	Mint      string `json:"mint,omitempty"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FeeClaimRequest selects the pool to claim from. The zero value claims from
// the pump pool.
type FeeClaimRequest struct {
	Mint        string  `json:"mint,omitempty"`
	Pool        string  `json:"pool,omitempty"`
	PriorityFee float64 `json:"priorityFee,omitempty"`
}

// FeeClaimResult is the outcome of a fee claim.
type FeeClaimResult struct {
	Success       bool    `json:"success"`
	Signature     string  `json:"signature,omitempty"`
	ClaimedAmount float64 `json:"claimedAmount"`
	Error         string  `json:"error,omitempty"`
}

// Recipient is one transfer in a distribution.
type Recipient struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

// DistributionResult is the outcome of a distribution. Signatures holds the
// transfers that completed, even when Success is false.
type DistributionResult struct {
	Success          bool     `json:"success"`
	Signatures       []string `json:"signatures,omitempty"`
	TotalDistributed float64  `json:"totalDistributed"`
	Error            string   `json:"error,omitempty"`
}

// Stats are the session counters kept by the server.
type Stats struct {
	TokensCreated    int      `json:"tokensCreated"`
	TotalFeesEarned  float64  `json:"totalFeesEarned"`
	TotalDistributed float64  `json:"totalDistributed"`
	ActiveTokens     []string `json:"activeTokens"`
}

// Activity is one recorded launch, claim or distribution.
type Activity struct {
	ID         int64    `json:"id"`
	Kind       string   `json:"kind"`
	Ledger     string   `json:"ledger,omitempty"`
	Reference  string   `json:"reference,omitempty"`
	Signatures []string `json:"signatures,omitempty"`
	Amount     float64  `json:"amount"`
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
	CreatedAt  int64    `json:"created_at"`
}

// Wallet describes the server's configured wallet.
type Wallet struct {
	Ledger  string  `json:"ledger"`
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
}

// APIError represents a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("creator api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for a creatord API. When httpClient is nil,
// a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken sets the bearer token sent with every request.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// Chat sends one message to the bot.
func (c *Client) Chat(ctx context.Context, message string) (ChatResponse, error) {
	var resp ChatResponse
	err := c.send(ctx, http.MethodPost, "/api/v1/chat", nil, map[string]string{"message": message}, &resp)
	return resp, err
}

// History returns the conversation so far, oldest first.
func (c *Client) History(ctx context.Context) ([]ChatMessage, error) {
	var history []ChatMessage
	err := c.send(ctx, http.MethodGet, "/api/v1/chat/history", nil, nil, &history)
	return history, err
}

// ClearHistory empties the conversation.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.send(ctx, http.MethodDelete, "/api/v1/chat/history", nil, nil, nil)
}

// CreateToken launches a token. A launch rejected by pump.fun is reported in
// the result, not as an error.
func (c *Client) CreateToken(ctx context.Context, req TokenCreateRequest) (TokenCreateResult, error) {
	var res TokenCreateResult
	err := c.send(ctx, http.MethodPost, "/api/v1/tokens", nil, req, &res)
	return res, err
}

// ClaimFees claims accumulated creator fees.
func (c *Client) ClaimFees(ctx context.Context, req FeeClaimRequest) (FeeClaimResult, error) {
	var res FeeClaimResult
	err := c.send(ctx, http.MethodPost, "/api/v1/fees/claim", nil, req, &res)
	return res, err
}

// Distribute transfers funds to recipients in order.
func (c *Client) Distribute(ctx context.Context, recipients []Recipient) (DistributionResult, error) {
	var res DistributionResult
	body := struct {
		Recipients []Recipient `json:"recipients"`
	}{Recipients: recipients}
	err := c.send(ctx, http.MethodPost, "/api/v1/distributions", nil, body, &res)
	return res, err
}

// Stats returns the server's session counters.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.send(ctx, http.MethodGet, "/api/v1/stats", nil, nil, &stats)
	return stats, err
}

// Activity returns up to limit recent records, newest first.
func (c *Client) Activity(ctx context.Context, limit int) ([]Activity, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var records []Activity
	err := c.send(ctx, http.MethodGet, "/api/v1/activity", query, nil, &records)
	return records, err
}

// Wallet returns the configured wallet and its balance.
func (c *Client) Wallet(ctx context.Context) (Wallet, error) {
	var w Wallet
	err := c.send(ctx, http.MethodGet, "/api/v1/wallet", nil, nil, &w)
	return w, err
}

func (c *Client) send(ctx context.Context, method, endpoint string, query url.Values, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint), RawQuery: query.Encode()}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(rel).String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		// JSON bodies carry {"error": ...}; http.Error bodies are plain text.
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
