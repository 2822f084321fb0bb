package pumpfun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	xerrors "Creator-SDK/internal/errors"
	"Creator-SDK/internal/intent"
)

const (
	// DefaultBaseURL is the public PumpPortal API root.
	DefaultBaseURL = "https://pumpportal.fun/api"
	// DefaultHTTPTimeout is used when no http.Client is supplied.
	DefaultHTTPTimeout = 30 * time.Second

	defaultInitialBuySOL = 0.01
	defaultPriorityFee   = 0.000001
)

// Config describes how to reach the token-launch API.
type Config struct {
	APIKey      string
	BaseURL     string
	PriorityFee float64
}

// TokenCreateRequest is the input of a token creation.
type TokenCreateRequest struct {
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Description   string  `json:"description,omitempty"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	InitialBuySOL float64 `json:"initialBuySOL,omitempty"`
}

// TokenCreateResponse is the outcome of a token creation.
type TokenCreateResponse struct {
	Success   bool   `json:"success"`
	Mint      string `json:"mint,omitempty"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FeeClaimRequest selects which creator fees to collect. Mint is only sent
// for the meteora-dbc pool.
type FeeClaimRequest struct {
	Mint        string      `json:"mint,omitempty"`
	Pool        intent.Pool `json:"pool,omitempty"`
	PriorityFee float64     `json:"priorityFee,omitempty"`
}

// FeeClaimResponse is the outcome of a fee claim.
type FeeClaimResponse struct {
	Success       bool    `json:"success"`
	Signature     string  `json:"signature,omitempty"`
	ClaimedAmount float64 `json:"claimedAmount"`
	Error         string  `json:"error,omitempty"`
}

// LocalTradeRequest asks the API for an unsigned transaction that the caller
// signs and submits itself.
type LocalTradeRequest struct {
	Action           string  `json:"action"`
	Mint             string  `json:"mint,omitempty"`
	Amount           float64 `json:"amount,omitempty"`
	DenominatedInSol string  `json:"denominatedInSol,omitempty"`
	Slippage         float64 `json:"slippage,omitempty"`
	PriorityFee      float64 `json:"priorityFee,omitempty"`
	Pool             string  `json:"pool,omitempty"`
}

// APIError represents a non-JSON failure returned by the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("pumpportal api error (%d): %s", e.StatusCode, e.Message)
}

// Client wraps the HTTP interactions with the PumpPortal trading API.
type Client struct {
	baseURL     *url.URL
	apiKey      string
	priorityFee float64
	httpClient  *http.Client
}

// NewClient instantiates a client. When httpClient is nil, a default client
// with DefaultHTTPTimeout is used.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid pumpportal base url")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	fee := cfg.PriorityFee
	if fee <= 0 {
		fee = defaultPriorityFee
	}
	return &Client{baseURL: parsed, apiKey: cfg.APIKey, priorityFee: fee, httpClient: httpClient}, nil
}

// CreateToken submits a token creation through the lightning API.
func (c *Client) CreateToken(ctx context.Context, req TokenCreateRequest) (TokenCreateResponse, error) {
	initialBuy := req.InitialBuySOL
	if initialBuy <= 0 {
		initialBuy = defaultInitialBuySOL
	}
	payload := map[string]any{
		"action":        "create",
		"name":          req.Name,
		"symbol":        req.Symbol,
		"description":   req.Description,
		"image":         req.ImageURL,
		"initialBuySOL": initialBuy,
		"priorityFee":   c.priorityFee,
	}

	status, data, err := c.post(ctx, "/trade", payload, true)
	if err != nil {
		return TokenCreateResponse{}, err
	}

	var out struct {
		Signature string `json:"signature"`
		Mint      string `json:"mint"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return TokenCreateResponse{}, upstreamError(status, data, "Token creation failed", err)
	}
	if out.Signature == "" {
		return TokenCreateResponse{}, rejected(status, out.Error, "Token creation failed")
	}
	return TokenCreateResponse{Success: true, Mint: out.Mint, Signature: out.Signature}, nil
}

// ClaimCreatorFees collects accrued creator fees. The API answers either
// with an object carrying signature and amount or with a bare signature string.
func (c *Client) ClaimCreatorFees(ctx context.Context, req FeeClaimRequest) (FeeClaimResponse, error) {
	pool := req.Pool
	if pool == "" {
		pool = intent.PoolPump
	}
	fee := req.PriorityFee
	if fee <= 0 {
		fee = c.priorityFee
	}
	payload := map[string]any{
		"action":      "collectCreatorFee",
		"priorityFee": fee,
		"pool":        string(pool),
	}
	if pool == intent.PoolMeteoraDBC && req.Mint != "" {
		payload["mint"] = req.Mint
	}

	status, data, err := c.post(ctx, "/trade", payload, true)
	if err != nil {
		return FeeClaimResponse{}, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var sig string
		if err := json.Unmarshal(trimmed, &sig); err == nil && sig != "" && status < http.StatusBadRequest {
			return FeeClaimResponse{Success: true, Signature: sig}, nil
		}
	}

	var out struct {
		Signature string  `json:"signature"`
		Amount    float64 `json:"amount"`
		Error     string  `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return FeeClaimResponse{}, upstreamError(status, data, "Fee claim failed", err)
	}
	if out.Signature == "" {
		return FeeClaimResponse{}, rejected(status, out.Error, "Fee claim failed")
	}
	return FeeClaimResponse{Success: true, Signature: out.Signature, ClaimedAmount: out.Amount}, nil
}

// LocalTransaction returns the serialized unsigned transaction for publicKey.
func (c *Client) LocalTransaction(ctx context.Context, req LocalTradeRequest, publicKey string) ([]byte, error) {
	payload := struct {
		LocalTradeRequest
		PublicKey string `json:"publicKey"`
	}{LocalTradeRequest: req, PublicKey: publicKey}

	status, data, err := c.post(ctx, "/trade-local", payload, false)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "Failed to get local transaction")
	}
	if status >= http.StatusBadRequest {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure,
			&APIError{StatusCode: status, Message: string(bytes.TrimSpace(data))},
			"Failed to get local transaction")
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, withKey bool) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode request")
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: path.Join(c.baseURL.Path, endpoint)})
	if withKey {
		q := u.Query()
		q.Set("api-key", c.apiKey)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return 0, nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "Network error")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "Network error")
	}
	return resp.StatusCode, data, nil
}

func rejected(status int, message, fallback string) error {
	if message == "" {
		message = fallback
	}
	return xerrors.New(xerrors.CodeUpstreamFailure, message,
		xerrors.WithMetadata("status", strconv.Itoa(status)),
		xerrors.WithRetryable(status >= http.StatusInternalServerError))
}

func upstreamError(status int, data []byte, fallback string, cause error) error {
	if status >= http.StatusBadRequest {
		msg := string(bytes.TrimSpace(data))
		if msg == "" {
			msg = http.StatusText(status)
		}
		cause = &APIError{StatusCode: status, Message: msg}
	}
	return xerrors.Wrap(xerrors.CodeUpstreamFailure, cause, fallback,
		xerrors.WithMetadata("status", strconv.Itoa(status)))
}
