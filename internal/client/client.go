// Package client talks to a running papertrade server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Holding struct {
	Symbol              string  `json:"symbol"`
	Name                string  `json:"name"`
	Quantity            int64   `json:"quantity"`
	TotalCost           float64 `json:"totalCost"`
	AverageCostPerShare float64 `json:"averageCostPerShare"`
	CurrentPrice        float64 `json:"currentPrice"`
	Change              float64 `json:"change"`
	MarketValue         float64 `json:"marketValue"`
}

type Wallet struct {
	Balance float64 `json:"balance"`
}

type Summary struct {
	Balance          float64 `json:"balance"`
	TotalMarketValue float64 `json:"totalMarketValue"`
	NetWorth         float64 `json:"netWorth"`
}

// Trade is the request body of a buy or sell.
type Trade struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name,omitempty"`
	Quantity     int64   `json:"quantity"`
	CurrentPrice float64 `json:"currentPrice"`
	TotalCost    float64 `json:"totalCost,omitempty"`
	IntentID     string  `json:"intentId,omitempty"`
}

type TradeResult struct {
	Message  string   `json:"message"`
	Detail   string   `json:"detail"`
	IntentID string   `json:"intentId"`
	Replayed bool     `json:"replayed"`
	Wallet   Wallet   `json:"wallet"`
	Holding  *Holding `json:"holding"`
	Deleted  bool     `json:"deleted"`
}

type Status struct {
	IntentID  string `json:"intentId"`
	Committed bool   `json:"committed"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Client is safe for concurrent use.
type Client struct {
	base string
	http *http.Client
}

func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid server url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}, nil
}

func (c *Client) Buy(ctx context.Context, t Trade) (TradeResult, error) {
	var out TradeResult
	err := c.do(ctx, http.MethodPost, "/portfolio", t, &out)
	return out, err
}

func (c *Client) Sell(ctx context.Context, t Trade) (TradeResult, error) {
	var out TradeResult
	err := c.do(ctx, http.MethodPost, "/portfolio/sell", t, &out)
	return out, err
}

func (c *Client) Holdings(ctx context.Context) ([]Holding, error) {
	var out []Holding
	err := c.do(ctx, http.MethodGet, "/portfolioData", nil, &out)
	return out, err
}

func (c *Client) Holding(ctx context.Context, symbol string) (Holding, error) {
	var out Holding
	err := c.do(ctx, http.MethodGet, "/portfolio/"+url.PathEscape(symbol), nil, &out)
	return out, err
}

func (c *Client) Wallet(ctx context.Context) (Wallet, error) {
	var out Wallet
	err := c.do(ctx, http.MethodGet, "/wallet", nil, &out)
	return out, err
}

// SetBalance accepts the balance as a decimal string so no precision is lost on the way.
func (c *Client) SetBalance(ctx context.Context, balance string) error {
	body := map[string]json.RawMessage{"newBalance": json.RawMessage(balance)}
	return c.do(ctx, http.MethodPost, "/wallet/update", body, nil)
}

func (c *Client) NetWorth(ctx context.Context) (Summary, error) {
	var out Summary
	err := c.do(ctx, http.MethodGet, "/networth", nil, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context, intentID string) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/trades/"+url.PathEscape(intentID), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
