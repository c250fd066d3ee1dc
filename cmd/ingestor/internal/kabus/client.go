// Package kabus is a minimal client for the kabu-station REST surface the
// ingestor needs: token issuance and push-symbol registration.
package kabus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const apiKeyHeader = "X-API-KEY"

type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
	}
}

// RegisterSymbol identifies one instrument to receive push data for.
type RegisterSymbol struct {
	Symbol   string `json:"Symbol"`
	Exchange int    `json:"Exchange"`
}

type tokenRequest struct {
	APIPassword string `json:"APIPassword"`
}

type tokenResponse struct {
	Token string `json:"Token"`
}

type registerRequest struct {
	Symbols []RegisterSymbol `json:"Symbols"`
}

// Token exchanges the API password for a session token.
func (c *Client) Token(ctx context.Context, password string) (string, error) {
	body, err := json.Marshal(tokenRequest{APIPassword: password})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/token", "", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}
	return resp.Token, nil
}

// UnregisterAll clears every existing push registration for the session.
func (c *Client) UnregisterAll(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPut, "/unregister/all", token, nil, nil)
}

// Register subscribes the session to push data for the given symbols.
func (c *Client) Register(ctx context.Context, token string, symbols []RegisterSymbol) error {
	body, err := json.Marshal(registerRequest{Symbols: symbols})
	if err != nil {
		return fmt.Errorf("marshal register request: %w", err)
	}
	return c.do(ctx, http.MethodPut, "/register", token, body, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(apiKeyHeader, token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}

	c.logger.Debug("kabus request ok", zap.String("method", method), zap.String("path", path))
	return nil
}
