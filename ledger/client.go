// Package ledger talks to the credit ledger service and also provides a
// reference implementation of that service.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Client checks and debits per-user credit balances. It keeps no state
// between calls and fails closed: an unreadable balance is zero and an
// unacknowledged debit did not happen.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

type consumeRequest struct {
	TelegramUserID   string `json:"telegramUserId"`
	CreditsToConsume int    `json:"creditsToConsume"`
}

// NewClient builds a Client for the ledger API rooted at baseURL
// (e.g. http://localhost:3001/api).
func NewClient(baseURL string, client *http.Client, logger *zap.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// GetBalance returns the ledger's balance for userID, or 0 on any failure.
func (c *Client) GetBalance(ctx context.Context, userID string) int {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/credits/"+url.PathEscape(userID), nil)
	if err != nil {
		c.logger.Warn("build balance request", zap.String("user_id", userID), zap.Error(err))
		return 0
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("balance request failed", zap.String("user_id", userID), zap.Error(err))
		return 0
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		c.logger.Warn("read balance response", zap.String("user_id", userID), zap.Error(err))
		return 0
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("balance request rejected", zap.String("user_id", userID), zap.Int("status", resp.StatusCode))
		return 0
	}

	credits := gjson.GetBytes(body, "data.credits")
	if !gjson.ValidBytes(body) || credits.Type != gjson.Number {
		c.logger.Warn("malformed balance response", zap.String("user_id", userID))
		return 0
	}
	balance := int(credits.Int())
	if balance < 0 {
		return 0
	}
	return balance
}

// Consume debits amount credits from userID. It returns true only when the
// ledger acknowledges the debit with 200 OK.
func (c *Client) Consume(ctx context.Context, userID string, amount int) bool {
	payload, err := json.Marshal(consumeRequest{TelegramUserID: userID, CreditsToConsume: amount})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/consume-credits", bytes.NewReader(payload))
	if err != nil {
		c.logger.Warn("build consume request", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("consume request failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != http.StatusOK {
		c.logger.Info("consume rejected", zap.String("user_id", userID), zap.Int("amount", amount), zap.Int("status", resp.StatusCode))
		return false
	}
	c.logger.Debug("credits consumed", zap.String("user_id", userID), zap.Int("amount", amount))
	return true
}
