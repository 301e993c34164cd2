package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/sethvargo/go-retry"
)

// Client sends mail through a Resend-style JSON API.
type Client struct {
	endpoint   string
	apiKey     string
	from       string
	maxRetries uint64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a Client. maxRetries bounds re-delivery attempts on
// transient failures.
func NewClient(endpoint, apiKey, from string, maxRetries int, logger *slog.Logger) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		from:       from,
		maxRetries: uint64(maxRetries),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type sendPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Send posts the message to the provider, retrying transient failures with
// exponential backoff. 4xx responses are terminal.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c.apiKey == "" {
		c.logger.Warn("mail api key not configured, dropping message", "to", msg.To, "subject", msg.Subject)
		return nil
	}
	body, err := json.Marshal(sendPayload{
		From:    c.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("encode mail payload: %w", err)
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			c.logger.Warn("mail provider error, retrying", "status", resp.StatusCode, "to", msg.To)
			return retry.RetryableError(fmt.Errorf("mail provider returned %d", resp.StatusCode))
		}
		if resp.StatusCode >= http.StatusBadRequest {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("mail provider rejected message (%d): %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		}
		c.logger.Info("mail sent", "to", msg.To, "subject", msg.Subject)
		return nil
	})
}
