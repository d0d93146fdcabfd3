// Package email delivers password reset codes.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const postmarkURL = "https://api.postmarkapp.com/email"

// Sender delivers a password reset code to an address.
type Sender interface {
	SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// Client sends mail through the Postmark API.
type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      postmarkURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

func (c *Client) SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	minutes := int(ttl.Minutes())
	textBody := fmt.Sprintf("Your CompostDash password reset code is %s.\n\nIt expires in %d minutes. If you did not ask to reset your password you can ignore this message.", code, minutes)
	htmlBody := fmt.Sprintf(
		`<p>Your CompostDash password reset code is:</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>It expires in %d minutes.</p>`,
		code, minutes,
	)

	body, err := json.Marshal(postmarkEmail{
		From:     c.fromEmail,
		To:       to,
		Subject:  "Reset your CompostDash password",
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes reset codes to the log instead of mailing them.
// Used in development when no Postmark token is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) SendResetCode(_ context.Context, to, code string, ttl time.Duration) error {
	s.Logger.Warn("email not configured, logging reset code", "to", to, "code", code, "ttl", ttl)
	return nil
}

// New returns a Postmark client when a token is set and a LogSender otherwise.
func New(serverToken, fromEmail string, logger *slog.Logger) Sender {
	if serverToken == "" {
		return LogSender{Logger: logger}
	}
	return NewClient(serverToken, fromEmail)
}
