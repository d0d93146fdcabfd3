// Package identity talks to the external identity provider used when
// accounts live outside compostdash.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Normalized provider error codes.
const (
	CodeUserNotFound    = "user-not-found"
	CodeWrongPassword   = "wrong-password"
	CodeInvalidEmail    = "invalid-email"
	CodeTooManyRequests = "too-many-requests"
	CodeEmailInUse      = "email-already-in-use"
	CodeUnknown         = "unknown"
)

// Config holds identity provider configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	SigningKey string
	Timeout    time.Duration
}

// Error is a provider failure carrying a normalized code.
type Error struct {
	Code string
	raw  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("identity provider: %s (%s)", e.Code, e.raw)
}

// User is the account handle returned by the provider.
type User struct {
	LocalID string
	Email   string
	IDToken string
}

type credentialsRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type credentialsResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client performs password sign-up and sign-in against the provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignUp registers a new password account with the provider.
func (c *Client) SignUp(ctx context.Context, email, password string) (*User, error) {
	return c.credentials(ctx, "accounts:signUp", email, password)
}

// SignIn verifies a password with the provider.
func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	return c.credentials(ctx, "accounts:signInWithPassword", email, password)
}

func (c *Client) credentials(ctx context.Context, endpoint, email, password string) (*User, error) {
	body, err := json.Marshal(credentialsRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + endpoint
	if c.cfg.APIKey != "" {
		url += "?key=" + c.cfg.APIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Message == "" {
			return nil, &Error{Code: CodeUnknown, raw: fmt.Sprintf("status %d", resp.StatusCode)}
		}
		return nil, &Error{Code: Normalize(er.Error.Message), raw: er.Error.Message}
	}

	var cr credentialsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if cr.LocalID == "" || cr.IDToken == "" {
		return nil, &Error{Code: CodeUnknown, raw: "incomplete response"}
	}

	if err := c.verify(cr.IDToken, cr.LocalID); err != nil {
		return nil, err
	}
	return &User{LocalID: cr.LocalID, Email: cr.Email, IDToken: cr.IDToken}, nil
}

// verify checks the id token signature and that its subject is the returned account.
func (c *Client) verify(idToken, localID string) error {
	if c.cfg.SigningKey == "" {
		return errors.New("identity provider: signing key not configured")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		return []byte(c.cfg.SigningKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("verify id token: %w", err)
	}
	if claims.Subject != localID {
		return fmt.Errorf("verify id token: subject %q does not match account %q", claims.Subject, localID)
	}
	return nil
}

// Normalize maps a raw provider message to one of the Code constants.
// Messages may carry a trailing description after " : ".
func Normalize(message string) string {
	code, _, _ := strings.Cut(message, " ")
	switch code {
	case "EMAIL_NOT_FOUND", "USER_DISABLED":
		return CodeUserNotFound
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return CodeWrongPassword
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return CodeInvalidEmail
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return CodeTooManyRequests
	case "EMAIL_EXISTS":
		return CodeEmailInUse
	default:
		return CodeUnknown
	}
}
