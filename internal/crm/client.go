// Package crm is a small client for the Didar CRM HTTP API: identity check,
// login, the two reference lists and activity creation.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	pathMe                = "/api/account/Me"
	pathLogin             = "/api/Authentication/Login_V2"
	pathUserList          = "/api/user/GetUserList"
	pathActivityTypes     = "/api/activity/GetActivityType"
	pathSaveActivity      = "/api/activity/SaveActivity"
	headerBizdomain       = "X-Bizdomain"
	headerRequestID       = "X-Request-Id"
	maxResponseBytes      = 4 << 20
	maxErrorMessageLength = 300
)

// Client talks to one CRM deployment.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	requestID  func() string
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the request logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
// Zero keeps the transport's own behavior.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client for baseURL (for example https://app.didar.me).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:    zap.NewNop(),
		requestID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the configured API host.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Me is the identity check. It succeeds only while the token is valid; with
// an org context it also verifies access to that company.
func (c *Client) Me(ctx context.Context, scope Scope) (Identity, error) {
	var out envelope[Identity]
	if err := c.do(ctx, http.MethodGet, pathMe, &scope, nil, &out); err != nil {
		return Identity{}, err
	}
	return out.Response, nil
}

// Login exchanges a username and password for a session. A wrong password is
// reported by the service inside the body, not via the status code, so
// callers must inspect SessionID.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var out LoginResponse
	body := loginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, pathLogin, nil, body, &out); err != nil {
		return LoginResponse{}, err
	}
	return out, nil
}

// ListUsers returns every user of the scoped company, disabled ones included.
func (c *Client) ListUsers(ctx context.Context, scope Scope) ([]User, error) {
	var out envelope[[]User]
	if err := c.do(ctx, http.MethodPost, pathUserList, &scope, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Response, nil
}

// ListActivityTypes returns the activity-type catalog, disabled ones included.
func (c *Client) ListActivityTypes(ctx context.Context, scope Scope) ([]ActivityType, error) {
	var out envelope[[]ActivityType]
	if err := c.do(ctx, http.MethodPost, pathActivityTypes, &scope, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Response, nil
}

// SaveActivity creates one activity. The acknowledgement body is not used.
func (c *Client) SaveActivity(ctx context.Context, scope Scope, req SaveActivityRequest) error {
	return c.do(ctx, http.MethodPost, pathSaveActivity, &scope, req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, scope *Scope, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("crm: encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("crm: build %s request: %w", path, err)
	}
	requestID := c.requestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerRequestID, requestID)
	if scope != nil {
		req.Header.Set("Authorization", scope.Token)
		if scope.OrgContextID != "" {
			req.Header.Set(headerBizdomain, scope.OrgContextID)
		}
	}

	log := c.logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Bool("scoped", scope != nil && scope.OrgContextID != ""),
	)
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("crm request failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Warn("crm response read failed", zap.Error(err))
		return fmt.Errorf("%w: read %s response: %w", ErrTransport, path, err)
	}
	log.Debug("crm request finished",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("bytes", len(data)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		log.Warn("crm request rejected", zap.Int("status", resp.StatusCode), zap.String("message", apiErr.Message))
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return nil
}

// errorMessage extracts a human message from an error body.
func errorMessage(data []byte) string {
	var parsed struct {
		Message      string `json:"Message"`
		ErrorMessage string `json:"ErrorMessage"`
		Error        string `json:"Error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		for _, candidate := range []string{parsed.Message, parsed.ErrorMessage, parsed.Error} {
			if msg := strings.TrimSpace(candidate); msg != "" {
				return msg
			}
		}
	}
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "<") {
		return ""
	}
	if runes := []rune(text); len(runes) > maxErrorMessageLength {
		text = string(runes[:maxErrorMessageLength]) + "…"
	}
	return text
}
