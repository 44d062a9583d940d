// Package apiclient is a small client for the testbench HTTP API. It keeps a CSRF
// token per principal and refreshes it when the server rejects it.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/pkg/constants"
)

const (
	maxCSRFAttempts  = 3
	defaultBaseDelay = 200 * time.Millisecond

	codeCSRFInvalid = "CSRF_TOKEN_INVALID"
)

var (
	// ErrUnauthorized wraps every 401. It is never retried.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrCSRFSync is returned when no CSRF token could be obtained within the retry budget.
	ErrCSRFSync = errors.New("csrf token synchronisation failed")
)

// APIError is a non-2xx response carrying the JSON error envelope.
type APIError struct {
	Status  int               `json:"-"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error status=%d code=%s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseDelay sets the first retry delay; later ones double it.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

func WithUserIDHeader(header string) Option {
	return func(c *Client) {
		if strings.TrimSpace(header) != "" {
			c.userIDHeader = header
		}
	}
}

type Client struct {
	baseURL      *url.URL
	userID       uuid.UUID
	userIDHeader string
	httpClient   *http.Client
	baseDelay    time.Duration

	mu        sync.Mutex
	csrfToken string
}

// New returns a client acting as userID against baseURL.
func New(baseURL string, userID uuid.UUID, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", baseURL)
	}
	c := &Client{
		baseURL:      u,
		userID:       userID,
		userIDHeader: "X-User-Id",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseDelay:    defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.csrfToken
}

// RefreshCSRFToken fetches a fresh token. Transient failures are retried up to three
// attempts in total with a doubling delay; a 401 is returned at once.
func (c *Client) RefreshCSRFToken(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", errors.New("context cannot be nil")
	}

	var lastErr error
	for attempt := 1; attempt <= maxCSRFAttempts; attempt++ {
		if attempt > 1 {
			delay := c.baseDelay << (attempt - 2)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var out struct {
			Token string `json:"token"`
		}
		err := c.send(ctx, http.MethodGet, constants.APIPrefix+"/csrf-token", nil, nil, "", &out)
		if errors.Is(err, ErrUnauthorized) {
			return "", err
		}
		if err != nil {
			lastErr = err
			continue
		}
		if out.Token == "" {
			lastErr = errors.New("empty csrf token in response")
			continue
		}

		c.mu.Lock()
		c.csrfToken = out.Token
		c.mu.Unlock()
		return out.Token, nil
	}
	return "", fmt.Errorf("%w: %w", ErrCSRFSync, lastErr)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// do sends one API call. Mutating calls carry the CSRF token; a stale token is
// refreshed and the call replayed once.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if !isMutating(method) {
		return c.send(ctx, method, path, query, body, "", out)
	}

	token := c.currentToken()
	if token == "" {
		var err error
		if token, err = c.RefreshCSRFToken(ctx); err != nil {
			return err
		}
	}
	err := c.send(ctx, method, path, query, body, token, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden || apiErr.Code != codeCSRFInvalid {
		return err
	}
	if token, err = c.RefreshCSRFToken(ctx); err != nil {
		return err
	}
	return c.send(ctx, method, path, query, body, token, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, reqBody any, csrf string, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("json marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(c.userIDHeader, c.userID.String())
	if csrf != "" {
		req.Header.Set(constants.CSRFTokenHeader, csrf)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("http read: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("json unmarshal response: %w", err)
	}
	return nil
}
