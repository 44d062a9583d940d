package itf

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/pkg/configuration"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/httpapi"
)

// Client sends requests as one identity. Mutating requests get a CSRF token
// fetched on first use unless WithoutCSRF was called.
type Client struct {
	suite  *Suite
	userID uuid.UUID
	token  string
	noCSRF bool
}

func (c *Client) WithoutCSRF() *Client {
	cp := *c
	cp.noCSRF = true
	return &cp
}

// WithCSRFToken sends token instead of fetching one.
func (c *Client) WithCSRFToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) GET(path string) *Request    { return c.newRequest(http.MethodGet, path) }
func (c *Client) POST(path string) *Request   { return c.newRequest(http.MethodPost, path) }
func (c *Client) PUT(path string) *Request    { return c.newRequest(http.MethodPut, path) }
func (c *Client) DELETE(path string) *Request { return c.newRequest(http.MethodDelete, path) }

func (c *Client) newRequest(method, path string) *Request {
	return &Request{client: c, method: method, path: path, header: http.Header{}}
}

func (c *Client) csrfToken(tb testing.TB) string {
	tb.Helper()
	if c.token != "" {
		return c.token
	}
	var out struct {
		Token string `json:"token"`
	}
	c.GET(constants.APIPrefix + "/csrf-token").Expect(tb).Status(http.StatusOK).JSON(&out)
	c.token = out.Token
	return c.token
}

type Request struct {
	client *Client
	method string
	path   string
	header http.Header
	body   []byte
}

func (r *Request) Header(key, value string) *Request {
	r.header.Set(key, value)
	return r
}

// JSON encodes v as the request body.
func (r *Request) JSON(v any) *Request {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	r.body = b
	r.header.Set("Content-Type", "application/json")
	return r
}

// Body sends raw bytes with contentType.
func (r *Request) Body(contentType string, b []byte) *Request {
	r.body = b
	if contentType != "" {
		r.header.Set("Content-Type", contentType)
	}
	return r
}

// Expect sends the request through the suite router and records the response.
func (r *Request) Expect(tb testing.TB) *Response {
	tb.Helper()
	c := r.client

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	for k, v := range r.header {
		req.Header[k] = v
	}
	if c.userID != uuid.Nil {
		req.Header.Set(configuration.Use().Auth.UserIDHeader, c.userID.String())
	}
	mutating := r.method != http.MethodGet && r.method != http.MethodHead
	if mutating && !c.noCSRF && c.userID != uuid.Nil && req.Header.Get(constants.CSRFTokenHeader) == "" {
		req.Header.Set(constants.CSRFTokenHeader, c.csrfToken(tb))
	}

	rec := httptest.NewRecorder()
	c.suite.Handler.ServeHTTP(rec, req)
	return &Response{tb: tb, Recorder: rec}
}

type Response struct {
	tb       testing.TB
	Recorder *httptest.ResponseRecorder
}

func (r *Response) Status(code int) *Response {
	r.tb.Helper()
	if r.Recorder.Code != code {
		r.tb.Fatalf("expected status %d, got %d: %s", code, r.Recorder.Code, r.Recorder.Body.String())
	}
	return r
}

// JSON decodes the body into dst.
func (r *Response) JSON(dst any) *Response {
	r.tb.Helper()
	if err := json.Unmarshal(r.Recorder.Body.Bytes(), dst); err != nil {
		r.tb.Fatalf("decode response %q: %v", r.Recorder.Body.String(), err)
	}
	return r
}

// Error decodes the body as an error envelope.
func (r *Response) Error() httpapi.ErrorEnvelope {
	r.tb.Helper()
	var env httpapi.ErrorEnvelope
	r.JSON(&env)
	return env
}

func (r *Response) Header(key string) string {
	return r.Recorder.Header().Get(key)
}

func (r *Response) Bytes() []byte {
	return r.Recorder.Body.Bytes()
}
