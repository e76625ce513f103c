// This file implements the HTTP client with credential attachment and
// error-detail extraction.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sitewright-dev/sitewright/internal/logger"
)

// generatePath is the versioned base path for generation calls.
const generatePath = "/api/v1/generate"

// authPath is the versioned base path for credential calls.
const authPath = "/api/v1/auth"

// TokenSource supplies the bearer credential for outbound requests. An empty
// string means "no credential"; the request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// Error is a server-reported request failure. Detail carries the most
// specific message the server supplied.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Client issues the create/fetch/cancel/history calls. It is stateless: no
// retries, no streaming. Retry policy belongs to the transport channel.
type Client struct {
	base           string
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func()
	log            *logger.Logger
}

// NewClient builds a Client for the given base endpoint
// (e.g. "http://localhost:8000"). tokens may be nil for an unauthenticated
// client. onUnauthorized, if non-nil, is invoked once per 401 response so
// the caller can force a logout.
func NewClient(base string, tokens TokenSource, onUnauthorized func(), log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		base:           strings.TrimRight(base, "/"),
		http:           &http.Client{Timeout: 30 * time.Second},
		tokens:         tokens,
		onUnauthorized: onUnauthorized,
		log:            log,
	}
}

// CreateGeneration submits the business descriptor and returns the assigned
// generation id.
func (c *Client) CreateGeneration(ctx context.Context, info BusinessInfo) (*CreateResponse, error) {
	var resp CreateResponse
	if err := c.do(ctx, http.MethodPost, generatePath, info, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetStatus fetches the current status of a generation.
func (c *Client) GetStatus(ctx context.Context, generationID string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, generatePath+"/status/"+generationID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetResult fetches the final website artifact for a completed generation.
func (c *Client) GetResult(ctx context.Context, generationID string) (*ResultResponse, error) {
	var resp ResultResponse
	if err := c.do(ctx, http.MethodGet, generatePath+"/result/"+generationID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelGeneration asks the backend to abandon a generation.
func (c *Client) CancelGeneration(ctx context.Context, generationID string) error {
	return c.do(ctx, http.MethodDelete, generatePath+"/"+generationID, nil, nil)
}

// History lists past generations known to the backend.
func (c *Client) History(ctx context.Context) ([]HistoryEntry, error) {
	var resp struct {
		Generations []HistoryEntry `json:"generations"`
	}
	if err := c.do(ctx, http.MethodGet, generatePath+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Generations, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, authPath+"/login", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup registers a new account and returns a bearer token.
func (c *Client) Signup(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, authPath+"/signup", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the current token server-side. Local credential
// clearing is the caller's job.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, authPath+"/logout", nil, nil)
}

// do performs one request/response exchange. Non-2xx responses become
// *Error with the server's detail field extracted when present.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Warn("request unauthorized", "method", method, "path", path)
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode, Detail: extractDetail(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshalling response: %w", err)
		}
	}
	return nil
}

// extractDetail digs the most specific message out of an error body. The
// backend reports either {"detail": "text"} or
// {"detail": {"message": "...", "errors": [...]}}.
func extractDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return text
	}

	var structured struct {
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	if err := json.Unmarshal(body.Detail, &structured); err == nil {
		if len(structured.Errors) > 0 {
			return strings.Join(structured.Errors, "; ")
		}
		return structured.Message
	}
	return ""
}
