// Package backend is the HTTP client for the external exam API. Every
// outbound request passes through a single transport that attaches the
// stored bearer token and, on mutating methods, the anti-forgery token.
// The portal never rejects a call locally for missing credentials; the
// exam API is the sole enforcer of authorization.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fastexam/exam-portal/internal/credstore"
	"github.com/fastexam/exam-portal/internal/metrics"
)

// APIError is a non-2xx response from the exam API, surfaced unchanged.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exam api: status %d: %s", e.Status, e.Body)
}

// Client issues authenticated calls to the exam API on behalf of a browser
// session.
type Client struct {
	baseURL       string
	httpc         *http.Client
	store         credstore.Store
	refreshWindow time.Duration
	log           zerolog.Logger
}

// NewClient creates a Client. All requests go through a header-injecting
// transport; no per-call opt-out exists.
func NewClient(baseURL string, store credstore.Store, timeout, refreshWindow time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Timeout:   timeout,
			Transport: &authTransport{base: http.DefaultTransport, store: store},
		},
		store:         store,
		refreshWindow: refreshWindow,
		log:           log.With().Str("component", "backend_client").Logger(),
	}
}

type sessionIDKey struct{}

func withSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sid)
}

func sessionIDFrom(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey{}).(string)
	return sid, ok
}

// mutating is the method set that carries the anti-forgery header.
var mutating = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// authTransport attaches Authorization and X-CSRF-Token headers from the
// credential store. A missing token pair produces an unauthenticated
// request sent as-is.
type authTransport struct {
	base  http.RoundTripper
	store credstore.Store
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	sid, ok := sessionIDFrom(req.Context())
	if !ok {
		return t.base.RoundTrip(req)
	}

	creds, err := t.store.Load(req.Context(), sid)
	if err != nil {
		// ErrNotFound and store failures both degrade to an
		// unauthenticated request; the API rejects what it must.
		return t.base.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	if creds.AccessToken != "" {
		r.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	}
	if creds.CSRFToken != "" && mutating[r.Method] {
		r.Header.Set("X-CSRF-Token", creds.CSRFToken)
	}
	return t.base.RoundTrip(r)
}

// do performs one JSON round trip for a browser session. Protected calls
// (everything outside /auth/) refresh the token proactively when it is
// about to expire and retry exactly once after a 401 if a refresh succeeds.
func (c *Client) do(ctx context.Context, sid, method, path string, body, out interface{}) error {
	authCall := strings.HasPrefix(path, "/auth/")

	if !authCall {
		c.maybeRefresh(ctx, sid)
	}

	status, respBody, err := c.roundTrip(ctx, sid, method, path, body)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(path, "transport_error").Inc()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if status == http.StatusUnauthorized && !authCall {
		if refreshErr := c.Refresh(ctx, sid); refreshErr == nil {
			metrics.TokenRefreshes.WithLabelValues("retry_401").Inc()
			status, respBody, err = c.roundTrip(ctx, sid, method, path, body)
			if err != nil {
				metrics.BackendRequests.WithLabelValues(path, "transport_error").Inc()
				return fmt.Errorf("%s %s: %w", method, path, err)
			}
		}
	}

	if status < 200 || status >= 300 {
		metrics.BackendRequests.WithLabelValues(path, "api_error").Inc()
		return &APIError{Status: status, Body: strings.TrimSpace(string(respBody))}
	}
	metrics.BackendRequests.WithLabelValues(path, "ok").Inc()

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, sid, method, path string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(withSessionID(ctx, sid), method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// maybeRefresh refreshes the stored token when its exp claim falls inside
// the refresh window. Best-effort: any failure leaves the old token in
// place and the 401 path takes over.
func (c *Client) maybeRefresh(ctx context.Context, sid string) {
	creds, err := c.store.Load(ctx, sid)
	if err != nil || creds.AccessToken == "" {
		return
	}
	if !expiresWithin(creds.AccessToken, c.refreshWindow) {
		return
	}
	if err := c.Refresh(ctx, sid); err != nil {
		c.log.Debug().Err(err).Msg("Proactive refresh failed")
		return
	}
	metrics.TokenRefreshes.WithLabelValues("proactive").Inc()
}

// IsAPIError reports whether err is an exam API error with the given status.
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
