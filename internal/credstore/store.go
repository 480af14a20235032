// Package credstore holds the bearer and anti-forgery tokens issued by the
// exam API, keyed by the browser session id. It is the server-side stand-in
// for what a pure browser client would keep in local storage.
package credstore

import (
	"context"
	"errors"
)

// Credentials is the token pair the exam API issues on login, registration
// and refresh.
type Credentials struct {
	AccessToken string `json:"access_token"`
	CSRFToken   string `json:"csrf_token"`
}

// ErrNotFound is returned by Load when no credentials exist for a session.
// Callers that build outbound requests treat this as "send unauthenticated";
// the exam API is the sole enforcer of authorization.
var ErrNotFound = errors.New("credstore: no credentials for session")

// Store persists the token pair for a browser session.
type Store interface {
	Save(ctx context.Context, sessionID string, creds Credentials) error
	Load(ctx context.Context, sessionID string) (Credentials, error)
	Clear(ctx context.Context, sessionID string) error
}
