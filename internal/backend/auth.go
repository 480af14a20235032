package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fastexam/exam-portal/internal/credstore"
)

// TokenResponse is the payload of the exam API's login, register and
// refresh endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	CSRFToken   string `json:"csrf_token"`
}

// Login authenticates with the exam API and stores the issued token pair.
// The login endpoint names the field "username" but carries the email
// value, an API contract quirk. The full response payload
// is returned; transport and API errors propagate unchanged.
func (c *Client) Login(ctx context.Context, sid, email, password string) (*TokenResponse, error) {
	body := map[string]string{
		"username": email,
		"password": password,
	}
	var tr TokenResponse
	if err := c.do(ctx, sid, http.MethodPost, "/auth/login", body, &tr); err != nil {
		return nil, err
	}
	if err := c.storeTokens(ctx, sid, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Register creates an account and stores the issued token pair, same
// contract as Login.
func (c *Client) Register(ctx context.Context, sid, username, email, password string) (*TokenResponse, error) {
	body := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	var tr TokenResponse
	if err := c.do(ctx, sid, http.MethodPost, "/auth/register", body, &tr); err != nil {
		return nil, err
	}
	if err := c.storeTokens(ctx, sid, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Refresh exchanges the refresh cookie for a fresh token pair and stores it.
func (c *Client) Refresh(ctx context.Context, sid string) error {
	var tr TokenResponse
	if err := c.do(ctx, sid, http.MethodPost, "/auth/refresh", nil, &tr); err != nil {
		return err
	}
	return c.storeTokens(ctx, sid, &tr)
}

// Logout posts to the logout endpoint and then unconditionally clears the
// local credential store. Local session termination is the point, so a
// failed network call is returned only as a warning to the caller.
func (c *Client) Logout(ctx context.Context, sid string) error {
	postErr := c.do(ctx, sid, http.MethodPost, "/auth/logout", nil, nil)
	if clearErr := c.store.Clear(ctx, sid); clearErr != nil {
		return fmt.Errorf("clear credentials: %w", clearErr)
	}
	if postErr != nil {
		return fmt.Errorf("logout call failed (local session cleared): %w", postErr)
	}
	return nil
}

func (c *Client) storeTokens(ctx context.Context, sid string, tr *TokenResponse) error {
	creds := credstore.Credentials{
		AccessToken: tr.AccessToken,
		CSRFToken:   tr.CSRFToken,
	}
	if err := c.store.Save(ctx, sid, creds); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}
