package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Register creates an account and returns the issued session.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*AuthResponse, error) {
	r := request{method: http.MethodPost, path: "/api/auth/register", contentType: "application/json"}
	body, err := jsonBody(r.operation(), in)
	if err != nil {
		return nil, err
	}
	r.body = body

	var out AuthResponse
	if err := c.doJSON(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges a credential (email or phone) and password for a session.
// The password may be empty for phone-initiated login.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	r := request{
		method:      http.MethodPost,
		path:        "/api/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}
	var out AuthResponse
	if err := c.doJSON(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user the stored token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/api/auth/me", auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout asks the service to invalidate the stored token.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, request{method: http.MethodPost, path: "/api/auth/logout", auth: true}, nil)
}
