package client

import (
	"context"
	"net/http"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
)

// Login exchanges credentials for a bearer token.
func (c *FiscalClient) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	err := c.getJSON(ctx, domain.Session{}, call{
		method:   http.MethodPost,
		path:     "/api/auth/login",
		endpoint: "auth.login",
		resource: "user",
		id:       req.Email,
		body:     jsonBody(req),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates a user account and returns its first token.
func (c *FiscalClient) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	err := c.getJSON(ctx, domain.Session{}, call{
		method:   http.MethodPost,
		path:     "/api/auth/registro",
		endpoint: "auth.registro",
		resource: "user",
		id:       req.Email,
		body:     jsonBody(req),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me resolves the session's token to its user.
func (c *FiscalClient) Me(ctx context.Context, sess domain.Session) (*domain.User, error) {
	var user domain.User
	err := c.getJSON(ctx, sess, call{
		method:   http.MethodGet,
		path:     "/api/auth/me",
		endpoint: "auth.me",
		resource: "user",
		id:       "me",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Health probes the backend and its database.
func (c *FiscalClient) Health(ctx context.Context) (*domain.BackendHealth, error) {
	var health domain.BackendHealth
	err := c.getJSON(ctx, domain.Session{}, call{
		method:   http.MethodGet,
		path:     "/api/health",
		endpoint: "health",
		resource: "health",
	}, &health)
	if err != nil {
		return nil, err
	}
	return &health, nil
}
