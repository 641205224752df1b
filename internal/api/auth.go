package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"finsight/internal/core"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

func (r authResponse) session(fallbackEmail string) core.Session {
	s := core.Session{
		Username: r.User.Username,
		Email:    r.User.Email,
		Token:    r.Token,
	}
	if s.Email == "" {
		s.Email = fallbackEmail
	}
	return s
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (core.Session, error) {
	const op = "login"
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return core.Session{}, validationError(op, errors.New("email and password are required"))
	}

	var resp authResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, op, http.MethodPost, "/auth/login", in, &resp); err != nil {
		return core.Session{}, err
	}
	if resp.Token == "" {
		return core.Session{}, &Error{Kind: KindServer, Op: op, Message: "login response carried no token"}
	}
	c.InvalidateCache()
	return resp.session(email), nil
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, username, email, password string) (core.Session, error) {
	const op = "register"
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	switch {
	case username == "":
		return core.Session{}, validationError(op, errors.New("username is required"))
	case !strings.Contains(email, "@"):
		return core.Session{}, validationError(op, errors.New("a valid email is required"))
	case len(password) < 6:
		return core.Session{}, validationError(op, errors.New("password must be at least 6 characters"))
	}

	var resp authResponse
	in := map[string]string{"username": username, "email": email, "password": password}
	if err := c.doJSON(ctx, op, http.MethodPost, "/auth/register", in, &resp); err != nil {
		return core.Session{}, err
	}
	if resp.Token == "" {
		return core.Session{}, &Error{Kind: KindServer, Op: op, Message: "register response carried no token"}
	}
	if resp.User.Username == "" {
		resp.User.Username = username
	}
	c.InvalidateCache()
	return resp.session(email), nil
}

// Logout ends the session server-side. Cached responses are dropped even
// when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	c.InvalidateCache()
	return c.doJSON(ctx, "logout", http.MethodPost, "/auth/logout", nil, nil)
}

// ResetPassword asks the backend to send a reset link to email.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	const op = "reset password"
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return validationError(op, errors.New("a valid email is required"))
	}
	return c.doJSON(ctx, op, http.MethodPost, "/auth/reset-password", map[string]string{"email": email}, nil)
}
