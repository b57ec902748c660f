// Package authapi is the REST client for the upstream authentication
// collaborator. It implements session.Authenticator.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/crewboard/crewboard/internal/session"
)

// Client talks to the authentication endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client for the given API base URL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  session.User `json:"user"`
}

type statusResponse struct {
	User session.User `json:"user"`
}

// RegisterInput carries a new-account request.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Register creates an account upstream.
func (c *Client) Register(ctx context.Context, input RegisterInput) (*session.User, error) {
	var out statusResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", input, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Login exchanges credentials for a token/user pair.
func (c *Client) Login(ctx context.Context, email, password string) (string, *session.User, error) {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", credentialsPayload{Email: email, Password: password}, &out); err != nil {
		return "", nil, err
	}
	return out.Token, &out.User, nil
}

// Logout invalidates the token server-side.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// Status validates a token and returns the current user profile.
func (c *Client) Status(ctx context.Context, token string) (*session.User, error) {
	var out statusResponse
	if err := c.do(ctx, http.MethodGet, "/auth/status", token, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// IsUnavailable reports whether the error was a transport or server failure,
// satisfying session.Classifier.
func (c *Client) IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func (c *Client) do(ctx context.Context, method, path, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("authapi: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("authapi: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &Error{Status: 0}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
		return decodeError(res.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("authapi: decode response: %w", err)
	}
	return nil
}
