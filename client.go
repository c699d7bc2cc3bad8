package sessionx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

var validate = validator.New()

// User is the principal record returned by the backend. It is never persisted.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name,omitempty"`
	Role             string `json:"role,omitempty"`
	OrganizationID   string `json:"organization_id,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	IsActive         bool   `json:"is_active"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Email            string `json:"email" validate:"required"`
	Password         string `json:"password" validate:"required"`
	Name             string `json:"name,omitempty"`
	OrganizationName string `json:"organization_name" validate:"required"`
}

// AuthResponse is returned by login and signup.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// AuthAPI is the backend credential exchange the controller depends on.
type AuthAPI interface {
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error)
	Me(ctx context.Context, token string) (*User, error)
}

// Validate checks the login preconditions. Email format is left to the caller.
func (r LoginRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return newError(ErrCodeMissingCredentials, err)
	}
	return nil
}

// Validate checks the signup preconditions; organization_name is mandatory.
func (r SignupRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.StructField() == "OrganizationName" {
				return newError(ErrCodeMissingOrganization, err)
			}
		}
	}
	return newError(ErrCodeMissingCredentials, err)
}

// AuthClient talks to the backend auth endpoints over HTTP.
type AuthClient struct {
	baseURL string
	http    *http.Client
}

// AuthClientOption customizes an AuthClient.
type AuthClientOption func(*AuthClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) AuthClientOption {
	return func(a *AuthClient) {
		if c != nil {
			a.http = c
		}
	}
}

// NewAuthClient builds a client for cfg.BaseURL.
func NewAuthClient(cfg APIConfig, opts ...AuthClientOption) *AuthClient {
	cfg.normalize()
	c := &AuthClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token.
func (c *AuthClient) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, c.http, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return checkAuthResponse(&resp)
}

// Signup registers a new principal and organization.
func (c *AuthClient) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, c.http, http.MethodPost, "/auth/signup", req, &resp); err != nil {
		return nil, err
	}
	return checkAuthResponse(&resp)
}

// Me fetches the principal identified by token.
func (c *AuthClient) Me(ctx context.Context, token string) (*User, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	bearer := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.http), src)

	var user User
	if err := c.do(ctx, bearer, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *AuthClient) do(ctx context.Context, client *http.Client, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return newError(ErrCodeBackendAuth, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return newError(ErrCodeBackendAuth, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return newError(ErrCodeBackendAuth, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(ErrCodeBackendAuth, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return &Error{
			Code:    ErrCodeBackendAuth,
			Message: errorDetail(data, resp.StatusCode),
			Status:  resp.StatusCode,
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return newError(ErrCodeBackendAuth, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func checkAuthResponse(resp *AuthResponse) (*AuthResponse, error) {
	if resp.AccessToken == "" {
		return nil, newError(ErrCodeBackendAuth, errors.New("response did not include access_token"))
	}
	return resp, nil
}

// errorDetail pulls a human readable message out of an error body.
func errorDetail(body []byte, status int) string {
	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if s, ok := payload.Detail.(string); ok && s != "" {
			return s
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return errorMessages[ErrCodeBackendAuth]
}
