// Package backend is the portal's client for the certification REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/ports"
	"github.com/typeapproval/portal/internal/pkg/metrics"
)

const defaultTimeout = 10 * time.Second

// Config captures the settings for reaching the backend.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the backend. A Client bound to a TokenStore with WithTokens
// sends that store's credential on every request.
type Client struct {
	baseURL *url.URL
	base    http.RoundTripper
	timeout time.Duration
	http    *http.Client
	tokens  ports.TokenStore
	flight  *singleflight.Group
	log     zerolog.Logger
}

// New returns an unbound client. base may be nil to use http.DefaultTransport.
func New(cfg Config, base http.RoundTripper, log zerolog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", cfg.BaseURL)
	}
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL: u,
		base:    base,
		timeout: timeout,
		flight:  &singleflight.Group{},
		log:     log,
	}
	c.http = &http.Client{Transport: &bearerTransport{base: base}, Timeout: timeout}
	return c, nil
}

// WithTokens returns a copy of c that authenticates with the credential held
// by tokens.
func (c *Client) WithTokens(tokens ports.TokenStore) *Client {
	cp := *c
	cp.tokens = tokens
	cp.http = &http.Client{
		Transport: &bearerTransport{base: c.base, tokens: tokens},
		Timeout:   c.timeout,
	}
	return &cp
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Transport returns the credential-attaching round tripper of c.
func (c *Client) Transport() http.RoundTripper {
	return c.http.Transport
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	JWT string `json:"jwt"`
}

type signUpRequest struct {
	FirstName  string `json:"firstName"`
	Patronymic string `json:"patronymic,omitempty"`
	SecondName string `json:"secondName"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type setRolesRequest struct {
	Roles []domain.Role `json:"roles"`
}

// SignIn exchanges credentials for a bearer token (POST /auth/signin).
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var out signInResponse
	if err := c.do(ctx, "signin", http.MethodPost, "/auth/signin", signInRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	if out.JWT == "" {
		return "", fmt.Errorf("signin: %w: empty credential", domain.ErrBackendUnavailable)
	}
	return out.JWT, nil
}

// SignUp creates an account (POST /auth/signup).
func (c *Client) SignUp(ctx context.Context, in ports.SignUpInput) error {
	return c.do(ctx, "signup", http.MethodPost, "/auth/signup", signUpRequest{
		FirstName:  in.FirstName,
		Patronymic: in.Patronymic,
		SecondName: in.SecondName,
		Email:      in.Email,
		Password:   in.Password,
	}, nil)
}

// Profile fetches the user behind the bound credential (GET /users/profile).
// Concurrent calls for the same credential share one backend round trip.
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	if c.tokens == nil {
		return nil, domain.ErrUnauthenticated
	}
	token, err := c.tokens.Read(ctx)
	if err != nil || token == "" {
		return nil, domain.ErrUnauthenticated
	}

	v, err, _ := c.flight.Do(token, func() (any, error) {
		var u domain.User
		if err := c.do(context.WithoutCancel(ctx), "profile", http.MethodGet, "/users/profile", nil, &u); err != nil {
			return nil, err
		}
		return &u, nil
	})
	if err != nil {
		return nil, err
	}
	u := *v.(*domain.User)
	return &u, nil
}

// ListUsers returns every account (GET /users/all).
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	if err := c.do(ctx, "users_all", http.MethodGet, "/users/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUser returns one account (GET /users/:id).
func (c *Client) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, "users_get", http.MethodGet, "/users/"+strconv.FormatInt(id, 10), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserRoles replaces an account's roles (PUT /users/:id/roles). When the
// backend answers without a body the account is re-read.
func (c *Client) SetUserRoles(ctx context.Context, id int64, roles []domain.Role) (*domain.User, error) {
	var u domain.User
	path := "/users/" + strconv.FormatInt(id, 10) + "/roles"
	if err := c.do(ctx, "users_roles", http.MethodPut, path, setRolesRequest{Roles: roles}, &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return c.GetUser(ctx, id)
	}
	return &u, nil
}

// Ping reports whether the backend answers HTTP at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", endpoint, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		c.log.Warn().Err(err).Str("endpoint", endpoint).Msg("backend request failed")
		return fmt.Errorf("%s: %w: %v", endpoint, domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	metrics.BackendRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", endpoint, err)
	}

	if err := statusError(resp.StatusCode, raw); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}

// statusError maps a non-2xx answer to the portal's error taxonomy.
func statusError(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return domain.ErrUnauthenticated
	case code == http.StatusForbidden:
		return domain.ErrForbidden
	case code == http.StatusNotFound:
		return domain.ErrUserNotFound
	case code == http.StatusConflict:
		return domain.ErrUserExists
	case code >= 400 && code < 500:
		return &domain.BackendError{Status: code, Message: errorMessage(code, body)}
	default:
		return fmt.Errorf("%w: status %d", domain.ErrBackendUnavailable, code)
	}
}

// errorMessage extracts the user-facing text of a backend error body. The
// backend sends "message" either as a string or as a list of strings.
func errorMessage(code int, body []byte) string {
	var env struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		var one string
		if json.Unmarshal(env.Message, &one) == nil && one != "" {
			return one
		}
		var many []string
		if json.Unmarshal(env.Message, &many) == nil && len(many) > 0 {
			return strings.Join(many, "; ")
		}
		if env.Error != "" {
			return env.Error
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && !json.Valid(body) {
		return s
	}
	return http.StatusText(code)
}
