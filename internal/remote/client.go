// Package remote is the HTTP client for the lending platform REST API.
//
// Every call is authenticated with the bearer token the API issued at sign-in.
// A missing token short-circuits the call before any request is built.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/simp-lee/lendpanel/internal/domain"
)

// maxBodyBytes caps how much of a response body is read into memory.
const maxBodyBytes = 64 << 20

// Recorder receives one observation per completed API call. class is the
// ErrorClass of a failed call, or "ok".
type Recorder interface {
	ObserveUpstream(kind, status, class string, elapsed time.Duration)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.example.com/v1".
	BaseURL string

	// Timeout bounds every request. Zero means 30s.
	Timeout time.Duration

	// UserAgent is sent on every request.
	UserAgent string

	// LoginPath is the endpoint that exchanges credentials for a token.
	LoginPath string

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client

	// Recorder is optional.
	Recorder Recorder
}

// Request describes one GET call.
type Request struct {
	// Kind labels the call for metrics ("list", "search", "date_range", ...).
	Kind     string
	Endpoint string
	Params   url.Values
}

// Client talks to the lending API.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	userAgent  string
	loginPath  string
	recorder   Recorder
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("remote: base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote: base url %q must use http or https", raw)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/auth/login/"
	}

	return &Client{
		base:       base,
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		loginPath:  loginPath,
		recorder:   cfg.Recorder,
	}, nil
}

// Get performs an authenticated GET and returns the raw response body.
func (c *Client) Get(ctx context.Context, token string, req Request) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	target := c.resolve(req.Endpoint, req.Params)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	return c.do(httpReq, req.Kind, req.Endpoint)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("remote: encode login payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(c.loginPath, nil), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("remote: build login request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	body, err := c.do(httpReq, "login", c.loginPath)
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) && appErr.Code == domain.CodeUnauthorized {
			return "", domain.NewAppError(domain.CodeUnauthorized, "invalid email or password", appErr.Err)
		}
		return "", err
	}

	token := DecodeToken(body)
	if token == "" {
		return "", toAppError(&APIError{
			StatusCode: http.StatusOK,
			Class:      ErrorClassDecode,
			Endpoint:   c.loginPath,
			Message:    "login response carries no token",
		})
	}
	return token, nil
}

func (c *Client) do(httpReq *http.Request, kind, endpoint string) (_ []byte, err error) {
	start := time.Now()
	status := "error"
	defer func() { c.observe(kind, status, err, start) }()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, toAppError(&APIError{
			Class:    ErrorClassNetwork,
			Endpoint: endpoint,
			Message:  "request failed",
			Err:      err,
		})
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, toAppError(&APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Endpoint:   endpoint,
			Message:    "read response body",
			Err:        err,
		})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, toAppError(&APIError{
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Endpoint:   endpoint,
			Message:    errorMessage(body, resp.StatusCode),
		})
	}
	return body, nil
}

func (c *Client) observe(kind, status string, err error, start time.Time) {
	if c.recorder == nil {
		return
	}
	if kind == "" {
		kind = "other"
	}
	class := "ok"
	if err != nil {
		class = string(ClassOf(err))
	}
	c.recorder.ObserveUpstream(kind, status, class, time.Since(start))
}

// resolve joins endpoint onto the base URL and encodes params.
func (c *Client) resolve(endpoint string, params url.Values) string {
	u := *c.base
	path, rawQuery, _ := strings.Cut(endpoint, "?")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = c.base.Path + path

	query, _ := url.ParseQuery(rawQuery)
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// errorMessage extracts a human-readable message from an error body.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, msg := range []string{payload.Detail, payload.Message, payload.Error} {
			if msg != "" {
				return msg
			}
		}
	}
	return http.StatusText(status)
}
