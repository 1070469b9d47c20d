// Package authclient exchanges a username and password for an access token at
// the authentication endpoint.
package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTokenPath = "/auth/token"
	DefaultTimeout   = 10 * time.Second

	maxResponseBytes = 64 << 10
	tracerName       = "github.com/MrEthical07/sessionguard/authclient"
)

var (
	// ErrInvalidCredentials is returned when the endpoint rejects the credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnavailable is returned when the endpoint cannot be reached or fails.
	ErrUnavailable = errors.New("authentication endpoint unavailable")
	// ErrMalformedResponse is returned for success responses without a usable token.
	ErrMalformedResponse = errors.New("malformed authentication response")
)

// Config locates the authentication endpoint.
type Config struct {
	BaseURL   string
	TokenPath string
	Timeout   time.Duration
	UserAgent string
}

// Client posts form-encoded credentials and reads access_token from the JSON reply.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	tracer     trace.Tracer
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// New builds a Client. A nil httpClient gets a traced client honouring cfg.Timeout.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse auth base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("auth base url %q must be http or https", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("auth base url %q has no host", cfg.BaseURL)
	}

	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		tokenPath = DefaultTokenPath
	}
	endpoint := base.JoinPath(tokenPath)

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Client{
		endpoint:   endpoint.String(),
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// Endpoint returns the absolute token URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Exchange performs one credential exchange. It never retries.
func (c *Client) Exchange(ctx context.Context, username, password string) (token string, err error) {
	ctx, span := c.tracer.Start(ctx, "authclient.exchange",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("auth.username", username)),
	)
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "token issued")
		}
	}()

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		if detail := errorDetail(body); detail != "" {
			return "", fmt.Errorf("%w: %s", ErrInvalidCredentials, detail)
		}
		return "", ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(tr.AccessToken) == "" {
		return "", fmt.Errorf("%w: access_token missing", ErrMalformedResponse)
	}

	return tr.AccessToken, nil
}

// errorDetail extracts a FastAPI-style {"detail": ...} message.
func errorDetail(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || len(er.Detail) == 0 {
		return ""
	}
	var msg string
	if err := json.Unmarshal(er.Detail, &msg); err == nil {
		return msg
	}
	return string(er.Detail)
}
