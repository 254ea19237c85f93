// Package apiclient is the shared JSON-over-HTTP plumbing behind the scan
// provider adapters: auth, rate limiting, tracing, metrics and typed errors.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"exposurewatch/internal/metrics"
)

// ErrNotConfigured is returned by New when the base URL or credentials are
// missing.
var ErrNotConfigured = errors.New("provider api not configured")

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   string
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api: %s %s: status %d: %s", e.Provider, e.Method, e.Path, e.StatusCode, e.Body)
}

// Auth decorates an outgoing request with credentials.
type Auth func(*http.Request)

func BearerAuth(token string) Auth {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

// BasicAuth sends key as the username with an empty password.
func BasicAuth(key string) Auth {
	return func(r *http.Request) { r.SetBasicAuth(key, "") }
}

type Config struct {
	Provider   string
	BaseURL    string
	Credential string
	Auth       func(credential string) Auth
	HTTPClient *http.Client
	Timeout    time.Duration
	RPS        float64
	Burst      int
	Metrics    metrics.ProviderMetrics
	Tracer     trace.Tracer
}

type Client struct {
	provider string
	base     *url.URL
	auth     Auth
	http     *http.Client
	limiter  *rate.Limiter
	metrics  metrics.ProviderMetrics
	tracer   trace.Tracer
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" || cfg.Credential == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrNotConfigured)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("%s base url: %w", cfg.Provider, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	return &Client{
		provider: cfg.Provider,
		base:     base,
		auth:     cfg.Auth(cfg.Credential),
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, burst),
		metrics:  m,
		tracer:   cfg.Tracer,
	}, nil
}

// Request describes one API call. Endpoint is a low-cardinality name used
// for spans and metrics.
type Request struct {
	Endpoint string
	Method   string
	Path     string
	Query    url.Values
	Body     any
}

// Do sends req and decodes a JSON response into out, which may be nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	ctx, span := c.tracer.Start(ctx, c.provider+"."+req.Endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider", c.provider),
			attribute.String("http.method", req.Method),
		))
	defer span.End()

	err := c.do(ctx, span, req, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) do(ctx context.Context, span trace.Span, req Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	u := c.base.JoinPath(req.Path)
	if strings.HasSuffix(req.Path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", req.Endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", req.Endpoint, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	c.auth(httpReq)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.ObserveProviderRequest(c.provider, req.Endpoint, 0, time.Since(start))
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveProviderRequest(c.provider, req.Endpoint, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Provider:   c.provider,
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.Endpoint, err)
	}
	return nil
}
