package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/throttle/pkg/telemetry/logging"
	"mercator-hq/throttle/pkg/telemetry/tracing"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	// RequestIDHeader carries a per-request identifier.
	RequestIDHeader = "X-Request-ID"

	// maxErrorBody is how much of a failed response is kept in HTTPError.
	maxErrorBody = 512
)

// Connection is a pooled HTTP client bound to one site.
type Connection struct {
	site   *url.URL
	client *http.Client
	logger *slog.Logger
	tracer trace.Tracer

	userAgent string
	requests  atomic.Int64
	resets    atomic.Int64
}

// ConnectionOption configures a Connection.
type ConnectionOption func(c *Connection)

// WithHTTPClient replaces the pooled client.
func WithHTTPClient(client *http.Client) ConnectionOption {
	return func(c *Connection) {
		c.client = client
	}
}

// WithConnectionLogger sets the logger used for request logs.
func WithConnectionLogger(logger *slog.Logger) ConnectionOption {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithConnectionTracer sets the tracer used for request spans.
func WithConnectionTracer(tracer trace.Tracer) ConnectionOption {
	return func(c *Connection) {
		c.tracer = tracer
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ConnectionOption {
	return func(c *Connection) {
		c.userAgent = ua
	}
}

// NewConnection creates a connection to site, which must be an absolute
// http or https URL.
func NewConnection(site string, opts ...ConnectionOption) (*Connection, error) {
	u, err := url.Parse(site)
	if err != nil {
		return nil, fmt.Errorf("invalid site %q: %w", site, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid site %q: must be an absolute http or https URL", site)
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Connection{
		site: u,
		client: &http.Client{
			Transport: transport,
			Timeout:   DefaultTimeout,
		},
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer(tracing.InstrumentationName),
		userAgent: "throttle",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Site returns the base URL.
func (c *Connection) Site() string {
	return c.site.String()
}

// Requests returns the number of requests sent.
func (c *Connection) Requests() int64 {
	return c.requests.Load()
}

// Resets returns how many times Reset was called.
func (c *Connection) Resets() int64 {
	return c.resets.Load()
}

// Reset drops idle pooled connections so the next request dials afresh.
func (c *Connection) Reset() {
	c.resets.Add(1)
	c.client.CloseIdleConnections()
}

// URL resolves path against the site.
func (c *Connection) URL(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.site.String() + path
	}
	return c.site.ResolveReference(ref).String()
}

// Get requests path and returns the response body. Responses outside the
// 2xx range are returned as *HTTPError.
func (c *Connection) Get(ctx context.Context, path string) ([]byte, error) {
	target := c.URL(path)

	requestID := logging.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.WithRequestID(ctx, requestID)
	}

	ctx, span := c.tracer.Start(ctx, "resource.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", http.MethodGet),
			attribute.String("http.url", target),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	body, status, err := c.do(ctx, target, requestID)
	if status != 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	tracing.SetStatus(span, err)
	return body, err
}

func (c *Connection) do(ctx context.Context, target, requestID string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	tracing.Inject(ctx, req.Header)

	c.requests.Add(1)
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("GET %s: failed to read body: %w", target, err)
	}

	c.logger.DebugContext(ctx, "resource request",
		"request_id", requestID,
		"url", target,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, resp.StatusCode, &HTTPError{
			Method:     http.MethodGet,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       snippet,
		}
	}

	return body, resp.StatusCode, nil
}
