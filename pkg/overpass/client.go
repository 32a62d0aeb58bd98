// Package overpass queries the OpenStreetMap Overpass API for points of interest.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/locale-cli/internal/resilience"
)

const (
	// DefaultURL is the public Overpass interpreter endpoint.
	DefaultURL = "https://overpass-api.de/api/interpreter"
	// DefaultUserAgent identifies the app to OSM services.
	DefaultUserAgent = "NeighborhoodExplorer/1.0"
	// DefaultQueryTimeoutSecs is the server-side [timeout:N] setting.
	DefaultQueryTimeoutSecs = 30
)

// Client fetches raw POI elements around a point.
type Client interface {
	// Fetch returns every allow-listed element within radiusMeters of (lat, lng).
	// It fails with *NetworkError on transport or non-2xx responses and with
	// *ParseError on a malformed payload.
	Fetch(ctx context.Context, lat, lng float64, radiusMeters int) ([]Element, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at another Overpass instance.
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = u
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *client) {
		c.userAgent = ua
	}
}

// WithRateLimit caps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithQueryTimeout sets the server-side query timeout in seconds.
func WithQueryTimeout(secs int) Option {
	return func(c *client) {
		if secs > 0 {
			c.queryTimeout = secs
		}
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

type client struct {
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	limiter      *rate.Limiter
	queryTimeout int
	retry        resilience.RetryConfig
}

// NewClient creates an Overpass Client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      DefaultURL,
		userAgent:    DefaultUserAgent,
		limiter:      rate.NewLimiter(1, 1), // public instance allows a couple of slots per IP
		queryTimeout: DefaultQueryTimeoutSecs,
		retry:        resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.ShouldRetry = retryable
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("overpass", "fetch")
	}
	return c
}

func (c *client) Fetch(ctx context.Context, lat, lng float64, radiusMeters int) ([]Element, error) {
	query := BuildQuery(lat, lng, radiusMeters, c.queryTimeout)
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Element, error) {
		return c.do(ctx, query)
	})
}

func (c *client) do(ctx context.Context, query string) ([]Element, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Err: err}
	}

	body := url.Values{"data": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &NetworkError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Status: resp.Status, Err: err}
	}
	return decode(raw)
}

func decode(raw []byte) ([]Element, error) {
	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &ParseError{Err: err}
	}
	if r.Elements == nil {
		return nil, &ParseError{Err: errors.New(`missing "elements" array`)}
	}
	if r.Remark != "" {
		// Overpass reports runtime errors (e.g. query timeout) as a remark on a 200.
		zap.L().Warn("overpass: response remark",
			zap.String("remark", r.Remark),
			zap.Int("elements", len(*r.Elements)),
		)
	}
	return *r.Elements, nil
}

func retryable(err error) bool {
	var ne *NetworkError
	if !errors.As(err, &ne) {
		return false
	}
	if ne.StatusCode == 0 {
		return resilience.IsTransient(ne.Err)
	}
	return resilience.IsTransientHTTPStatus(ne.StatusCode)
}
