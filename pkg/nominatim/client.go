// Package nominatim geocodes free-text addresses with the OSM Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	// DefaultURL is the public Nominatim endpoint.
	DefaultURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent identifies the app; Nominatim rejects anonymous clients.
	DefaultUserAgent = "NeighborhoodExplorer/1.0"
	// DefaultLimit is the number of search candidates requested.
	DefaultLimit = 5
)

// Place is a geocoding candidate.
type Place struct {
	PlaceID     int64             `json:"place_id"`
	DisplayName string            `json:"display_name"`
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	Address     map[string]string `json:"address,omitempty"`
}

// Client resolves addresses to coordinates and back.
type Client interface {
	Search(ctx context.Context, query string) ([]Place, error)
	Reverse(ctx context.Context, lat, lng float64) (*Place, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at another Nominatim instance.
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

// WithRateLimit sets requests per second. The public usage policy allows 1.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

// NewClient creates a Nominatim Client.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    DefaultURL,
		userAgent:  DefaultUserAgent,
		limiter:    rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rawPlace mirrors the wire format, where coordinates are strings.
type rawPlace struct {
	PlaceID     int64             `json:"place_id"`
	DisplayName string            `json:"display_name"`
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	Address     map[string]string `json:"address,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func (r rawPlace) toPlace() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, eris.Wrapf(err, "nominatim: parse lat %q", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, eris.Wrapf(err, "nominatim: parse lon %q", r.Lon)
	}
	return Place{
		PlaceID:     r.PlaceID,
		DisplayName: r.DisplayName,
		Lat:         lat,
		Lng:         lng,
		Address:     r.Address,
	}, nil
}

// Search returns up to DefaultLimit candidates for a free-text query.
func (c *client) Search(ctx context.Context, query string) ([]Place, error) {
	params := url.Values{
		"q":              {query},
		"format":         {"json"},
		"limit":          {strconv.Itoa(DefaultLimit)},
		"addressdetails": {"1"},
	}

	var raw []rawPlace
	if err := c.get(ctx, "/search", params, &raw); err != nil {
		return nil, eris.Wrap(err, "nominatim: search")
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		p, err := r.toPlace()
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, nil
}

// Reverse returns the address nearest to (lat, lng).
func (c *client) Reverse(ctx context.Context, lat, lng float64) (*Place, error) {
	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lng, 'f', -1, 64)},
		"format": {"json"},
	}

	var raw rawPlace
	if err := c.get(ctx, "/reverse", params, &raw); err != nil {
		return nil, eris.Wrap(err, "nominatim: reverse")
	}
	if raw.Error != "" {
		return nil, eris.Errorf("nominatim: reverse: %s", raw.Error)
	}
	p, err := raw.toPlace()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read body")
	}
	return eris.Wrap(json.Unmarshal(body, out), "parse response")
}
