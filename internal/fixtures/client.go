// Package fixtures fetches the recreational-sports game schedule from the
// league feed. The feed serves one JSON document of games per date.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/polyjacket/market-engine/internal/model"
)

const (
	// DefaultBaseURL is the schedule feed base URL.
	DefaultBaseURL = "https://api.polyjacket.dev/schedule"

	// Conservative defaults; the feed is a shared campus service.
	defaultRateLimit = 2.0 // requests per second
	defaultBurst     = 2
)

// Client is a schedule feed client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new schedule feed client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GamesOn fetches every fixture scheduled on one date.
func (c *Client) GamesOn(ctx context.Context, date time.Time) ([]model.Fixture, error) {
	params := url.Values{}
	params.Set("date", date.Format("2006-01-02"))

	var fixtures []model.Fixture
	if err := c.get(ctx, "/games", params, &fixtures); err != nil {
		return nil, err
	}

	// The per-date endpoint omits the date field on each row.
	day := date.Format("1/2/2006")
	for i := range fixtures {
		if fixtures[i].Date == "" {
			fixtures[i].Date = day
		}
	}
	return fixtures, nil
}

// GamesRange fetches fixtures for every date in [from, to], inclusive,
// one feed request per day.
func (c *Client) GamesRange(ctx context.Context, from, to time.Time) ([]model.Fixture, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("fixtures: range end %s before start %s",
			to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	var all []model.Fixture
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		fixtures, err := c.GamesOn(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("fixtures for %s: %w", day.Format("2006-01-02"), err)
		}
		all = append(all, fixtures...)
	}
	return all, nil
}

// get performs a GET request with rate limiting.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("feed error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
