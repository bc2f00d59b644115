// Package udot reads traffic data from the UDOT Traffic API v2.
//
// Every endpoint returns the full statewide list, so responses are cached
// briefly and calls share one rate limiter (10 calls per minute by default).
package udot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/model"
)

// Endpoint names under /api/v2/get
const (
	endpointCameras        = "cameras"
	endpointRoadConditions = "roadconditions"
	endpointEvents         = "event"
	endpointWeather        = "weatherstations"
	endpointPasses         = "mountainpasses"
	endpointPlows          = "servicevehicles"
)

// Client provides access to the UDOT Traffic API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Cache
}

// NewClient creates a UDOT client from configuration
func NewClient(cfg config.UDOTConfig) *Client {
	limit, window := cfg.RateLimit, cfg.RateWindow
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
		cache:      cache.New(ttl, 2*ttl),
	}
}

// fetch decodes an endpoint's JSON list into out. A response that is not a
// list decodes as empty.
func (c *Client) fetch(ctx context.Context, endpoint string, out any) error {
	if cached, found := c.cache.Get(endpoint); found {
		logging.Debugw(ctx, "UDOT cache hit", "endpoint", endpoint)
		return json.Unmarshal(cached.([]byte), out)
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("udot %s: %w", endpoint, err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		logging.Warnw(ctx, "UDOT returned a non-list response", "endpoint", endpoint)
		trimmed = []byte("[]")
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("udot %s: failed to decode response: %w", endpoint, err)
	}

	c.cache.Set(endpoint, trimmed, cache.DefaultExpiration)
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("format", "json")
	requestURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limit exceeded")
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("invalid API key")
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// Cameras returns every UDOT camera
func (c *Client) Cameras(ctx context.Context) ([]model.Camera, error) {
	var records []cameraRecord
	if err := c.fetch(ctx, endpointCameras, &records); err != nil {
		return nil, err
	}
	out := make([]model.Camera, len(records))
	for i, r := range records {
		out[i] = r.model()
	}
	logging.Debugw(ctx, "Fetched UDOT cameras", "count", len(out))
	return out, nil
}

// RoadConditions returns every reported road condition
func (c *Client) RoadConditions(ctx context.Context) ([]model.RoadCondition, error) {
	var records []roadConditionRecord
	if err := c.fetch(ctx, endpointRoadConditions, &records); err != nil {
		return nil, err
	}
	out := make([]model.RoadCondition, len(records))
	for i, r := range records {
		out[i] = r.model()
	}
	return out, nil
}

// Events returns every traffic event (closures, incidents, construction)
func (c *Client) Events(ctx context.Context) ([]model.Event, error) {
	var records []eventRecord
	if err := c.fetch(ctx, endpointEvents, &records); err != nil {
		return nil, err
	}
	out := make([]model.Event, len(records))
	for i, r := range records {
		out[i] = r.model()
	}
	return out, nil
}

// WeatherStations returns every roadside weather station reading
func (c *Client) WeatherStations(ctx context.Context) ([]model.WeatherStation, error) {
	var records []weatherRecord
	if err := c.fetch(ctx, endpointWeather, &records); err != nil {
		return nil, err
	}
	out := make([]model.WeatherStation, len(records))
	for i, r := range records {
		out[i] = r.model()
	}
	return out, nil
}

// MountainPasses returns every mountain pass report
func (c *Client) MountainPasses(ctx context.Context) ([]model.MountainPass, error) {
	var records []passRecord
	if err := c.fetch(ctx, endpointPasses, &records); err != nil {
		return nil, err
	}
	out := make([]model.MountainPass, len(records))
	for i, r := range records {
		out[i] = r.model()
	}
	return out, nil
}

// SnowPlows returns every service vehicle position
func (c *Client) SnowPlows(ctx context.Context) ([]model.SnowPlow, error) {
	var records []plowRecord
	if err := c.fetch(ctx, endpointPlows, &records); err != nil {
		return nil, err
	}
	out := make([]model.SnowPlow, len(records))
	for i, r := range records {
		out[i] = r.model()
	}
	return out, nil
}
