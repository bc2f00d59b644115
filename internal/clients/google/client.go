package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/hashicorp/go-multierror"

	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/model"
)

const fieldMask = "routes.duration,routes.staticDuration,routes.distanceMeters,routes.polyline.encodedPolyline"

// HTTPDoer is satisfied by *http.Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to Google Routes API v2
type Client struct {
	apiKey     string
	httpClient HTTPDoer
	baseURL    string
}

// RouteData is the processed result of one computeRoutes call
type RouteData struct {
	// DurationSeconds is the traffic-aware duration
	DurationSeconds int32
	// StaticDurationSeconds ignores current traffic, zero when not reported
	StaticDurationSeconds int32
	DistanceMeters        int32
	Polyline              string
}

// NewClient creates a new Google Routes API client
func NewClient(cfg config.GoogleConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://routes.googleapis.com"
	}
	return NewClientWithHTTPDoer(cfg.APIKey, baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTPDoer creates a client over a custom transport
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{apiKey: apiKey, baseURL: baseURL, httpClient: doer}
}

// GetRoutes computes every configured route. Routes that fail are left out of
// the result and reported together in the returned error, so callers can
// fall back per route.
func (c *Client) GetRoutes(ctx context.Context, routes []config.RouteConfig) ([]model.Route, error) {
	var result *multierror.Error
	out := make([]model.Route, 0, len(routes))

	for _, rc := range routes {
		data, err := c.ComputeRoute(ctx, rc.Origin, rc.Destination, rc.Waypoints)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("route %s: %w", rc.ID, err))
			continue
		}
		route := data.toRoute(rc)
		logging.Infow(ctx, "Computed route",
			"route", rc.ID,
			"distance_mi", fmt.Sprintf("%.1f", float64(route.DistanceM)/1609.34),
			"duration_min", route.DurationS/60)
		out = append(out, route)
	}

	return out, result.ErrorOrNil()
}

func (d *RouteData) toRoute(rc config.RouteConfig) model.Route {
	color := rc.Color
	if color == "" {
		color = config.DefaultRouteColor
	}
	route := model.Route{
		RouteID:     rc.ID,
		Name:        rc.Name,
		Color:       color,
		Origin:      rc.Origin,
		Destination: rc.Destination,
		Polyline:    d.Polyline,
		DistanceM:   int(d.DistanceMeters),
		DurationS:   int(d.DurationSeconds),
	}
	if d.StaticDurationSeconds > 0 {
		route.DurationS = int(d.StaticDurationSeconds)
		route.DurationInTrafficS = model.Ptr(int(d.DurationSeconds))
	}
	return route
}

// ComputeRoute requests a driving route between two addresses passing
// through waypoints without stopping
func (c *Client) ComputeRoute(ctx context.Context, origin, destination string, waypoints []string) (*RouteData, error) {
	request := routesRequest{
		Origin:            waypoint{Address: origin},
		Destination:       waypoint{Address: destination},
		TravelMode:        "DRIVE",
		RoutingPreference: "TRAFFIC_AWARE",
	}
	for _, w := range waypoints {
		request.Intermediates = append(request.Intermediates, waypoint{Address: w, Via: true})
	}

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/directions/v2:computeRoutes", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Routes API rejects requests without a field mask
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var response routesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Routes) == 0 {
		return nil, fmt.Errorf("no routes found in response")
	}

	return processRoute(response.Routes[0])
}

func processRoute(route googleRoute) (*RouteData, error) {
	duration, err := parseDuration(route.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration: %w", err)
	}
	data := &RouteData{
		DurationSeconds: duration,
		DistanceMeters:  route.DistanceMeters,
		Polyline:        route.Polyline.EncodedPolyline,
	}
	if route.StaticDuration != "" {
		if data.StaticDurationSeconds, err = parseDuration(route.StaticDuration); err != nil {
			return nil, fmt.Errorf("failed to parse static duration: %w", err)
		}
	}
	return data, nil
}

// parseDuration parses Google's duration format like "450s" to whole seconds
func parseDuration(durationStr string) (int32, error) {
	if durationStr == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	seconds, err := strconv.ParseFloat(strings.TrimSuffix(durationStr, "s"), 64)
	if err != nil {
		return 0, err
	}
	return int32(seconds), nil
}
