package services

import (
	"context"
	"fmt"

	"github.com/dpup/wolfcreekpass/server/internal/model"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
)

// CaptureView is a capture with its resolved image URL
type CaptureView struct {
	model.CaptureRecord
	ImageURL string `json:"image_url"`
}

// Dashboard is the complete published state of one cycle
type Dashboard struct {
	Cycle      model.CycleSummary     `json:"cycle"`
	Route      *model.Route           `json:"route,omitempty"`
	Routes     []model.Route          `json:"routes"`
	Captures   []CaptureView          `json:"captures"`
	Conditions []model.RoadCondition  `json:"conditions"`
	Events     []model.Event          `json:"events"`
	Weather    []model.WeatherStation `json:"weather"`
	Passes     []model.MountainPass   `json:"passes"`
	Plows      []model.SnowPlow       `json:"plows"`
}

// DashboardFromResult builds the dashboard of a cycle that just ran
func DashboardFromResult(res *CycleResult, images ImageURLer) *Dashboard {
	d := &Dashboard{
		Cycle:      res.Summary,
		Routes:     nonNil(res.Routes),
		Captures:   CaptureViews(res.Captures, images),
		Conditions: nonNil(res.Conditions),
		Events:     nonNil(res.Events),
		Weather:    nonNil(res.Weather),
		Passes:     nonNil(res.Passes),
		Plows:      nonNil(res.Plows),
	}
	if len(res.Routes) > 0 {
		d.Route = &d.Routes[0]
	}
	return d
}

// BuildDashboard reads a stored cycle back into its dashboard. Routes are the
// current route set since routes are not versioned per cycle.
func BuildDashboard(ctx context.Context, store storage.Gateway, cycleID string) (*Dashboard, error) {
	cycle, err := store.GetCycle(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle %s: %w", cycleID, err)
	}

	res := &CycleResult{Summary: *cycle}
	if res.Routes, err = store.GetRoutes(ctx); err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	if res.Captures, err = store.GetCapturesByCycle(ctx, cycleID); err != nil {
		return nil, fmt.Errorf("failed to load captures: %w", err)
	}
	if res.Conditions, err = store.GetRoadConditions(ctx, cycleID); err != nil {
		return nil, fmt.Errorf("failed to load road conditions: %w", err)
	}
	if res.Events, err = store.GetEvents(ctx, cycleID); err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	if res.Weather, err = store.GetWeather(ctx, cycleID); err != nil {
		return nil, fmt.Errorf("failed to load weather: %w", err)
	}
	if res.Passes, err = store.GetMountainPasses(ctx, cycleID); err != nil {
		return nil, fmt.Errorf("failed to load mountain passes: %w", err)
	}
	if res.Plows, err = store.GetSnowPlows(ctx, cycleID); err != nil {
		return nil, fmt.Errorf("failed to load snow plows: %w", err)
	}
	return DashboardFromResult(res, store), nil
}

// ImageURLer resolves image keys to URLs
type ImageURLer interface {
	GetImageURL(key string) string
}

// CaptureViews attaches image URLs to captures
func CaptureViews(captures []model.CaptureRecord, images ImageURLer) []CaptureView {
	views := make([]CaptureView, len(captures))
	for i, c := range captures {
		views[i] = CaptureView{CaptureRecord: c}
		if c.ImageKey != "" && images != nil {
			views[i].ImageURL = images.GetImageURL(c.ImageKey)
		}
	}
	return views
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
