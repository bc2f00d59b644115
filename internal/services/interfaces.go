package services

import (
	"context"
	"time"

	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/model"
)

// RouteProvider computes live route geometry and timing
type RouteProvider interface {
	GetRoutes(ctx context.Context, routes []config.RouteConfig) ([]model.Route, error)
}

// TrafficSource lists the statewide traffic catalogs
type TrafficSource interface {
	Cameras(ctx context.Context) ([]model.Camera, error)
	RoadConditions(ctx context.Context) ([]model.RoadCondition, error)
	Events(ctx context.Context) ([]model.Event, error)
	WeatherStations(ctx context.Context) ([]model.WeatherStation, error)
	MountainPasses(ctx context.Context) ([]model.MountainPass, error)
	SnowPlows(ctx context.Context) ([]model.SnowPlow, error)
}

// ImageDownloader fetches camera image bytes
type ImageDownloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// ImageAnalyzer reports what a camera image shows. It never fails; problems
// are described in the result notes.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, data []byte) model.AnalysisResult
}

// Exporter publishes a completed cycle
type Exporter interface {
	Export(ctx context.Context, result *CycleResult) error
}

// Clock returns the current time
type Clock func() time.Time
