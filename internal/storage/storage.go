// Package storage defines the persistence contract shared by every backend.
package storage

import (
	"context"
	"errors"

	"github.com/dpup/wolfcreekpass/server/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnknownCycle is returned when a cycle-scoped write references a
	// cycle that has not been saved
	ErrUnknownCycle = errors.New("unknown cycle")

	// ErrDuplicateCapture is returned when a capture already exists for the
	// same camera and cycle
	ErrDuplicateCapture = errors.New("capture already recorded for camera in cycle")
)

// Gateway is the single persistence interface used by the capture cycle and
// the read-only query tools. Both backends honor the same semantics:
//
//   - cameras and cycle summaries are upserts
//   - captures are append-only, one per camera and cycle
//   - routes are replaced as a whole set
//   - cycle-scoped batches are written once per cycle and read back in
//     insertion order
//   - image hashes keep the latest value per camera
type Gateway interface {
	// Init prepares the backend (schema, tables, buckets)
	Init(ctx context.Context) error
	Close() error

	SaveCamera(ctx context.Context, camera model.Camera) error
	// GetCameras returns every camera ordered by id
	GetCameras(ctx context.Context) ([]model.Camera, error)

	SaveCapture(ctx context.Context, capture model.CaptureRecord) error
	// GetRecentCaptures returns at most limit captures, newest first
	GetRecentCaptures(ctx context.Context, limit int) ([]model.CaptureRecord, error)
	// GetCapturesByCycle returns the cycle's captures ordered by camera id
	GetCapturesByCycle(ctx context.Context, cycleID string) ([]model.CaptureRecord, error)
	// GetLatestCapture returns the camera's newest capture, or nil if none
	GetLatestCapture(ctx context.Context, cameraID int) (*model.CaptureRecord, error)

	SaveRoutes(ctx context.Context, routes []model.Route) error
	// GetRoutes returns the current route set ordered by route id
	GetRoutes(ctx context.Context) ([]model.Route, error)

	SaveCycle(ctx context.Context, cycle model.CycleSummary) error
	// GetCycle returns ErrNotFound for an unknown cycle
	GetCycle(ctx context.Context, cycleID string) (*model.CycleSummary, error)
	// GetCycles returns at most limit cycles, most recently started first
	GetCycles(ctx context.Context, limit int) ([]model.CycleSummary, error)

	SaveRoadConditions(ctx context.Context, cycleID string, conditions []model.RoadCondition) error
	GetRoadConditions(ctx context.Context, cycleID string) ([]model.RoadCondition, error)
	SaveEvents(ctx context.Context, cycleID string, events []model.Event) error
	GetEvents(ctx context.Context, cycleID string) ([]model.Event, error)
	SaveWeather(ctx context.Context, cycleID string, stations []model.WeatherStation) error
	GetWeather(ctx context.Context, cycleID string) ([]model.WeatherStation, error)
	SaveMountainPasses(ctx context.Context, cycleID string, passes []model.MountainPass) error
	GetMountainPasses(ctx context.Context, cycleID string) ([]model.MountainPass, error)
	SaveSnowPlows(ctx context.Context, cycleID string, plows []model.SnowPlow) error
	GetSnowPlows(ctx context.Context, cycleID string) ([]model.SnowPlow, error)

	// SaveImage stores image bytes under key and returns its URL
	SaveImage(ctx context.Context, key string, data []byte) (string, error)
	GetImageURL(key string) string

	// GetImageHash returns the camera's latest content hash and whether one exists
	GetImageHash(ctx context.Context, cameraID int) (string, bool, error)
	SaveImageHash(ctx context.Context, cameraID int, hashHex string) error

	// Objects exposes the backend's object store for exports
	Objects() ObjectStore
}

// ObjectStore stores opaque objects such as images and exported documents
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	URL(key string) string
}

// ImagePrefix is the object key prefix for camera images
const ImagePrefix = "images/"

// ErrUnknownBackend is returned when configuration names no supported backend
var ErrUnknownBackend = errors.New("unknown storage backend")
