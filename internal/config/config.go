package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents the complete monitor configuration
type Config struct {
	UDOT     UDOTConfig     `koanf:"udot"`
	Google   GoogleConfig   `koanf:"google"`
	Vision   VisionConfig   `koanf:"vision"`
	Storage  StorageConfig  `koanf:"storage"`
	Capture  CaptureConfig  `koanf:"capture"`
	Filters  FilterConfig   `koanf:"filters"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Lock     LockConfig     `koanf:"lock"`
	Export   ExportConfig   `koanf:"export"`
	Routes   []RouteConfig  `koanf:"routes"`
}

// UDOTConfig holds UDOT Traffic API settings
type UDOTConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
	// RateLimit calls are allowed per RateWindow
	RateLimit  int           `koanf:"rate_limit"`
	RateWindow time.Duration `koanf:"rate_window"`
	CacheTTL   time.Duration `koanf:"cache_ttl"`
}

// GoogleConfig holds Google Routes API settings
type GoogleConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// VisionConfig holds image analysis settings
type VisionConfig struct {
	Enabled   bool          `koanf:"enabled"`
	APIKey    string        `koanf:"api_key"`
	Model     string        `koanf:"model"`
	BaseURL   string        `koanf:"base_url"`
	MaxTokens int           `koanf:"max_tokens"`
	Timeout   time.Duration `koanf:"timeout"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	// Backend is one of sqlite, postgres or dynamo
	Backend     string `koanf:"backend"`
	SQLitePath  string `koanf:"sqlite_path"`
	PostgresDSN string `koanf:"postgres_dsn"`
	// ImageDir holds images and exports for the relational backends
	ImageDir    string `koanf:"image_dir"`
	TableName   string `koanf:"table_name"`
	BucketName  string `koanf:"bucket_name"`
	Region      string `koanf:"region"`
	EndpointURL string `koanf:"endpoint_url"`
}

// CaptureConfig controls the per-camera loop
type CaptureConfig struct {
	CameraBufferKm  float64       `koanf:"camera_buffer_km"`
	Workers         int           `koanf:"workers"`
	DownloadTimeout time.Duration `koanf:"download_timeout"`
	MaxImageBytes   int64         `koanf:"max_image_bytes"`
}

// FilterConfig holds the enrichment relevance filters
type FilterConfig struct {
	ConditionRoadways []string `koanf:"condition_roadways"`
	WeatherStations   []string `koanf:"weather_stations"`
	Passes            []string `koanf:"passes"`
	EventBufferKm     float64  `koanf:"event_buffer_km"`
	PlowBufferKm      float64  `koanf:"plow_buffer_km"`
	ConditionBufferKm float64  `koanf:"condition_buffer_km"`
}

// ScheduleConfig controls the periodic cycle runner
type ScheduleConfig struct {
	Interval     time.Duration `koanf:"interval"`
	CycleTimeout time.Duration `koanf:"cycle_timeout"`
}

// LockConfig configures the single-cycle guard. An empty RedisAddr uses an
// in-process lock.
type LockConfig struct {
	RedisAddr string        `koanf:"redis_addr"`
	Key       string        `koanf:"key"`
	TTL       time.Duration `koanf:"ttl"`
}

// ExportConfig configures the dashboard export and notifications
type ExportConfig struct {
	Enabled    bool         `koanf:"enabled"`
	// Prefix is prepended to export keys in the backend object store
	Prefix     string       `koanf:"prefix"`
	IndexLimit int          `koanf:"index_limit"`
	KML        bool         `koanf:"kml"`
	Kafka      KafkaConfig  `koanf:"kafka"`
	Alerts     AlertsConfig `koanf:"alerts"`
}

// KafkaConfig configures cycle completion events
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// AlertsConfig lists shoutrrr service URLs notified on snow or closures
type AlertsConfig struct {
	URLs    []string      `koanf:"urls"`
	Timeout time.Duration `koanf:"timeout"`
}

// RouteConfig is a named route between the configured endpoints
type RouteConfig struct {
	ID          string   `koanf:"id"`
	Name        string   `koanf:"name"`
	Color       string   `koanf:"color"`
	Origin      string   `koanf:"origin"`
	Destination string   `koanf:"destination"`
	Waypoints   []string `koanf:"waypoints"`
	// CameraIDs are matched against the camera catalog. An empty list
	// discovers cameras near the route instead.
	CameraIDs []int `koanf:"camera_ids"`
	// ClosurePass names the seasonal pass the route depends on
	ClosurePass string `koanf:"closure_pass"`
}

// Storage backend names
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDynamo   = "dynamo"
)

// DefaultRouteColor is used for routes configured without a color
const DefaultRouteColor = "#3b82f6"

// CameraIDs returns the union of every route's camera ids, first occurrence wins
func (c *Config) CameraIDs() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, r := range c.Routes {
		for _, id := range r.CameraIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Validate checks the settings a cycle cannot run without
func (c *Config) Validate() error {
	var errs []error
	if c.UDOT.APIKey == "" {
		errs = append(errs, errors.New("udot.api_key is required"))
	}
	if c.Vision.Enabled && c.Vision.APIKey == "" {
		errs = append(errs, errors.New("vision.api_key is required when vision is enabled"))
	}
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite backend"))
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	case BackendDynamo:
		if c.Storage.TableName == "" || c.Storage.BucketName == "" {
			errs = append(errs, errors.New("storage.table_name and storage.bucket_name are required for the dynamo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if len(c.Routes) == 0 {
		errs = append(errs, errors.New("at least one route is required"))
	}
	for i, r := range c.Routes {
		if r.ID == "" {
			errs = append(errs, fmt.Errorf("routes[%d].id is required", i))
		}
	}
	if c.Capture.Workers < 1 {
		errs = append(errs, errors.New("capture.workers must be at least 1"))
	}
	return errors.Join(errs...)
}
