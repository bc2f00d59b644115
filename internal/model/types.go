// Package model holds the entities collected and persisted by each capture cycle.
package model

import (
	"strings"
	"time"
)

// CycleIDLayout formats a cycle's start time into its identifier. Identifiers
// sort lexicographically in chronological order.
const CycleIDLayout = "2006-01-02T15:04:05"

// Camera is a roadside traffic camera. Cameras are upserted by ID and never deleted.
type Camera struct {
	ID                  int      `json:"id"`
	SourceID            *string  `json:"source_id,omitempty"`
	Roadway             *string  `json:"roadway,omitempty"`
	Direction           *string  `json:"direction,omitempty"`
	Location            *string  `json:"location,omitempty"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
	ImageURLs           []string `json:"image_urls,omitempty"`
	DistanceFromRouteKm *float64 `json:"distance_from_route_km,omitempty"`
}

// Coordinates implements routing.Locatable.
func (c Camera) Coordinates() (float64, float64, bool) {
	return coords(c.Latitude, c.Longitude)
}

// PrimaryImageURL returns the first image view URL, or "" if the camera has none.
func (c Camera) PrimaryImageURL() string {
	if len(c.ImageURLs) == 0 {
		return ""
	}
	return c.ImageURLs[0]
}

// CaptureRecord is the result of processing one camera in one cycle. Camera
// location fields are denormalized so a record reads on its own.
type CaptureRecord struct {
	CameraID      int       `json:"camera_id"`
	CycleID       string    `json:"cycle_id"`
	CapturedAt    time.Time `json:"captured_at"`
	ImageKey      string    `json:"image_key"`
	HasSnow       *bool     `json:"has_snow,omitempty"`
	HasCar        *bool     `json:"has_car,omitempty"`
	HasTruck      *bool     `json:"has_truck,omitempty"`
	HasAnimal     *bool     `json:"has_animal,omitempty"`
	AnalysisNotes string    `json:"analysis_notes"`
	Roadway       *string   `json:"roadway,omitempty"`
	Direction     *string   `json:"direction,omitempty"`
	Location      *string   `json:"location,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
}

// Route is one monitored driving route.
type Route struct {
	RouteID            string `json:"route_id"`
	Name               string `json:"name"`
	Color              string `json:"color"`
	Origin             string `json:"origin"`
	Destination        string `json:"destination"`
	Polyline           string `json:"polyline"`
	DistanceM          int    `json:"distance_m"`
	DurationS          int    `json:"duration_s"`
	DurationInTrafficS *int   `json:"duration_in_traffic_s,omitempty"`
	HasClosure         bool   `json:"has_closure"`
	HasConditions      bool   `json:"has_conditions"`
}

// CycleSummary is created when a cycle starts and completed once when it ends.
type CycleSummary struct {
	CycleID          string     `json:"cycle_id"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CamerasProcessed int        `json:"cameras_processed"`
	SnowCount        int        `json:"snow_count"`
	EventCount       int        `json:"event_count"`
	TravelTimeS      *int       `json:"travel_time_s,omitempty"`
	DistanceM        *int       `json:"distance_m,omitempty"`
}

// RoadCondition is a reported condition for a road segment.
type RoadCondition struct {
	ID               int    `json:"id"`
	RoadwayName      string `json:"roadway_name"`
	RoadCondition    string `json:"road_condition"`
	WeatherCondition string `json:"weather_condition"`
	Restriction      string `json:"restriction"`
	EncodedPolyline  string `json:"encoded_polyline"`
	LastUpdated      int64  `json:"last_updated"`
}

// Event is a traffic event such as a closure, incident or construction.
type Event struct {
	ID            string   `json:"id"`
	EventType     string   `json:"event_type"`
	EventSubType  string   `json:"event_sub_type"`
	RoadwayName   string   `json:"roadway_name"`
	Direction     string   `json:"direction"`
	Description   string   `json:"description"`
	Severity      string   `json:"severity"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	IsFullClosure bool     `json:"is_full_closure"`
}

// Coordinates implements routing.Locatable.
func (e Event) Coordinates() (float64, float64, bool) {
	return coords(e.Latitude, e.Longitude)
}

// WeatherStation is a roadside weather station reading.
type WeatherStation struct {
	ID               int    `json:"id"`
	StationName      string `json:"station_name"`
	AirTemperature   string `json:"air_temperature"`
	SurfaceTemp      string `json:"surface_temp"`
	SurfaceStatus    string `json:"surface_status"`
	WindSpeedAvg     string `json:"wind_speed_avg"`
	WindSpeedGust    string `json:"wind_speed_gust"`
	WindDirection    string `json:"wind_direction"`
	Precipitation    string `json:"precipitation"`
	RelativeHumidity string `json:"relative_humidity"`
}

// MountainPass is a mountain pass status report.
type MountainPass struct {
	ID                 int      `json:"id"`
	Name               string   `json:"name"`
	Roadway            string   `json:"roadway"`
	ElevationFt        string   `json:"elevation_ft"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	AirTemperature     string   `json:"air_temperature"`
	WindSpeed          string   `json:"wind_speed"`
	WindGust           string   `json:"wind_gust"`
	WindDirection      string   `json:"wind_direction"`
	SurfaceTemp        string   `json:"surface_temp"`
	SurfaceStatus      string   `json:"surface_status"`
	Visibility         string   `json:"visibility"`
	Forecasts          string   `json:"forecasts"`
	ClosureStatus      string   `json:"closure_status"`
	ClosureDescription string   `json:"closure_description"`
}

// IsClosed reports whether the pass is seasonally closed.
func (p MountainPass) IsClosed() bool {
	return strings.EqualFold(strings.TrimSpace(p.ClosureStatus), "CLOSED")
}

// SnowPlow is a snowplow position report.
type SnowPlow struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Heading     *float64 `json:"heading,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`
	LastUpdated string   `json:"last_updated"`
}

// Coordinates implements routing.Locatable.
func (p SnowPlow) Coordinates() (float64, float64, bool) {
	return coords(p.Latitude, p.Longitude)
}

// AnalysisResult is what the vision analyzer reports for one image. A nil
// flag means the analyzer could not tell.
type AnalysisResult struct {
	HasSnow   *bool  `json:"has_snow,omitempty"`
	HasCar    *bool  `json:"has_car,omitempty"`
	HasTruck  *bool  `json:"has_truck,omitempty"`
	HasAnimal *bool  `json:"has_animal,omitempty"`
	Notes     string `json:"notes"`
}

func coords(lat, lon *float64) (float64, float64, bool) {
	if lat == nil || lon == nil {
		return 0, 0, false
	}
	return *lat, *lon, true
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
