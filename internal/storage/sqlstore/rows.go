package sqlstore

import (
	"time"

	"github.com/dpup/wolfcreekpass/server/internal/model"
)

type cameraRow struct {
	ID                  int      `gorm:"column:id;primaryKey;autoIncrement:false"`
	SourceID            *string  `gorm:"column:source_id"`
	Roadway             *string  `gorm:"column:roadway"`
	Direction           *string  `gorm:"column:direction"`
	Location            *string  `gorm:"column:location"`
	Latitude            *float64 `gorm:"column:latitude"`
	Longitude           *float64 `gorm:"column:longitude"`
	ImageURLs           []string `gorm:"column:image_urls;serializer:json"`
	DistanceFromRouteKm *float64 `gorm:"column:distance_from_route_km"`
}

func (cameraRow) TableName() string { return "cameras" }

func toCameraRow(c model.Camera) cameraRow {
	return cameraRow(c)
}

func (r cameraRow) model() model.Camera {
	return model.Camera(r)
}

type cycleRow struct {
	CycleID          string     `gorm:"column:cycle_id;primaryKey"`
	StartedAt        time.Time  `gorm:"column:started_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
	CamerasProcessed int        `gorm:"column:cameras_processed"`
	SnowCount        int        `gorm:"column:snow_count"`
	EventCount       int        `gorm:"column:event_count"`
	TravelTimeS      *int       `gorm:"column:travel_time_s"`
	DistanceM        *int       `gorm:"column:distance_m"`
}

func (cycleRow) TableName() string { return "cycles" }

func toCycleRow(c model.CycleSummary) cycleRow {
	row := cycleRow(c)
	row.StartedAt = c.StartedAt.UTC()
	row.CompletedAt = utcPtr(c.CompletedAt)
	return row
}

func (r cycleRow) model() model.CycleSummary {
	c := model.CycleSummary(r)
	c.StartedAt = r.StartedAt.UTC()
	c.CompletedAt = utcPtr(r.CompletedAt)
	return c
}

type captureRow struct {
	ID            int64     `gorm:"column:id;primaryKey"`
	CameraID      int       `gorm:"column:camera_id"`
	CycleID       string    `gorm:"column:cycle_id"`
	CapturedAt    time.Time `gorm:"column:captured_at"`
	ImageKey      string    `gorm:"column:image_key"`
	HasSnow       *bool     `gorm:"column:has_snow"`
	HasCar        *bool     `gorm:"column:has_car"`
	HasTruck      *bool     `gorm:"column:has_truck"`
	HasAnimal     *bool     `gorm:"column:has_animal"`
	AnalysisNotes string    `gorm:"column:analysis_notes"`
	Roadway       *string   `gorm:"column:roadway"`
	Direction     *string   `gorm:"column:direction"`
	Location      *string   `gorm:"column:location"`
	Latitude      *float64  `gorm:"column:latitude"`
	Longitude     *float64  `gorm:"column:longitude"`
}

func (captureRow) TableName() string { return "captures" }

func toCaptureRow(c model.CaptureRecord) captureRow {
	return captureRow{
		CameraID:      c.CameraID,
		CycleID:       c.CycleID,
		CapturedAt:    c.CapturedAt.UTC(),
		ImageKey:      c.ImageKey,
		HasSnow:       c.HasSnow,
		HasCar:        c.HasCar,
		HasTruck:      c.HasTruck,
		HasAnimal:     c.HasAnimal,
		AnalysisNotes: c.AnalysisNotes,
		Roadway:       c.Roadway,
		Direction:     c.Direction,
		Location:      c.Location,
		Latitude:      c.Latitude,
		Longitude:     c.Longitude,
	}
}

func (r captureRow) model() model.CaptureRecord {
	return model.CaptureRecord{
		CameraID:      r.CameraID,
		CycleID:       r.CycleID,
		CapturedAt:    r.CapturedAt.UTC(),
		ImageKey:      r.ImageKey,
		HasSnow:       r.HasSnow,
		HasCar:        r.HasCar,
		HasTruck:      r.HasTruck,
		HasAnimal:     r.HasAnimal,
		AnalysisNotes: r.AnalysisNotes,
		Roadway:       r.Roadway,
		Direction:     r.Direction,
		Location:      r.Location,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
	}
}

type routeRow struct {
	RouteID            string `gorm:"column:route_id;primaryKey"`
	Name               string `gorm:"column:name"`
	Color              string `gorm:"column:color"`
	Origin             string `gorm:"column:origin"`
	Destination        string `gorm:"column:destination"`
	Polyline           string `gorm:"column:polyline"`
	DistanceM          int    `gorm:"column:distance_m"`
	DurationS          int    `gorm:"column:duration_s"`
	DurationInTrafficS *int   `gorm:"column:duration_in_traffic_s"`
	HasClosure         bool   `gorm:"column:has_closure"`
	HasConditions      bool   `gorm:"column:has_conditions"`
}

func (routeRow) TableName() string { return "routes" }

type roadConditionRow struct {
	ID               int64  `gorm:"column:id;primaryKey"`
	CycleID          string `gorm:"column:cycle_id"`
	ConditionID      int    `gorm:"column:condition_id"`
	RoadwayName      string `gorm:"column:roadway_name"`
	RoadCondition    string `gorm:"column:road_condition"`
	WeatherCondition string `gorm:"column:weather_condition"`
	Restriction      string `gorm:"column:restriction"`
	EncodedPolyline  string `gorm:"column:encoded_polyline"`
	LastUpdated      int64  `gorm:"column:last_updated"`
}

func (roadConditionRow) TableName() string { return "road_conditions" }

func toRoadConditionRow(cycleID string, c model.RoadCondition) roadConditionRow {
	return roadConditionRow{
		CycleID:          cycleID,
		ConditionID:      c.ID,
		RoadwayName:      c.RoadwayName,
		RoadCondition:    c.RoadCondition,
		WeatherCondition: c.WeatherCondition,
		Restriction:      c.Restriction,
		EncodedPolyline:  c.EncodedPolyline,
		LastUpdated:      c.LastUpdated,
	}
}

func (r roadConditionRow) model() model.RoadCondition {
	return model.RoadCondition{
		ID:               r.ConditionID,
		RoadwayName:      r.RoadwayName,
		RoadCondition:    r.RoadCondition,
		WeatherCondition: r.WeatherCondition,
		Restriction:      r.Restriction,
		EncodedPolyline:  r.EncodedPolyline,
		LastUpdated:      r.LastUpdated,
	}
}

type eventRow struct {
	ID            int64    `gorm:"column:id;primaryKey"`
	CycleID       string   `gorm:"column:cycle_id"`
	EventID       string   `gorm:"column:event_id"`
	EventType     string   `gorm:"column:event_type"`
	EventSubType  string   `gorm:"column:event_sub_type"`
	RoadwayName   string   `gorm:"column:roadway_name"`
	Direction     string   `gorm:"column:direction"`
	Description   string   `gorm:"column:description"`
	Severity      string   `gorm:"column:severity"`
	Latitude      *float64 `gorm:"column:latitude"`
	Longitude     *float64 `gorm:"column:longitude"`
	IsFullClosure bool     `gorm:"column:is_full_closure"`
}

func (eventRow) TableName() string { return "events" }

func toEventRow(cycleID string, e model.Event) eventRow {
	return eventRow{
		CycleID:       cycleID,
		EventID:       e.ID,
		EventType:     e.EventType,
		EventSubType:  e.EventSubType,
		RoadwayName:   e.RoadwayName,
		Direction:     e.Direction,
		Description:   e.Description,
		Severity:      e.Severity,
		Latitude:      e.Latitude,
		Longitude:     e.Longitude,
		IsFullClosure: e.IsFullClosure,
	}
}

func (r eventRow) model() model.Event {
	return model.Event{
		ID:            r.EventID,
		EventType:     r.EventType,
		EventSubType:  r.EventSubType,
		RoadwayName:   r.RoadwayName,
		Direction:     r.Direction,
		Description:   r.Description,
		Severity:      r.Severity,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		IsFullClosure: r.IsFullClosure,
	}
}

type weatherRow struct {
	ID               int64  `gorm:"column:id;primaryKey"`
	CycleID          string `gorm:"column:cycle_id"`
	StationID        int    `gorm:"column:station_id"`
	StationName      string `gorm:"column:station_name"`
	AirTemperature   string `gorm:"column:air_temperature"`
	SurfaceTemp      string `gorm:"column:surface_temp"`
	SurfaceStatus    string `gorm:"column:surface_status"`
	WindSpeedAvg     string `gorm:"column:wind_speed_avg"`
	WindSpeedGust    string `gorm:"column:wind_speed_gust"`
	WindDirection    string `gorm:"column:wind_direction"`
	Precipitation    string `gorm:"column:precipitation"`
	RelativeHumidity string `gorm:"column:relative_humidity"`
}

func (weatherRow) TableName() string { return "weather" }

func toWeatherRow(cycleID string, w model.WeatherStation) weatherRow {
	return weatherRow{
		CycleID:          cycleID,
		StationID:        w.ID,
		StationName:      w.StationName,
		AirTemperature:   w.AirTemperature,
		SurfaceTemp:      w.SurfaceTemp,
		SurfaceStatus:    w.SurfaceStatus,
		WindSpeedAvg:     w.WindSpeedAvg,
		WindSpeedGust:    w.WindSpeedGust,
		WindDirection:    w.WindDirection,
		Precipitation:    w.Precipitation,
		RelativeHumidity: w.RelativeHumidity,
	}
}

func (r weatherRow) model() model.WeatherStation {
	return model.WeatherStation{
		ID:               r.StationID,
		StationName:      r.StationName,
		AirTemperature:   r.AirTemperature,
		SurfaceTemp:      r.SurfaceTemp,
		SurfaceStatus:    r.SurfaceStatus,
		WindSpeedAvg:     r.WindSpeedAvg,
		WindSpeedGust:    r.WindSpeedGust,
		WindDirection:    r.WindDirection,
		Precipitation:    r.Precipitation,
		RelativeHumidity: r.RelativeHumidity,
	}
}

type mountainPassRow struct {
	ID                 int64    `gorm:"column:id;primaryKey"`
	CycleID            string   `gorm:"column:cycle_id"`
	PassID             int      `gorm:"column:pass_id"`
	Name               string   `gorm:"column:name"`
	Roadway            string   `gorm:"column:roadway"`
	ElevationFt        string   `gorm:"column:elevation_ft"`
	Latitude           *float64 `gorm:"column:latitude"`
	Longitude          *float64 `gorm:"column:longitude"`
	AirTemperature     string   `gorm:"column:air_temperature"`
	WindSpeed          string   `gorm:"column:wind_speed"`
	WindGust           string   `gorm:"column:wind_gust"`
	WindDirection      string   `gorm:"column:wind_direction"`
	SurfaceTemp        string   `gorm:"column:surface_temp"`
	SurfaceStatus      string   `gorm:"column:surface_status"`
	Visibility         string   `gorm:"column:visibility"`
	Forecasts          string   `gorm:"column:forecasts"`
	ClosureStatus      string   `gorm:"column:closure_status"`
	ClosureDescription string   `gorm:"column:closure_description"`
}

func (mountainPassRow) TableName() string { return "mountain_passes" }

func toMountainPassRow(cycleID string, p model.MountainPass) mountainPassRow {
	return mountainPassRow{
		CycleID:            cycleID,
		PassID:             p.ID,
		Name:               p.Name,
		Roadway:            p.Roadway,
		ElevationFt:        p.ElevationFt,
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
		AirTemperature:     p.AirTemperature,
		WindSpeed:          p.WindSpeed,
		WindGust:           p.WindGust,
		WindDirection:      p.WindDirection,
		SurfaceTemp:        p.SurfaceTemp,
		SurfaceStatus:      p.SurfaceStatus,
		Visibility:         p.Visibility,
		Forecasts:          p.Forecasts,
		ClosureStatus:      p.ClosureStatus,
		ClosureDescription: p.ClosureDescription,
	}
}

func (r mountainPassRow) model() model.MountainPass {
	return model.MountainPass{
		ID:                 r.PassID,
		Name:               r.Name,
		Roadway:            r.Roadway,
		ElevationFt:        r.ElevationFt,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		AirTemperature:     r.AirTemperature,
		WindSpeed:          r.WindSpeed,
		WindGust:           r.WindGust,
		WindDirection:      r.WindDirection,
		SurfaceTemp:        r.SurfaceTemp,
		SurfaceStatus:      r.SurfaceStatus,
		Visibility:         r.Visibility,
		Forecasts:          r.Forecasts,
		ClosureStatus:      r.ClosureStatus,
		ClosureDescription: r.ClosureDescription,
	}
}

type snowPlowRow struct {
	ID          int64    `gorm:"column:id;primaryKey"`
	CycleID     string   `gorm:"column:cycle_id"`
	PlowID      int      `gorm:"column:plow_id"`
	Name        string   `gorm:"column:name"`
	Latitude    *float64 `gorm:"column:latitude"`
	Longitude   *float64 `gorm:"column:longitude"`
	Heading     *float64 `gorm:"column:heading"`
	Speed       *float64 `gorm:"column:speed"`
	LastUpdated string   `gorm:"column:last_updated"`
}

func (snowPlowRow) TableName() string { return "snow_plows" }

func toSnowPlowRow(cycleID string, p model.SnowPlow) snowPlowRow {
	return snowPlowRow{
		CycleID:     cycleID,
		PlowID:      p.ID,
		Name:        p.Name,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Heading:     p.Heading,
		Speed:       p.Speed,
		LastUpdated: p.LastUpdated,
	}
}

func (r snowPlowRow) model() model.SnowPlow {
	return model.SnowPlow{
		ID:          r.PlowID,
		Name:        r.Name,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Heading:     r.Heading,
		Speed:       r.Speed,
		LastUpdated: r.LastUpdated,
	}
}

type imageHashRow struct {
	CameraID  int       `gorm:"column:camera_id;primaryKey;autoIncrement:false"`
	HashHex   string    `gorm:"column:hash_hex"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (imageHashRow) TableName() string { return "image_hashes" }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
