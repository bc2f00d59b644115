package udot

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dpup/wolfcreekpass/server/internal/model"
)

// text accepts a JSON string, number, boolean or null. UDOT reports many
// readings as either strings or numbers depending on the station.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
	default:
		*t = text(data)
	}
	return nil
}

// number accepts a JSON number, a numeric string or null
type number struct {
	value *float64
}

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		n.value = nil
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		n.value = nil
		return nil
	}
	n.value = &f
	return nil
}

type cameraView struct {
	URL string `json:"Url"`
}

type cameraRecord struct {
	ID        int          `json:"Id"`
	SourceID  *string      `json:"SourceId"`
	Roadway   *string      `json:"Roadway"`
	Direction *string      `json:"Direction"`
	Location  *string      `json:"Location"`
	Latitude  *float64     `json:"Latitude"`
	Longitude *float64     `json:"Longitude"`
	Views     []cameraView `json:"Views"`
}

func (r cameraRecord) model() model.Camera {
	cam := model.Camera{
		ID:        r.ID,
		SourceID:  r.SourceID,
		Roadway:   r.Roadway,
		Direction: r.Direction,
		Location:  r.Location,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
	}
	for _, v := range r.Views {
		if v.URL != "" {
			cam.ImageURLs = append(cam.ImageURLs, v.URL)
		}
	}
	return cam
}

type roadConditionRecord struct {
	ID               int    `json:"Id"`
	RoadwayName      text   `json:"RoadwayName"`
	RoadCondition    text   `json:"RoadCondition"`
	WeatherCondition text   `json:"WeatherCondition"`
	Restriction      text   `json:"Restriction"`
	EncodedPolyline  text   `json:"EncodedPolyline"`
	LastUpdated      number `json:"LastUpdated"`
}

func (r roadConditionRecord) model() model.RoadCondition {
	c := model.RoadCondition{
		ID:               r.ID,
		RoadwayName:      string(r.RoadwayName),
		RoadCondition:    string(r.RoadCondition),
		WeatherCondition: string(r.WeatherCondition),
		Restriction:      string(r.Restriction),
		EncodedPolyline:  string(r.EncodedPolyline),
	}
	if r.LastUpdated.value != nil {
		c.LastUpdated = int64(*r.LastUpdated.value)
	}
	return c
}

type eventRecord struct {
	ID                text     `json:"ID"`
	EventType         text     `json:"EventType"`
	EventSubType      text     `json:"EventSubType"`
	RoadwayName       text     `json:"RoadwayName"`
	DirectionOfTravel text     `json:"DirectionOfTravel"`
	Description       text     `json:"Description"`
	Severity          text     `json:"Severity"`
	Latitude          *float64 `json:"Latitude"`
	Longitude         *float64 `json:"Longitude"`
	IsFullClosure     bool     `json:"IsFullClosure"`
}

func (r eventRecord) model() model.Event {
	return model.Event{
		ID:            string(r.ID),
		EventType:     string(r.EventType),
		EventSubType:  string(r.EventSubType),
		RoadwayName:   string(r.RoadwayName),
		Direction:     string(r.DirectionOfTravel),
		Description:   string(r.Description),
		Severity:      string(r.Severity),
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		IsFullClosure: r.IsFullClosure,
	}
}

type weatherRecord struct {
	ID               int  `json:"Id"`
	StationName      text `json:"StationName"`
	AirTemperature   text `json:"AirTemperature"`
	SurfaceTemp      text `json:"SurfaceTemp"`
	SurfaceStatus    text `json:"SurfaceStatus"`
	WindSpeedAvg     text `json:"WindSpeedAvg"`
	WindSpeedGust    text `json:"WindSpeedGust"`
	WindDirection    text `json:"WindDirection"`
	Precipitation    text `json:"Precipitation"`
	RelativeHumidity text `json:"RelativeHumidity"`
}

func (r weatherRecord) model() model.WeatherStation {
	return model.WeatherStation{
		ID:               r.ID,
		StationName:      string(r.StationName),
		AirTemperature:   string(r.AirTemperature),
		SurfaceTemp:      string(r.SurfaceTemp),
		SurfaceStatus:    string(r.SurfaceStatus),
		WindSpeedAvg:     string(r.WindSpeedAvg),
		WindSpeedGust:    string(r.WindSpeedGust),
		WindDirection:    string(r.WindDirection),
		Precipitation:    string(r.Precipitation),
		RelativeHumidity: string(r.RelativeHumidity),
	}
}

type seasonalInfo struct {
	SeasonalClosureStatus      text `json:"SeasonalClosureStatus"`
	SeasonalClosureDescription text `json:"SeasonalClosureDescription"`
}

type passRecord struct {
	ID             int            `json:"Id"`
	Name           text           `json:"Name"`
	Roadway        text           `json:"Roadway"`
	MaxElevation   text           `json:"MaxElevation"`
	Latitude       *float64       `json:"Latitude"`
	Longitude      *float64       `json:"Longitude"`
	AirTemperature text           `json:"AirTemperature"`
	WindSpeed      text           `json:"WindSpeed"`
	WindGust       text           `json:"WindGust"`
	WindDirection  text           `json:"WindDirection"`
	SurfaceTemp    text           `json:"SurfaceTemp"`
	SurfaceStatus  text           `json:"SurfaceStatus"`
	Visibility     text           `json:"Visibility"`
	Forecasts      text           `json:"Forecasts"`
	SeasonalInfo   []seasonalInfo `json:"SeasonalInfo"`
}

func (r passRecord) model() model.MountainPass {
	p := model.MountainPass{
		ID:             r.ID,
		Name:           string(r.Name),
		Roadway:        string(r.Roadway),
		ElevationFt:    string(r.MaxElevation),
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		AirTemperature: string(r.AirTemperature),
		WindSpeed:      string(r.WindSpeed),
		WindGust:       string(r.WindGust),
		WindDirection:  string(r.WindDirection),
		SurfaceTemp:    string(r.SurfaceTemp),
		SurfaceStatus:  string(r.SurfaceStatus),
		Visibility:     string(r.Visibility),
		Forecasts:      string(r.Forecasts),
	}
	if len(r.SeasonalInfo) > 0 {
		p.ClosureStatus = string(r.SeasonalInfo[0].SeasonalClosureStatus)
		p.ClosureDescription = string(r.SeasonalInfo[0].SeasonalClosureDescription)
	}
	return p
}

type plowRecord struct {
	ID          int      `json:"Id"`
	Name        text     `json:"Name"`
	Latitude    *float64 `json:"Latitude"`
	Longitude   *float64 `json:"Longitude"`
	Heading     number   `json:"Heading"`
	Speed       number   `json:"Speed"`
	LastUpdated text     `json:"LastUpdated"`
}

func (r plowRecord) model() model.SnowPlow {
	return model.SnowPlow{
		ID:          r.ID,
		Name:        string(r.Name),
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Heading:     r.Heading.value,
		Speed:       r.Speed.value,
		LastUpdated: string(r.LastUpdated),
	}
}
