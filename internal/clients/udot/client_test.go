package udot

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/model"
)

const testBaseURL = "https://udot.test/api/v2/get"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(config.UDOTConfig{
		APIKey:     "test-key",
		BaseURL:    testBaseURL,
		Timeout:    time.Second,
		RateLimit:  100,
		RateWindow: time.Second,
		CacheTTL:   time.Minute,
	})
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestCameras(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/cameras",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "test-key", req.URL.Query().Get("key"))
			assert.Equal(t, "json", req.URL.Query().Get("format"))
			return httpmock.NewStringResponse(200, `[
				{"Id": 90779, "SourceId": "RWIS-35", "Roadway": "SR-35", "Direction": "Eastbound",
				 "Location": "SR-35 @ Wolf Creek Pass", "Latitude": 40.48, "Longitude": -111.03,
				 "Views": [{"Url": "https://udottraffic.utah.gov/map/Cctv/90779"}, {"Url": ""}]},
				{"Id": 1, "Views": []}
			]`), nil
		})

	cams, err := c.Cameras(testContext())
	require.NoError(t, err)
	require.Len(t, cams, 2)
	assert.Equal(t, model.Camera{
		ID:        90779,
		SourceID:  model.Ptr("RWIS-35"),
		Roadway:   model.Ptr("SR-35"),
		Direction: model.Ptr("Eastbound"),
		Location:  model.Ptr("SR-35 @ Wolf Creek Pass"),
		Latitude:  model.Ptr(40.48),
		Longitude: model.Ptr(-111.03),
		ImageURLs: []string{"https://udottraffic.utah.gov/map/Cctv/90779"},
	}, cams[0])
	assert.Equal(t, model.Camera{ID: 1}, cams[1])
}

func TestResponsesAreCached(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/event",
		httpmock.NewStringResponder(200, `[{"ID": 1234, "EventType": "closures", "DirectionOfTravel": "Both",
			"IsFullClosure": true, "Latitude": 40.48, "Longitude": -111.03}]`))

	for range 3 {
		events, err := c.Events(testContext())
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "1234", events[0].ID, "numeric ids are kept as text")
		assert.Equal(t, "Both", events[0].Direction)
		assert.True(t, events[0].IsFullClosure)
	}
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestMountainPasses_SeasonalInfo(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/mountainpasses",
		httpmock.NewStringResponder(200, `[
			{"Id": 3, "Name": "Wolf Creek Pass", "Roadway": "SR-35", "MaxElevation": "9485",
			 "AirTemperature": 18, "WindSpeed": null, "Forecasts": "Snow showers",
			 "SeasonalInfo": [{"SeasonalClosureStatus": "Closed", "SeasonalClosureDescription": "Closed for winter"}]},
			{"Id": 4, "Name": "Parleys Summit", "SeasonalInfo": null}
		]`))

	passes, err := c.MountainPasses(testContext())
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, "18", passes[0].AirTemperature)
	assert.Equal(t, "", passes[0].WindSpeed)
	assert.Equal(t, "9485", passes[0].ElevationFt)
	assert.True(t, passes[0].IsClosed())
	assert.Equal(t, "Closed for winter", passes[0].ClosureDescription)
	assert.False(t, passes[1].IsClosed())
}

func TestSnowPlows_FlexibleNumbers(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/servicevehicles",
		httpmock.NewStringResponder(200, `[
			{"Id": 44, "Name": "Plow 44", "Latitude": 40.5, "Longitude": -111.1, "Heading": "90", "Speed": 25.5, "LastUpdated": "2026-01-15T06:55:00"},
			{"Id": 45, "Name": "Plow 45", "Heading": "n/a", "Speed": null}
		]`))

	plows, err := c.SnowPlows(testContext())
	require.NoError(t, err)
	require.Len(t, plows, 2)
	require.NotNil(t, plows[0].Heading)
	assert.Equal(t, 90.0, *plows[0].Heading)
	assert.Equal(t, 25.5, *plows[0].Speed)
	assert.Nil(t, plows[1].Heading)
	assert.Nil(t, plows[1].Speed)
}

func TestRoadConditionsAndWeather(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/roadconditions",
		httpmock.NewStringResponder(200, `[{"Id": 20, "RoadwayName": "SR-35", "RoadCondition": "Snow Covered",
			"Restriction": "Chains Required", "EncodedPolyline": "_p~iF~ps|U", "LastUpdated": 1768460000}]`))
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/weatherstations",
		httpmock.NewStringResponder(200, `[{"Id": 5, "StationName": "SR-35 @ Wolf Creek", "AirTemperature": "18", "RelativeHumidity": 88}]`))

	conds, err := c.RoadConditions(testContext())
	require.NoError(t, err)
	require.Len(t, conds, 1)
	assert.Equal(t, int64(1768460000), conds[0].LastUpdated)
	assert.Equal(t, "Chains Required", conds[0].Restriction)

	stations, err := c.WeatherStations(testContext())
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "88", stations[0].RelativeHumidity)
}

func TestNonListResponseIsEmpty(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/cameras",
		httpmock.NewStringResponder(200, `{"message": "maintenance"}`))

	cams, err := c.Cameras(testContext())
	require.NoError(t, err)
	assert.Empty(t, cams)
}

func TestErrors(t *testing.T) {
	tests := map[string]struct {
		status int
		want   string
	}{
		"rate limited": {status: 429, want: "rate limit exceeded"},
		"bad key":      {status: 401, want: "invalid API key"},
		"server error": {status: 500, want: "API error 500"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t)
			httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/servicevehicles",
				httpmock.NewStringResponder(tt.status, `{"error": "nope"}`))

			plows, err := c.SnowPlows(testContext())
			assert.Nil(t, plows)
			assert.ErrorContains(t, err, tt.want)
			assert.ErrorContains(t, err, "udot servicevehicles")
		})
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	c := NewClient(config.UDOTConfig{BaseURL: testBaseURL, RateLimit: 1, RateWindow: time.Hour})
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/cameras", httpmock.NewStringResponder(200, `[]`))
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/event", httpmock.NewStringResponder(200, `[]`))

	_, err := c.Cameras(testContext())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(testContext(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Events(ctx)
	assert.ErrorContains(t, err, "rate limiter")
}

// testContext returns a background context carrying a development logger
func testContext() context.Context {
	return logging.With(context.Background(), logging.NewDevLogger())
}
