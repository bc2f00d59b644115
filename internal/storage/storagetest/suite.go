// Package storagetest holds the behavioral suite every storage backend must pass.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/wolfcreekpass/server/internal/model"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
)

// Factory returns a fresh, initialized, empty gateway
type Factory func(t *testing.T) storage.Gateway

// Run executes the gateway suite against the backend produced by newGateway
func Run(t *testing.T, newGateway Factory) {
	tests := map[string]func(*testing.T, storage.Gateway){
		"CameraUpsert":             testCameraUpsert,
		"CameraOptionalFields":     testCameraOptionalFields,
		"CaptureRoundTrip":         testCaptureRoundTrip,
		"CaptureRequiresCycle":     testCaptureRequiresCycle,
		"CaptureAppendOnly":        testCaptureAppendOnly,
		"RecentCapturesNewest":     testRecentCapturesNewestFirst,
		"LatestCapture":            testLatestCapture,
		"RoutesReplaceAll":         testRoutesReplaceAll,
		"CycleUpsert":              testCycleUpsert,
		"CyclesNewestFirst":        testCyclesNewestFirst,
		"CycleScopedIsolation":     testCycleScopedIsolation,
		"CycleScopedRequiresCycle": testCycleScopedRequiresCycle,
		"CycleScopedOptional":      testCycleScopedOptionalFields,
		"ImageHashLastWriteWins":   testImageHash,
		"Images":                   testImages,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			fn(t, newGateway(t))
		})
	}
}

var base = time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC)

// Cycle returns a started cycle summary offset minutes after a fixed base time
func Cycle(offsetMinutes int) model.CycleSummary {
	started := base.Add(time.Duration(offsetMinutes) * time.Minute)
	return model.CycleSummary{CycleID: started.Format(model.CycleIDLayout), StartedAt: started}
}

// Camera returns a fully populated camera
func Camera(id int) model.Camera {
	return model.Camera{
		ID:                  id,
		SourceID:            model.Ptr(fmt.Sprintf("src-%d", id)),
		Roadway:             model.Ptr("SR-35"),
		Direction:           model.Ptr("Eastbound"),
		Location:            model.Ptr("SR-35 @ Wolf Creek Pass"),
		Latitude:            model.Ptr(40.4800),
		Longitude:           model.Ptr(-111.0300),
		ImageURLs:           []string{fmt.Sprintf("https://udottraffic.utah.gov/map/Cctv/%d", id)},
		DistanceFromRouteKm: model.Ptr(0.125),
	}
}

// Capture returns a capture for camera in cycle, taken offset seconds after the cycle began
func Capture(cycle model.CycleSummary, cameraID int, offsetSeconds int) model.CaptureRecord {
	return model.CaptureRecord{
		CameraID:      cameraID,
		CycleID:       cycle.CycleID,
		CapturedAt:    cycle.StartedAt.Add(time.Duration(offsetSeconds) * time.Second),
		ImageKey:      fmt.Sprintf("cam_%d_%s.jpg", cameraID, cycle.StartedAt.Format("20060102_150405")),
		HasSnow:       model.Ptr(true),
		HasCar:        model.Ptr(false),
		HasTruck:      nil,
		HasAnimal:     model.Ptr(false),
		AnalysisNotes: "Snow on shoulders, road wet",
		Roadway:       model.Ptr("SR-35"),
		Direction:     model.Ptr("Eastbound"),
		Location:      model.Ptr("SR-35 @ Wolf Creek Pass"),
		Latitude:      model.Ptr(40.48),
		Longitude:     model.Ptr(-111.03),
	}
}

func mustSaveCycle(t *testing.T, gw storage.Gateway, c model.CycleSummary) {
	t.Helper()
	require.NoError(t, gw.SaveCycle(Context(), c))
}

func testCameraUpsert(t *testing.T, gw storage.Gateway) {
	ctx := Context()

	require.NoError(t, gw.SaveCamera(ctx, Camera(90779)))
	require.NoError(t, gw.SaveCamera(ctx, Camera(90544)))

	updated := Camera(90779)
	updated.Location = model.Ptr("SR-35 RWIS EB @ Wolf Creek Pass / MP 19.33")
	updated.DistanceFromRouteKm = nil
	require.NoError(t, gw.SaveCamera(ctx, updated))

	cams, err := gw.GetCameras(ctx)
	require.NoError(t, err)
	require.Len(t, cams, 2)
	assert.Equal(t, Camera(90544), cams[0], "cameras come back ordered by id")
	assert.Equal(t, updated, cams[1], "second save replaces the first")
}

func testCameraOptionalFields(t *testing.T, gw storage.Gateway) {
	ctx := Context()
	bare := model.Camera{ID: 1}
	require.NoError(t, gw.SaveCamera(ctx, bare))

	cams, err := gw.GetCameras(ctx)
	require.NoError(t, err)
	require.Len(t, cams, 1)
	assert.Equal(t, bare, cams[0], "absent optional fields stay absent")
}

func testCaptureRoundTrip(t *testing.T, gw storage.Gateway) {
	ctx := Context()
	cycle := Cycle(0)
	mustSaveCycle(t, gw, cycle)

	second := Capture(cycle, 90779, 10)
	first := Capture(cycle, 90544, 20)
	first.HasSnow, first.HasCar, first.HasAnimal = nil, nil, nil
	first.Roadway, first.Latitude, first.Longitude = nil, nil, nil

	require.NoError(t, gw.SaveCapture(ctx, second))
	require.NoError(t, gw.SaveCapture(ctx, first))

	got, err := gw.GetCapturesByCycle(ctx, cycle.CycleID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0], "captures come back ordered by camera id")
	assert.Equal(t, second, got[1])

	none, err := gw.GetCapturesByCycle(ctx, "1999-01-01T00:00:00")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testCaptureRequiresCycle(t *testing.T, gw storage.Gateway) {
	err := gw.SaveCapture(Context(), Capture(Cycle(0), 1, 0))
	assert.ErrorIs(t, err, storage.ErrUnknownCycle)
}

func testCaptureAppendOnly(t *testing.T, gw storage.Gateway) {
	ctx := Context()
	cycle := Cycle(0)
	mustSaveCycle(t, gw, cycle)

	require.NoError(t, gw.SaveCapture(ctx, Capture(cycle, 1, 0)))
	dup := Capture(cycle, 1, 5)
	dup.AnalysisNotes = "overwrite attempt"
	assert.ErrorIs(t, gw.SaveCapture(ctx, dup), storage.ErrDuplicateCapture)

	got, err := gw.GetCapturesByCycle(ctx, cycle.CycleID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Capture(cycle, 1, 0), got[0])
}

func testRecentCapturesNewestFirst(t *testing.T, gw storage.Gateway) {
	ctx := Context()
	older, newer := Cycle(0), Cycle(60)
	mustSaveCycle(t, gw, older)
	mustSaveCycle(t, gw, newer)

	for i, id := range []int{3, 1, 2} {
		require.NoError(t, gw.SaveCapture(ctx, Capture(older, id, i)))
		require.NoError(t, gw.SaveCapture(ctx, Capture(newer, id, i)))
	}

	got, err := gw.GetRecentCaptures(ctx, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].CapturedAt.After(got[i-1].CapturedAt), "captures must be newest first")
	}
	assert.Equal(t, newer.CycleID, got[0].CycleID)
	assert.Equal(t, 2, got[0].CameraID)
	assert.Equal(t, older.CycleID, got[3].CycleID)

	all, err := gw.GetRecentCaptures(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func testLatestCapture(t *testing.T, gw storage.Gateway) {
	ctx := Context()

	none, err := gw.GetLatestCapture(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, none)

	c1, c2 := Cycle(0), Cycle(60)
	mustSaveCycle(t, gw, c1)
	mustSaveCycle(t, gw, c2)
	require.NoError(t, gw.SaveCapture(ctx, Capture(c1, 7, 0)))
	require.NoError(t, gw.SaveCapture(ctx, Capture(c2, 7, 0)))
	require.NoError(t, gw.SaveCapture(ctx, Capture(c2, 8, 30)))

	latest, err := gw.GetLatestCapture(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, Capture(c2, 7, 0), *latest)
}

func testRoutesReplaceAll(t *testing.T, gw storage.Gateway) {
	ctx := Context()
	a := model.Route{RouteID: "provo-wolfcreek", Name: "Provo", Color: "#8b5cf6", Origin: "Riverton, UT",
		Destination: "Hanna, UT", Polyline: "_p~iF~ps|U", DistanceM: 210000, DurationS: 9000,
		DurationInTrafficS: model.Ptr(9400), HasClosure: true}
	b := model.Route{RouteID: "parleys-wolfcreek", Name: "Parley's", Color: "#3b82f6"}
	c := model.Route{RouteID: "us40-tabiona", Name: "US-40", Color: "#f97316", HasConditions: true}

	require.NoError(t, gw.SaveRoutes(ctx, []model.Route{a, b}))
	got, err := gw.GetRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Route{b, a}, got)

	require.NoError(t, gw.SaveRoutes(ctx, []model.Route{c}))
	got, err = gw.GetRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Route{c}, got, "earlier routes are removed")

	require.NoError(t, gw.SaveRoutes(ctx, nil))
	got, err = gw.GetRoutes(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testCycleUpsert(t *testing.T, gw storage.Gateway) {
	ctx := Context()
	cycle := Cycle(0)
	mustSaveCycle(t, gw, cycle)

	got, err := gw.GetCycle(ctx, cycle.CycleID)
	require.NoError(t, err)
	assert.Equal(t, cycle, *got)

	completed := cycle
	completed.CompletedAt = model.Ptr(cycle.StartedAt.Add(4 * time.Minute))
	completed.CamerasProcessed = 17
	completed.SnowCount = 3
	completed.EventCount = 2
	completed.TravelTimeS = model.Ptr(8100)
	completed.DistanceM = model.Ptr(205000)
	mustSaveCycle(t, gw, completed)

	got, err = gw.GetCycle(ctx, cycle.CycleID)
	require.NoError(t, err)
	assert.Equal(t, completed, *got)

	cycles, err := gw.GetCycles(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, cycles, 1, "upsert must not duplicate")

	_, err = gw.GetCycle(ctx, "1999-01-01T00:00:00")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testCyclesNewestFirst(t *testing.T, gw storage.Gateway) {
	ctx := Context()
	for _, offset := range []int{60, 0, 180, 120} {
		mustSaveCycle(t, gw, Cycle(offset))
	}

	got, err := gw.GetCycles(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Cycle(180).CycleID, got[0].CycleID)
	assert.Equal(t, Cycle(120).CycleID, got[1].CycleID)
	assert.Equal(t, Cycle(60).CycleID, got[2].CycleID)
}

// Batches are written for two cycles sharing natural ids; each cycle reads
// back exactly its own batch in insertion order.
func testCycleScopedIsolation(t *testing.T, gw storage.Gateway) {
	ctx := Context()
	c1, c2 := Cycle(0), Cycle(60)
	mustSaveCycle(t, gw, c1)
	mustSaveCycle(t, gw, c2)

	cond1 := []model.RoadCondition{
		{ID: 20, RoadwayName: "SR-35", RoadCondition: "Snow Covered", WeatherCondition: "Snowing", Restriction: "Chains Required", EncodedPolyline: "_p~iF~ps|U", LastUpdated: 1768460000},
		{ID: 10, RoadwayName: "US-40", RoadCondition: "Wet"},
	}
	cond2 := []model.RoadCondition{{ID: 20, RoadwayName: "SR-35", RoadCondition: "Dry"}}

	ev1 := []model.Event{
		{ID: "E-2", EventType: "closures", EventSubType: "seasonal", RoadwayName: "SR-35", Direction: "Both",
			Description: "Closed for the season", Severity: "Major", Latitude: model.Ptr(40.48), Longitude: model.Ptr(-111.03), IsFullClosure: true},
		{ID: "E-1", EventType: "roadwork"},
	}
	ev2 := []model.Event{{ID: "E-2", EventType: "closures", IsFullClosure: false}}

	wx1 := []model.WeatherStation{
		{ID: 5, StationName: "SR-35 @ Wolf Creek", AirTemperature: "18", SurfaceTemp: "22", SurfaceStatus: "Ice Warning",
			WindSpeedAvg: "12", WindSpeedGust: "30", WindDirection: "NW", Precipitation: "Snow", RelativeHumidity: "88"},
	}
	wx2 := []model.WeatherStation{{ID: 5, StationName: "SR-35 @ Wolf Creek", AirTemperature: "25"}, {ID: 6, StationName: "US-40 @ Daniels Summit"}}

	pass1 := []model.MountainPass{
		{ID: 3, Name: "Wolf Creek Pass", Roadway: "SR-35", ElevationFt: "9485", Latitude: model.Ptr(40.48), Longitude: model.Ptr(-111.03),
			AirTemperature: "15", WindSpeed: "10", WindGust: "25", WindDirection: "W", SurfaceTemp: "20", SurfaceStatus: "Snow",
			Visibility: "0.5", Forecasts: "Snow showers", ClosureStatus: "CLOSED", ClosureDescription: "Seasonal closure"},
	}
	pass2 := []model.MountainPass{{ID: 3, Name: "Wolf Creek Pass", ClosureStatus: "OPEN"}}

	plow1 := []model.SnowPlow{{ID: 44, Name: "Plow 44", Latitude: model.Ptr(40.5), Longitude: model.Ptr(-111.1), Heading: model.Ptr(90.0), Speed: model.Ptr(25.5), LastUpdated: "2026-01-15T06:55:00"}}
	plow2 := []model.SnowPlow{{ID: 44, Name: "Plow 44"}, {ID: 45, Name: "Plow 45"}}

	require.NoError(t, gw.SaveRoadConditions(ctx, c1.CycleID, cond1))
	require.NoError(t, gw.SaveRoadConditions(ctx, c2.CycleID, cond2))
	require.NoError(t, gw.SaveEvents(ctx, c1.CycleID, ev1))
	require.NoError(t, gw.SaveEvents(ctx, c2.CycleID, ev2))
	require.NoError(t, gw.SaveWeather(ctx, c1.CycleID, wx1))
	require.NoError(t, gw.SaveWeather(ctx, c2.CycleID, wx2))
	require.NoError(t, gw.SaveMountainPasses(ctx, c1.CycleID, pass1))
	require.NoError(t, gw.SaveMountainPasses(ctx, c2.CycleID, pass2))
	require.NoError(t, gw.SaveSnowPlows(ctx, c1.CycleID, plow1))
	require.NoError(t, gw.SaveSnowPlows(ctx, c2.CycleID, plow2))

	gotCond, err := gw.GetRoadConditions(ctx, c1.CycleID)
	require.NoError(t, err)
	assert.Equal(t, cond1, gotCond)
	gotCond, err = gw.GetRoadConditions(ctx, c2.CycleID)
	require.NoError(t, err)
	assert.Equal(t, cond2, gotCond)

	gotEv, err := gw.GetEvents(ctx, c1.CycleID)
	require.NoError(t, err)
	assert.Equal(t, ev1, gotEv)
	gotEv, err = gw.GetEvents(ctx, c2.CycleID)
	require.NoError(t, err)
	assert.Equal(t, ev2, gotEv)

	gotWx, err := gw.GetWeather(ctx, c1.CycleID)
	require.NoError(t, err)
	assert.Equal(t, wx1, gotWx)
	gotWx, err = gw.GetWeather(ctx, c2.CycleID)
	require.NoError(t, err)
	assert.Equal(t, wx2, gotWx)

	gotPass, err := gw.GetMountainPasses(ctx, c1.CycleID)
	require.NoError(t, err)
	assert.Equal(t, pass1, gotPass)
	gotPass, err = gw.GetMountainPasses(ctx, c2.CycleID)
	require.NoError(t, err)
	assert.Equal(t, pass2, gotPass)

	gotPlow, err := gw.GetSnowPlows(ctx, c1.CycleID)
	require.NoError(t, err)
	assert.Equal(t, plow1, gotPlow)
	gotPlow, err = gw.GetSnowPlows(ctx, c2.CycleID)
	require.NoError(t, err)
	assert.Equal(t, plow2, gotPlow)

	empty, err := gw.GetEvents(ctx, "1999-01-01T00:00:00")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testCycleScopedRequiresCycle(t *testing.T, gw storage.Gateway) {
	ctx := Context()
	missing := Cycle(0).CycleID

	assert.ErrorIs(t, gw.SaveRoadConditions(ctx, missing, []model.RoadCondition{{ID: 1}}), storage.ErrUnknownCycle)
	assert.ErrorIs(t, gw.SaveEvents(ctx, missing, []model.Event{{ID: "1"}}), storage.ErrUnknownCycle)
	assert.ErrorIs(t, gw.SaveWeather(ctx, missing, []model.WeatherStation{{ID: 1}}), storage.ErrUnknownCycle)
	assert.ErrorIs(t, gw.SaveMountainPasses(ctx, missing, []model.MountainPass{{ID: 1}}), storage.ErrUnknownCycle)
	assert.ErrorIs(t, gw.SaveSnowPlows(ctx, missing, []model.SnowPlow{{ID: 1}}), storage.ErrUnknownCycle)
}

func testCycleScopedOptionalFields(t *testing.T, gw storage.Gateway) {
	ctx := Context()
	cycle := Cycle(0)
	mustSaveCycle(t, gw, cycle)

	events := []model.Event{{ID: "no-location", EventType: "incident"}}
	require.NoError(t, gw.SaveEvents(ctx, cycle.CycleID, events))
	require.NoError(t, gw.SaveSnowPlows(ctx, cycle.CycleID, nil))

	got, err := gw.GetEvents(ctx, cycle.CycleID)
	require.NoError(t, err)
	assert.Equal(t, events, got)
	assert.Nil(t, got[0].Latitude)

	plows, err := gw.GetSnowPlows(ctx, cycle.CycleID)
	require.NoError(t, err)
	assert.Empty(t, plows)
}

func testImageHash(t *testing.T, gw storage.Gateway) {
	ctx := Context()

	_, ok, err := gw.GetImageHash(ctx, 90779)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, gw.SaveImageHash(ctx, 90779, "aaa"))
	require.NoError(t, gw.SaveImageHash(ctx, 90779, "bbb"))
	require.NoError(t, gw.SaveImageHash(ctx, 90544, "ccc"))

	hash, ok, err := gw.GetImageHash(ctx, 90779)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bbb", hash)
}

func testImages(t *testing.T, gw storage.Gateway) {
	ctx := Context()

	url, err := gw.SaveImage(ctx, "cam_1_20260115_070000_abc.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, gw.GetImageURL("cam_1_20260115_070000_abc.jpg"), url)
	assert.Contains(t, url, "images")

	data, err := gw.Objects().Get(ctx, storage.ImagePrefix+"cam_1_20260115_070000_abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)
}

// Context returns a background context carrying a development logger
func Context() context.Context {
	return logging.With(context.Background(), logging.NewDevLogger())
}
