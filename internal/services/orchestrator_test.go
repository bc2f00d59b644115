package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/wolfcreekpass/server/internal/lib/dedup"
	"github.com/dpup/wolfcreekpass/server/internal/metrics"
	"github.com/dpup/wolfcreekpass/server/internal/model"
)

func captureIDs(captures []model.CaptureRecord) []int {
	out := make([]int, len(captures))
	for i, c := range captures {
		out[i] = c.CameraID
	}
	return out
}

func TestRunCycle_FullCycle(t *testing.T) {
	ctx := testContext()
	f := newFixture(t)

	res, err := f.orchestrator().RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, "2026-01-15T07:00:01", res.CycleID())
	assert.Equal(t, StatusOK, res.Status(), "warnings: %v", res.Warnings())
	assert.Equal(t, []int{1, 2, 3}, captureIDs(res.Captures), "configured cameras first, then discovered")

	sum := res.Summary
	require.NotNil(t, sum.CompletedAt)
	assert.Equal(t, 3, sum.CamerasProcessed)
	assert.Equal(t, 1, sum.SnowCount)
	assert.Equal(t, 1, sum.EventCount)
	assert.Equal(t, model.Ptr(8240), sum.TravelTimeS)
	assert.Equal(t, model.Ptr(201734), sum.DistanceM)

	stored, err := f.store.GetCycle(ctx, res.CycleID())
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, 3, stored.CamerasProcessed)

	captures, err := f.store.GetCapturesByCycle(ctx, res.CycleID())
	require.NoError(t, err)
	require.Len(t, captures, 3)
	assert.Equal(t, "Snow on the shoulder", captures[0].AnalysisNotes)
	assert.Equal(t, model.Ptr("SR-35"), captures[0].Roadway, "camera fields are denormalized")
	data, err := f.store.Objects().Get(ctx, "images/"+captures[0].ImageKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-1"), data)

	require.Len(t, res.Cameras, 3)
	assert.NotNil(t, res.Cameras[0].DistanceFromRouteKm)

	events, err := f.store.GetEvents(ctx, res.CycleID())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "near", events[0].ID)

	conditions, _ := f.store.GetRoadConditions(ctx, res.CycleID())
	assert.Len(t, conditions, 1)
	weather, _ := f.store.GetWeather(ctx, res.CycleID())
	require.Len(t, weather, 1)
	assert.Equal(t, "Wolf Creek Summit", weather[0].StationName)
	passes, _ := f.store.GetMountainPasses(ctx, res.CycleID())
	assert.Len(t, passes, 1)
	plows, _ := f.store.GetSnowPlows(ctx, res.CycleID())
	require.Len(t, plows, 1)
	assert.Equal(t, 7, plows[0].ID)

	routes, err := f.store.GetRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	byID := map[string]model.Route{}
	for _, r := range routes {
		byID[r.RouteID] = r
	}
	assert.True(t, byID["parleys-wolfcreek"].HasClosure, "closed pass on the route")
	assert.True(t, byID["parleys-wolfcreek"].HasConditions, "snow on the route")
	assert.False(t, byID["us40-tabiona"].HasClosure)
	assert.False(t, byID["us40-tabiona"].HasConditions)

	assert.Equal(t, 1, f.exporter.count())
	assert.Same(t, res, f.exporter.results[0])
}

func TestRunCycle_DedupReusesPriorCapture(t *testing.T) {
	ctx := testContext()
	f := newFixture(t)
	o := f.orchestrator()

	first, err := o.RunCycle(ctx)
	require.NoError(t, err)

	f.clock.Set(cycleStart.Add(time.Hour))
	second, err := o.RunCycle(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.CycleID(), second.CycleID())

	require.Len(t, second.Captures, 3)
	for i, c := range second.Captures {
		prior := first.Captures[i]
		assert.Equal(t, prior.ImageKey, c.ImageKey, "camera %d reuses the stored image", c.CameraID)
		assert.Equal(t, prior.HasSnow, c.HasSnow)
		assert.Equal(t, prior.AnalysisNotes+dedup.CachedSuffix, c.AnalysisNotes)
		assert.Equal(t, second.CycleID(), c.CycleID)
	}
	assert.Equal(t, 1, second.Summary.SnowCount, "cached analysis still counts")

	f.analyzer.AssertNumberOfCalls(t, "Analyze", 3)

	// A third unchanged cycle does not stack the cached marker
	f.clock.Set(cycleStart.Add(2 * time.Hour))
	third, err := o.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Snow on the shoulder [cached]", third.Captures[0].AnalysisNotes)
}

func TestRunCycle_ChangedImageIsAnalyzedAgain(t *testing.T) {
	ctx := testContext()
	f := newFixture(t)
	o := f.orchestrator()

	first, err := o.RunCycle(ctx)
	require.NoError(t, err)

	f.images.images["http://cams.test/2.jpg"] = []byte("image-2-new")
	f.clock.Set(cycleStart.Add(time.Hour))
	second, err := o.RunCycle(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.Captures[1].ImageKey, second.Captures[1].ImageKey)
	assert.Equal(t, "Dry road", second.Captures[1].AnalysisNotes)
	f.analyzer.AssertNumberOfCalls(t, "Analyze", 4)
}

func TestRunCycle_SkipWithoutPriorCaptureProcessesAsNew(t *testing.T) {
	ctx := testContext()
	f := newFixture(t)
	require.NoError(t, f.store.SaveImageHash(ctx, 1, dedup.Hash([]byte("image-1"))))

	res, err := f.orchestrator().RunCycle(ctx)
	require.NoError(t, err)

	require.Len(t, res.Captures, 3)
	assert.Equal(t, "Snow on the shoulder", res.Captures[0].AnalysisNotes)
	assert.NotEmpty(t, res.Captures[0].ImageKey)
}

func TestRunCycle_EnrichmentFailuresAreIsolated(t *testing.T) {
	ctx := testContext()
	f := newFixture(t)
	f.traffic.enrichmentErr = errors.New("udot unavailable")
	f.traffic.panicOn = "weather"

	res, err := f.orchestrator().RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusDegraded, res.Status())
	assert.Equal(t, 0, res.Summary.EventCount)
	assert.Equal(t, 3, res.Summary.CamerasProcessed)
	assert.Empty(t, res.Events)

	for _, stage := range []Stage{StageConditions, StageEvents, StageWeather, StagePasses, StagePlows} {
		report, ok := res.Stage(stage)
		require.True(t, ok, "stage %s reported", stage)
		assert.Equal(t, StatusFailed, report.Status, stage)
	}
	weather, _ := res.Stage(StageWeather)
	assert.Contains(t, weather.Error, "panic: weather exploded")

	flags, _ := res.Stage(StageRouteFlags)
	assert.Equal(t, StatusOK, flags.Status)

	cycles, err := f.store.GetCycles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cycles, 1, "exactly one summary per cycle")
	assert.NotNil(t, cycles[0].CompletedAt)
	assert.Equal(t, 0, cycles[0].EventCount)

	assert.Equal(t, 1, f.exporter.count(), "export still runs")
	assert.Error(t, res.Warnings())
}

func TestRunCycle_DownloadFailureDropsCamera(t *testing.T) {
	ctx := testContext()
	f := newFixture(t)
	delete(f.images.images, "http://cams.test/2.jpg")

	res, err := f.orchestrator().RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, captureIDs(res.Captures))
	assert.Equal(t, 2, res.Summary.CamerasProcessed)

	report, _ := res.Stage(StagePerCameraLoop)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Contains(t, report.Error, "camera 2")

	latest, err := f.store.GetLatestCapture(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestRunCycle_CameraCatalogFailure(t *testing.T) {
	f := newFixture(t)
	f.traffic.err = errors.New("udot cameras: rate limit exceeded")

	res, err := f.orchestrator().RunCycle(testContext())
	require.NoError(t, err)

	assert.Empty(t, res.Captures)
	assert.Equal(t, 0, res.Summary.CamerasProcessed)
	match, _ := res.Stage(StageCameraMatch)
	assert.Equal(t, StatusFailed, match.Status)
	assert.Equal(t, 1, res.Summary.EventCount, "enrichment still runs")
}

func TestRunCycle_RouteFallback(t *testing.T) {
	ctx := testContext()

	t.Run("provider down uses stored routes", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.SaveRoutes(ctx, liveRoutes()))
		f.routes.routes = nil
		f.routes.err = errors.New("google routes: API error 503")

		res, err := f.orchestrator().RunCycle(ctx)
		require.NoError(t, err)

		require.Len(t, res.Routes, 2)
		assert.Equal(t, "parleys-wolfcreek", res.Routes[0].RouteID, "configured order")
		assert.Equal(t, primaryLine, res.Routes[0].Polyline)
		assert.Equal(t, model.Ptr(8240), res.Summary.TravelTimeS)
		report, _ := res.Stage(StageRouteRefresh)
		assert.Equal(t, StatusDegraded, report.Status)
	})

	t.Run("partial results fall back per route", func(t *testing.T) {
		f := newFixture(t)
		f.routes.routes = liveRoutes()[1:]
		f.routes.err = errors.New("route parleys-wolfcreek: API error 500")

		res, err := f.orchestrator().RunCycle(ctx)
		require.NoError(t, err)

		require.Len(t, res.Routes, 2)
		stub := res.Routes[0]
		assert.Equal(t, "parleys-wolfcreek", stub.RouteID)
		assert.Empty(t, stub.Polyline)
		assert.Equal(t, "#3b82f6", stub.Color)
		assert.Nil(t, res.Summary.TravelTimeS, "primary route has no geometry")
		assert.Nil(t, res.Summary.DistanceM)
		assert.Equal(t, []int{1, 2, 3}, captureIDs(res.Captures))
	})
}

func TestRunCycle_SummarizeFailureSkipsExport(t *testing.T) {
	f := newFixture(t)
	f.store = &failingStore{Gateway: f.store, allowCycles: 1}

	res, err := f.orchestrator().RunCycle(testContext())
	require.Error(t, err)
	assert.ErrorContains(t, err, "database is locked")

	assert.Equal(t, StatusFailed, res.Status())
	assert.Equal(t, 0, f.exporter.count())
	_, exported := res.Stage(StageExport)
	assert.False(t, exported)
}

func TestRunCycle_ExportFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.exporter.err = errors.New("bucket missing")

	res, err := f.orchestrator().RunCycle(testContext())
	require.NoError(t, err)

	report, ok := res.Stage(StageExport)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, report.Status)
	assert.Contains(t, report.Error, "fake: bucket missing")
}

func TestRunCycle_WorkerPoolKeepsCameraOrder(t *testing.T) {
	ctx := testContext()
	f := newFixture(t)
	f.cfg.Capture.Workers = 4
	f.cfg.Routes[0].CameraIDs = nil
	f.cfg.Routes[1].CameraIDs = nil
	f.traffic.cameras = nil
	for i := 1; i <= 12; i++ {
		cam := testCamera(100+i, 40.4800, -111.0300)
		f.traffic.cameras = append(f.traffic.cameras, cam)
		f.images.images[cam.ImageURLs[0]] = []byte(strings.Repeat("x", i))
	}
	m := metrics.New()
	o := NewOrchestrator(f.cfg, Dependencies{
		Store: f.store, Routes: f.routes, Traffic: f.traffic, Images: f.images,
		Analyzer: f.analyzer, Metrics: m, Clock: f.clock.Now,
	})

	res, err := o.RunCycle(ctx)
	require.NoError(t, err)

	require.Len(t, res.Captures, 12)
	for i, c := range res.Captures {
		assert.Equal(t, 101+i, c.CameraID)
	}
	stored, err := f.store.GetCapturesByCycle(ctx, res.CycleID())
	require.NoError(t, err)
	assert.Len(t, stored, 12)
}

func TestRunCycle_CanceledContextStillSummarizes(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(testContext())
	cancel()

	res, err := f.orchestrator().RunCycle(ctx)
	require.NoError(t, err)

	assert.Empty(t, res.Captures)
	stored, err := f.store.GetCycles(testContext(), 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotNil(t, stored[0].CompletedAt)
	f.analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestRunCycle_ContextWithoutLogger(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var res *CycleResult
	require.NotPanics(t, func() {
		var err error
		res, err = f.orchestrator().RunCycle(ctx)
		require.NoError(t, err)
	})
	summary, ok := res.Stage(StageSummarize)
	require.True(t, ok)
	assert.Equal(t, StatusOK, summary.Status)
}
