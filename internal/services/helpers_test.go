package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"

	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/model"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
	"github.com/dpup/wolfcreekpass/server/internal/storage/blob"
	"github.com/dpup/wolfcreekpass/server/internal/storage/sqlstore"
)

var (
	// SR-35 from Francis over Wolf Creek summit
	primaryLine = encode([]float64{40.6105, -111.2810}, []float64{40.5500, -111.1800}, []float64{40.4800, -111.0300})
	// US-40 from Heber toward Duchesne
	us40Line = encode([]float64{40.5080, -111.4130}, []float64{40.3600, -110.7000})
)

func encode(coords ...[]float64) string {
	return string(polyline.EncodeCoords(coords))
}

func newTestStore(t *testing.T) storage.Gateway {
	t.Helper()
	dir := t.TempDir()
	images, err := blob.NewLocal(filepath.Join(dir, "objects"))
	require.NoError(t, err)
	store, err := sqlstore.Open(sqlstore.Options{
		Dialect: sqlstore.DialectSQLite,
		DSN:     filepath.Join(dir, "wolfcreek.db"),
		Images:  images,
	})
	require.NoError(t, err)
	require.NoError(t, store.Init(testContext()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Routes = []config.RouteConfig{
		{
			ID:          "parleys-wolfcreek",
			Name:        "Parley's / Wolf Creek",
			Origin:      "Riverton, UT",
			Destination: "Hanna, UT",
			CameraIDs:   []int{1, 2, 99},
			ClosurePass: "wolf creek",
		},
		{
			ID:          "us40-tabiona",
			Name:        "US-40 / Tabiona",
			Origin:      "Riverton, UT",
			Destination: "Hanna, UT",
		},
	}
	return cfg
}

func liveRoutes() []model.Route {
	return []model.Route{
		{RouteID: "parleys-wolfcreek", Name: "Parley's / Wolf Creek", Color: "#3b82f6", Polyline: primaryLine, DistanceM: 201734, DurationS: 8240},
		{RouteID: "us40-tabiona", Name: "US-40 / Tabiona", Color: "#f97316", Polyline: us40Line, DistanceM: 225000, DurationS: 9000},
	}
}

func testCamera(id int, lat, lon float64) model.Camera {
	return model.Camera{
		ID:        id,
		Roadway:   model.Ptr("SR-35"),
		Location:  model.Ptr(fmt.Sprintf("Camera %d", id)),
		Latitude:  model.Ptr(lat),
		Longitude: model.Ptr(lon),
		ImageURLs: []string{fmt.Sprintf("http://cams.test/%d.jpg", id)},
	}
}

// stepClock advances one second per call
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{now: start}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeRoutes struct {
	routes []model.Route
	err    error
}

func (f *fakeRoutes) GetRoutes(context.Context, []config.RouteConfig) ([]model.Route, error) {
	return f.routes, f.err
}

type fakeTraffic struct {
	cameras    []model.Camera
	conditions []model.RoadCondition
	events     []model.Event
	weather    []model.WeatherStation
	passes     []model.MountainPass
	plows      []model.SnowPlow
	err        error
	// enrichmentErr fails every category except cameras
	enrichmentErr error
	panicOn       string
}

func (f *fakeTraffic) Cameras(context.Context) ([]model.Camera, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cameras, nil
}

func (f *fakeTraffic) enrichment(name string) error {
	if f.panicOn == name {
		panic(name + " exploded")
	}
	return f.enrichmentErr
}

func (f *fakeTraffic) RoadConditions(context.Context) ([]model.RoadCondition, error) {
	if err := f.enrichment("conditions"); err != nil {
		return nil, err
	}
	return f.conditions, nil
}

func (f *fakeTraffic) Events(context.Context) ([]model.Event, error) {
	if err := f.enrichment("events"); err != nil {
		return nil, err
	}
	return f.events, nil
}

func (f *fakeTraffic) WeatherStations(context.Context) ([]model.WeatherStation, error) {
	if err := f.enrichment("weather"); err != nil {
		return nil, err
	}
	return f.weather, nil
}

func (f *fakeTraffic) MountainPasses(context.Context) ([]model.MountainPass, error) {
	if err := f.enrichment("passes"); err != nil {
		return nil, err
	}
	return f.passes, nil
}

func (f *fakeTraffic) SnowPlows(context.Context) ([]model.SnowPlow, error) {
	if err := f.enrichment("plows"); err != nil {
		return nil, err
	}
	return f.plows, nil
}

// fakeImages serves image bytes by URL
type fakeImages struct {
	mu     sync.Mutex
	images map[string][]byte
	calls  int
}

func (f *fakeImages) Download(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	data, ok := f.images[url]
	if !ok {
		return nil, errors.New("status 404")
	}
	return data, nil
}

// MockAnalyzer is a mock implementation of ImageAnalyzer
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, data []byte) model.AnalysisResult {
	args := m.Called(ctx, data)
	return args.Get(0).(model.AnalysisResult)
}

type fakeExporter struct {
	mu      sync.Mutex
	results []*CycleResult
	err     error
}

func (f *fakeExporter) Name() string { return "fake" }

func (f *fakeExporter) Export(_ context.Context, res *CycleResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, res)
	return f.err
}

func (f *fakeExporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

// failingStore fails cycle summary writes after the first n
type failingStore struct {
	storage.Gateway
	mu          sync.Mutex
	cycleWrites int
	allowCycles int
}

func (s *failingStore) SaveCycle(ctx context.Context, cycle model.CycleSummary) error {
	s.mu.Lock()
	s.cycleWrites++
	n := s.cycleWrites
	s.mu.Unlock()
	if n > s.allowCycles {
		return errors.New("database is locked")
	}
	return s.Gateway.SaveCycle(ctx, cycle)
}

// fixture bundles a fully wired orchestrator
type fixture struct {
	cfg      *config.Config
	store    storage.Gateway
	routes   *fakeRoutes
	traffic  *fakeTraffic
	images   *fakeImages
	analyzer *MockAnalyzer
	exporter *fakeExporter
	clock    *stepClock
}

var cycleStart = time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cfg:    testConfig(),
		store:  newTestStore(t),
		routes: &fakeRoutes{routes: liveRoutes()},
		traffic: &fakeTraffic{
			cameras: []model.Camera{
				testCamera(1, 40.6105, -111.2810),
				testCamera(2, 40.4801, -111.0301),
				testCamera(3, 40.5081, -111.4131), // near US-40, discovered
				testCamera(4, 37.1000, -113.5800), // St George
			},
			conditions: []model.RoadCondition{
				{ID: 1, RoadwayName: "SR-35", RoadCondition: "Snow", EncodedPolyline: encode([]float64{40.55, -111.18}, []float64{40.48, -111.03})},
				{ID: 2, RoadwayName: "I-70", RoadCondition: "Dry"},
			},
			events: []model.Event{
				{ID: "near", EventType: "roadwork", Latitude: model.Ptr(40.5501), Longitude: model.Ptr(-111.1801)},
				{ID: "far", EventType: "accident", Latitude: model.Ptr(37.1), Longitude: model.Ptr(-113.58)},
			},
			weather: []model.WeatherStation{
				{ID: 1, StationName: "Wolf Creek Summit"},
				{ID: 2, StationName: "St George Blvd"},
			},
			passes: []model.MountainPass{
				{ID: 1, Name: "Wolf Creek Pass", ClosureStatus: "Closed"},
				{ID: 2, Name: "Logan Summit"},
			},
			plows: []model.SnowPlow{
				{ID: 7, Name: "Plow 7", Latitude: model.Ptr(40.5100), Longitude: model.Ptr(-111.1000)},
				{ID: 8, Name: "Plow 8", Latitude: model.Ptr(37.1), Longitude: model.Ptr(-113.58)},
			},
		},
		images: &fakeImages{images: map[string][]byte{
			"http://cams.test/1.jpg": []byte("image-1"),
			"http://cams.test/2.jpg": []byte("image-2"),
			"http://cams.test/3.jpg": []byte("image-3"),
		}},
		analyzer: &MockAnalyzer{},
		exporter: &fakeExporter{},
		clock:    newStepClock(cycleStart),
	}
	f.analyzer.On("Analyze", mock.Anything, []byte("image-1")).
		Return(model.AnalysisResult{HasSnow: model.Ptr(true), HasCar: model.Ptr(true), Notes: "Snow on the shoulder"})
	f.analyzer.On("Analyze", mock.Anything, mock.Anything).
		Return(model.AnalysisResult{HasSnow: model.Ptr(false), Notes: "Dry road"})
	return f
}

func (f *fixture) orchestrator() *Orchestrator {
	return NewOrchestrator(f.cfg, Dependencies{
		Store:     f.store,
		Routes:    f.routes,
		Traffic:   f.traffic,
		Images:    f.images,
		Analyzer:  f.analyzer,
		Exporters: []Exporter{f.exporter},
		Clock:     f.clock.Now,
	})
}

// testContext returns a background context carrying a development logger
func testContext() context.Context {
	return logging.With(context.Background(), logging.NewDevLogger())
}
