package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/lib/dedup"
	"github.com/dpup/wolfcreekpass/server/internal/lib/routing"
	"github.com/dpup/wolfcreekpass/server/internal/metrics"
	"github.com/dpup/wolfcreekpass/server/internal/model"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
)

// summarizeTimeout bounds the final summary write once the cycle context is done
const summarizeTimeout = 30 * time.Second

// Dependencies are the collaborators a cycle talks to
type Dependencies struct {
	Store     storage.Gateway
	Routes    RouteProvider
	Traffic   TrafficSource
	Images    ImageDownloader
	Analyzer  ImageAnalyzer
	Exporters []Exporter
	// Metrics is optional
	Metrics *metrics.Metrics
	// Clock defaults to time.Now
	Clock Clock
}

// Orchestrator runs capture cycles
type Orchestrator struct {
	cfg       *config.Config
	store     storage.Gateway
	routes    RouteProvider
	traffic   TrafficSource
	images    ImageDownloader
	analyzer  ImageAnalyzer
	exporters []Exporter
	dedup     *dedup.Cache
	metrics   *metrics.Metrics
	clock     Clock
}

// NewOrchestrator creates an orchestrator for cfg
func NewOrchestrator(cfg *config.Config, deps Dependencies) *Orchestrator {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     deps.Store,
		routes:    deps.Routes,
		traffic:   deps.Traffic,
		images:    deps.Images,
		analyzer:  deps.Analyzer,
		exporters: deps.Exporters,
		dedup:     dedup.NewCache(deps.Store),
		metrics:   deps.Metrics,
		clock:     clock,
	}
}

// RunCycle performs one full capture cycle. Stage failures are reported on
// the result; an error is returned only when the final summary could not be
// saved.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleResult, error) {
	ctx = logging.EnsureLogger(ctx)
	started := o.now().UTC().Truncate(time.Second)
	res := &CycleResult{
		Summary: model.CycleSummary{
			CycleID:   started.Format(model.CycleIDLayout),
			StartedAt: started,
		},
	}
	logging.Infow(ctx, "Starting capture cycle", "cycle", res.CycleID())

	_ = o.runStage(ctx, res, StageInit, func(ctx context.Context) error {
		if err := o.store.SaveCycle(ctx, res.Summary); err != nil {
			return fmt.Errorf("failed to save cycle start: %w", err)
		}
		return nil
	})
	_ = o.runStage(ctx, res, StageRouteRefresh, func(ctx context.Context) error {
		return o.refreshRoutes(ctx, res)
	})
	_ = o.runStage(ctx, res, StageCameraMatch, func(ctx context.Context) error {
		return o.matchCameras(ctx, res)
	})
	_ = o.runStage(ctx, res, StagePerCameraLoop, func(ctx context.Context) error {
		return o.captureCameras(ctx, res)
	})
	o.enrich(ctx, res)

	// The summary is written even when the cycle context has expired
	summaryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summarizeTimeout)
	defer cancel()
	summaryErr := o.runStage(summaryCtx, res, StageSummarize, func(ctx context.Context) error {
		return o.summarize(ctx, res)
	})

	if summaryErr == nil && len(o.exporters) > 0 {
		_ = o.runStage(ctx, res, StageExport, func(ctx context.Context) error {
			return o.export(ctx, res)
		})
	}

	status := res.Status()
	o.metrics.ObserveCycle(string(status), o.now().Sub(started), derefTime(res.Summary.CompletedAt))
	logging.Infow(ctx, "Capture cycle complete",
		"cycle", res.CycleID(),
		"status", status,
		"cameras_processed", res.Summary.CamerasProcessed,
		"snow_count", res.Summary.SnowCount,
		"event_count", res.Summary.EventCount,
		"warnings", len(res.Stages)-countStatus(res.Stages, StatusOK))

	if summaryErr != nil {
		return res, fmt.Errorf("cycle %s: %w", res.CycleID(), summaryErr)
	}
	return res, nil
}

// refreshRoutes loads live routes, falling back to stored or configured
// routes for anything the provider could not compute
func (o *Orchestrator) refreshRoutes(ctx context.Context, res *CycleResult) error {
	stored, storedErr := o.store.GetRoutes(ctx)
	if storedErr != nil {
		logging.Warnw(ctx, "Failed to load stored routes", "error", storedErr)
	}
	storedByID := make(map[string]model.Route, len(stored))
	for _, r := range stored {
		storedByID[r.RouteID] = r
	}

	fetched, fetchErr := o.routes.GetRoutes(ctx, o.cfg.Routes)
	if len(fetched) == 0 && fetchErr != nil {
		if len(stored) > 0 {
			res.Routes = o.configOrder(stored)
			logging.Warnw(ctx, "Route provider failed, using stored routes", "error", fetchErr, "routes", len(stored))
			return degraded(fmt.Errorf("failed to fetch routes: %w", fetchErr))
		}
	}

	fetchedByID := make(map[string]model.Route, len(fetched))
	for _, r := range fetched {
		fetchedByID[r.RouteID] = r
	}

	var fallbacks []string
	routes := make([]model.Route, 0, len(o.cfg.Routes))
	for _, rc := range o.cfg.Routes {
		if r, ok := fetchedByID[rc.ID]; ok {
			routes = append(routes, r)
			continue
		}
		fallbacks = append(fallbacks, rc.ID)
		if r, ok := storedByID[rc.ID]; ok {
			routes = append(routes, r)
			continue
		}
		routes = append(routes, stubRoute(rc))
	}
	res.Routes = routes

	if err := o.store.SaveRoutes(ctx, routes); err != nil {
		return fmt.Errorf("failed to save routes: %w", err)
	}

	var errs *multierror.Error
	if fetchErr != nil {
		errs = multierror.Append(errs, fetchErr)
	}
	if len(fallbacks) > 0 {
		logging.Warnw(ctx, "Routes fell back to stored or configured values", "routes", fallbacks)
		errs = multierror.Append(errs, fmt.Errorf("routes without live data: %s", strings.Join(fallbacks, ", ")))
	}
	return degraded(errs.ErrorOrNil())
}

// configOrder orders routes as configured, appending unconfigured routes last
func (o *Orchestrator) configOrder(routes []model.Route) []model.Route {
	rank := make(map[string]int, len(o.cfg.Routes))
	for i, rc := range o.cfg.Routes {
		rank[rc.ID] = i
	}
	out := make([]model.Route, 0, len(routes))
	var rest []model.Route
	for _, r := range routes {
		if _, ok := rank[r.RouteID]; !ok {
			rest = append(rest, r)
		}
	}
	for _, rc := range o.cfg.Routes {
		for _, r := range routes {
			if r.RouteID == rc.ID {
				out = append(out, r)
			}
		}
	}
	return append(out, rest...)
}

func stubRoute(rc config.RouteConfig) model.Route {
	color := rc.Color
	if color == "" {
		color = config.DefaultRouteColor
	}
	return model.Route{
		RouteID:     rc.ID,
		Name:        rc.Name,
		Color:       color,
		Origin:      rc.Origin,
		Destination: rc.Destination,
	}
}

// matchCameras resolves configured camera ids and discovers cameras near
// routes configured without any
func (o *Orchestrator) matchCameras(ctx context.Context, res *CycleResult) error {
	catalog, err := o.traffic.Cameras(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cameras: %w", err)
	}
	byID := make(map[int]model.Camera, len(catalog))
	for _, c := range catalog {
		byID[c.ID] = c
	}
	routesByID := make(map[string]model.Route, len(res.Routes))
	for _, r := range res.Routes {
		routesByID[r.RouteID] = r
	}

	seen := make(map[int]bool)
	var matched []model.Camera
	var missing []int
	add := func(c model.Camera) {
		if !seen[c.ID] {
			seen[c.ID] = true
			matched = append(matched, c)
		}
	}

	for _, rc := range o.cfg.Routes {
		if len(rc.CameraIDs) > 0 {
			for _, id := range rc.CameraIDs {
				if c, ok := byID[id]; ok {
					add(c)
				} else if !seen[id] {
					seen[id] = true
					missing = append(missing, id)
				}
			}
			continue
		}

		route, ok := routesByID[rc.ID]
		if !ok || len(routing.RoutePoints(route)) == 0 {
			logging.Warnw(ctx, "Route has no geometry for camera discovery", "route", rc.ID)
			continue
		}
		for _, c := range routing.FilterCameras(catalog, route, o.cfg.Capture.CameraBufferKm) {
			add(c)
		}
	}

	if len(missing) > 0 {
		logging.Warnw(ctx, "Configured cameras not found in catalog", "camera_ids", missing)
	}

	res.Cameras = routing.AnnotateCameras(matched, res.Routes)
	logging.Infow(ctx, "Matched cameras", "cycle", res.CycleID(), "cameras", len(res.Cameras), "catalog", len(catalog))
	return nil
}

// captureCameras processes every matched camera, sequentially or with a
// bounded pool. Each camera's writes stay in order within its own task.
func (o *Orchestrator) captureCameras(ctx context.Context, res *CycleResult) error {
	cameras := res.Cameras
	captures := make([]*model.CaptureRecord, len(cameras))
	failures := make([]error, len(cameras))

	process := func(ctx context.Context, i int) {
		capture, err := o.captureCamera(ctx, res.CycleID(), cameras[i])
		captures[i] = capture
		if err != nil {
			failures[i] = fmt.Errorf("camera %d: %w", cameras[i].ID, err)
		}
	}

	workers := o.cfg.Capture.Workers
	if workers <= 1 {
		for i := range cameras {
			if ctx.Err() != nil {
				failures[i] = fmt.Errorf("camera %d: %w", cameras[i].ID, ctx.Err())
				continue
			}
			process(ctx, i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := range cameras {
			g.Go(func() error {
				if gctx.Err() != nil {
					failures[i] = fmt.Errorf("camera %d: %w", cameras[i].ID, gctx.Err())
					return nil
				}
				process(gctx, i)
				return nil
			})
		}
		_ = g.Wait()
	}

	var errs *multierror.Error
	for i := range cameras {
		if captures[i] != nil {
			res.Captures = append(res.Captures, *captures[i])
		}
		if failures[i] != nil {
			errs = multierror.Append(errs, failures[i])
		}
	}
	logging.Infow(ctx, "Processed cameras", "cycle", res.CycleID(), "captures", len(res.Captures), "failed", len(errs.WrappedErrors()))
	return degraded(errs.ErrorOrNil())
}

// captureCamera downloads, deduplicates, analyzes and records one camera
func (o *Orchestrator) captureCamera(ctx context.Context, cycleID string, cam model.Camera) (*model.CaptureRecord, error) {
	if err := o.store.SaveCamera(ctx, cam); err != nil {
		o.metrics.ObserveCapture(metrics.CaptureFailed)
		return nil, fmt.Errorf("failed to save camera: %w", err)
	}

	data, err := o.images.Download(ctx, cam.PrimaryImageURL())
	if err != nil {
		o.metrics.ObserveCapture(metrics.CaptureFailed)
		return nil, fmt.Errorf("failed to download image: %w", err)
	}

	now := o.now().UTC()
	skip, hash, err := o.dedup.ShouldSkip(ctx, cam.ID, data)
	if err != nil {
		logging.Warnw(ctx, "Image hash lookup failed, treating image as new", "camera", cam.ID, "error", err)
	}
	if skip {
		prior, err := o.store.GetLatestCapture(ctx, cam.ID)
		if err != nil {
			logging.Warnw(ctx, "Failed to load prior capture", "camera", cam.ID, "error", err)
		}
		if prior != nil {
			capture := newCapture(cam, cycleID, now)
			capture.ImageKey = prior.ImageKey
			capture.HasSnow = prior.HasSnow
			capture.HasCar = prior.HasCar
			capture.HasTruck = prior.HasTruck
			capture.HasAnimal = prior.HasAnimal
			capture.AnalysisNotes = dedup.CachedNotes(prior.AnalysisNotes)
			if err := o.store.SaveCapture(ctx, capture); err != nil {
				o.metrics.ObserveCapture(metrics.CaptureFailed)
				return nil, fmt.Errorf("failed to save cached capture: %w", err)
			}
			o.metrics.ObserveCapture(metrics.CaptureCached)
			logging.Debugw(ctx, "Image unchanged, reused prior analysis", "camera", cam.ID, "image_key", prior.ImageKey)
			return &capture, nil
		}
		logging.Debugw(ctx, "Image unchanged but no prior capture, processing as new", "camera", cam.ID)
	}

	key := dedup.ImageKey(cam.ID, now, hash)
	if _, err := o.store.SaveImage(ctx, key, data); err != nil {
		o.metrics.ObserveCapture(metrics.CaptureFailed)
		return nil, fmt.Errorf("failed to save image: %w", err)
	}
	// Recorded before analysis; a failed analysis is not retried for the same image
	if err := o.dedup.Remember(ctx, cam.ID, hash); err != nil {
		logging.Warnw(ctx, "Failed to record image hash", "camera", cam.ID, "error", err)
	}

	analysis := o.analyzer.Analyze(ctx, data)
	capture := newCapture(cam, cycleID, now)
	capture.ImageKey = key
	capture.HasSnow = analysis.HasSnow
	capture.HasCar = analysis.HasCar
	capture.HasTruck = analysis.HasTruck
	capture.HasAnimal = analysis.HasAnimal
	capture.AnalysisNotes = analysis.Notes
	if err := o.store.SaveCapture(ctx, capture); err != nil {
		o.metrics.ObserveCapture(metrics.CaptureFailed)
		return nil, fmt.Errorf("failed to save capture: %w", err)
	}
	o.metrics.ObserveCapture(metrics.CaptureNew)
	return &capture, nil
}

func newCapture(cam model.Camera, cycleID string, at time.Time) model.CaptureRecord {
	return model.CaptureRecord{
		CameraID:   cam.ID,
		CycleID:    cycleID,
		CapturedAt: at,
		Roadway:    cam.Roadway,
		Direction:  cam.Direction,
		Location:   cam.Location,
		Latitude:   cam.Latitude,
		Longitude:  cam.Longitude,
	}
}

// enrich collects each enrichment category as its own stage, then derives
// the route flags from what was collected
func (o *Orchestrator) enrich(ctx context.Context, res *CycleResult) {
	cycleID := res.CycleID()
	filters := o.cfg.Filters

	_ = o.runStage(ctx, res, StageConditions, func(ctx context.Context) error {
		all, err := o.traffic.RoadConditions(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch road conditions: %w", err)
		}
		res.Conditions = routing.FilterByName(all, filters.ConditionRoadways, func(c model.RoadCondition) string { return c.RoadwayName })
		return saveBatch(ctx, "road conditions", res.Conditions, func(ctx context.Context) error {
			return o.store.SaveRoadConditions(ctx, cycleID, res.Conditions)
		})
	})

	_ = o.runStage(ctx, res, StageEvents, func(ctx context.Context) error {
		all, err := o.traffic.Events(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch events: %w", err)
		}
		if primary, ok := primaryRoute(res.Routes); ok {
			res.Events = routing.FilterByRoute(all, primary, filters.EventBufferKm, nil)
		} else {
			res.Events = all
		}
		return saveBatch(ctx, "events", res.Events, func(ctx context.Context) error {
			return o.store.SaveEvents(ctx, cycleID, res.Events)
		})
	})

	_ = o.runStage(ctx, res, StageWeather, func(ctx context.Context) error {
		all, err := o.traffic.WeatherStations(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch weather stations: %w", err)
		}
		res.Weather = routing.FilterByName(all, filters.WeatherStations, func(w model.WeatherStation) string { return w.StationName })
		return saveBatch(ctx, "weather", res.Weather, func(ctx context.Context) error {
			return o.store.SaveWeather(ctx, cycleID, res.Weather)
		})
	})

	_ = o.runStage(ctx, res, StagePasses, func(ctx context.Context) error {
		all, err := o.traffic.MountainPasses(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch mountain passes: %w", err)
		}
		res.Passes = routing.FilterByName(all, filters.Passes, func(p model.MountainPass) string { return p.Name })
		for _, p := range res.Passes {
			if p.ClosureStatus != "" {
				logging.Infow(ctx, "Mountain pass status", "pass", p.Name, "status", p.ClosureStatus, "description", p.ClosureDescription)
			}
		}
		return saveBatch(ctx, "mountain passes", res.Passes, func(ctx context.Context) error {
			return o.store.SaveMountainPasses(ctx, cycleID, res.Passes)
		})
	})

	_ = o.runStage(ctx, res, StagePlows, func(ctx context.Context) error {
		all, err := o.traffic.SnowPlows(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch snow plows: %w", err)
		}
		res.Plows = routing.FilterByRoutes(all, res.Routes, filters.PlowBufferKm, nil)
		return saveBatch(ctx, "snow plows", res.Plows, func(ctx context.Context) error {
			return o.store.SaveSnowPlows(ctx, cycleID, res.Plows)
		})
	})

	_ = o.runStage(ctx, res, StageRouteFlags, func(ctx context.Context) error {
		return o.flagRoutes(ctx, res)
	})
}

func saveBatch[T any](ctx context.Context, what string, items []T, save func(context.Context) error) error {
	if err := save(ctx); err != nil {
		return fmt.Errorf("failed to save %s: %w", what, err)
	}
	logging.Debugw(ctx, "Saved enrichment batch", "category", what, "count", len(items))
	return nil
}

// flagRoutes marks routes affected by closures or adverse conditions
func (o *Orchestrator) flagRoutes(ctx context.Context, res *CycleResult) error {
	if len(res.Routes) == 0 {
		return nil
	}

	var closed []string
	for _, p := range res.Passes {
		if p.IsClosed() {
			closed = append(closed, strings.ToLower(p.Name))
		}
	}
	closurePass := make(map[string]string, len(o.cfg.Routes))
	for _, rc := range o.cfg.Routes {
		closurePass[rc.ID] = rc.ClosurePass
	}

	flagged := make([]model.Route, len(res.Routes))
	for i, r := range res.Routes {
		flagged[i] = routing.ApplyFlags(r, res.Events, res.Conditions, routing.FlagOptions{
			EventBufferKm:     o.cfg.Filters.EventBufferKm,
			ConditionBufferKm: o.cfg.Filters.ConditionBufferKm,
			ClosedPasses:      closed,
			ClosurePass:       closurePass[r.RouteID],
		})
		if flagged[i].HasClosure {
			logging.Infow(ctx, "Route flagged closed", "route", r.RouteID)
		}
	}
	res.Routes = flagged

	if err := o.store.SaveRoutes(ctx, flagged); err != nil {
		return fmt.Errorf("failed to save route flags: %w", err)
	}
	return nil
}

// summarize completes the cycle summary and saves it
func (o *Orchestrator) summarize(ctx context.Context, res *CycleResult) error {
	completed := o.now().UTC()
	sum := res.Summary
	sum.CompletedAt = &completed
	sum.CamerasProcessed = len(res.Captures)
	sum.SnowCount = 0
	for _, c := range res.Captures {
		if c.HasSnow != nil && *c.HasSnow {
			sum.SnowCount++
		}
	}
	sum.EventCount = len(res.Events)
	if primary, ok := primaryRoute(res.Routes); ok {
		sum.TravelTimeS = model.Ptr(primary.DurationS)
		sum.DistanceM = model.Ptr(primary.DistanceM)
	}

	if err := o.store.SaveCycle(ctx, sum); err != nil {
		return fmt.Errorf("failed to save cycle summary: %w", err)
	}
	res.Summary = sum
	return nil
}

// export runs every exporter in order, collecting their failures
func (o *Orchestrator) export(ctx context.Context, res *CycleResult) error {
	var errs *multierror.Error
	for _, e := range o.exporters {
		if err := e.Export(ctx, res); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", exporterName(e), err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		if len(errs.WrappedErrors()) < len(o.exporters) {
			return degraded(err)
		}
		return err
	}
	return nil
}

func exporterName(e Exporter) string {
	if n, ok := e.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", e)
}

// primaryRoute is the first route, when it has geometry
func primaryRoute(routes []model.Route) (model.Route, bool) {
	if len(routes) == 0 || routes[0].Polyline == "" {
		return model.Route{}, false
	}
	return routes[0], true
}

func countStatus(stages []StageReport, status StageStatus) int {
	n := 0
	for _, s := range stages {
		if s.Status == status {
			n++
		}
	}
	return n
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
