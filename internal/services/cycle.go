package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dpup/wolfcreekpass/server/internal/model"
)

// Stage names a step of the capture cycle
type Stage string

// Cycle stages in execution order. Enrichment runs one stage per category.
const (
	StageInit          Stage = "init"
	StageRouteRefresh  Stage = "route_refresh"
	StageCameraMatch   Stage = "camera_match"
	StagePerCameraLoop Stage = "per_camera_loop"
	StageConditions    Stage = "enrichment.conditions"
	StageEvents        Stage = "enrichment.events"
	StageWeather       Stage = "enrichment.weather"
	StagePasses        Stage = "enrichment.passes"
	StagePlows         Stage = "enrichment.plows"
	StageRouteFlags    Stage = "enrichment.route_flags"
	StageSummarize     Stage = "summarize"
	StageExport        Stage = "export"
)

// StageStatus is the outcome of a stage
type StageStatus string

const (
	StatusOK       StageStatus = "ok"
	StatusDegraded StageStatus = "degraded"
	StatusFailed   StageStatus = "failed"
)

// StageReport records how one stage ended
type StageReport struct {
	Stage    Stage         `json:"stage"`
	Status   StageStatus   `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Err      error         `json:"-"`
}

// CycleResult is everything one capture cycle collected
type CycleResult struct {
	Summary    model.CycleSummary
	Routes     []model.Route
	Cameras    []model.Camera
	Captures   []model.CaptureRecord
	Conditions []model.RoadCondition
	Events     []model.Event
	Weather    []model.WeatherStation
	Passes     []model.MountainPass
	Plows      []model.SnowPlow
	Stages     []StageReport

	mu       sync.Mutex
	warnings *multierror.Error
}

// CycleID is the identifier of the cycle
func (r *CycleResult) CycleID() string {
	return r.Summary.CycleID
}

// Warnings returns every stage error of the cycle, or nil
func (r *CycleResult) Warnings() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warnings.ErrorOrNil()
}

// Stage returns the report for a stage
func (r *CycleResult) Stage(stage Stage) (StageReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageReport{}, false
}

// Status rolls the stage reports up into a single cycle status
func (r *CycleResult) Status() StageStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := StatusOK
	for _, s := range r.Stages {
		if s.Stage == StageSummarize && s.Status == StatusFailed {
			return StatusFailed
		}
		if s.Status != StatusOK {
			status = StatusDegraded
		}
	}
	return status
}

// ClosedRoutes returns the routes flagged closed this cycle
func (r *CycleResult) ClosedRoutes() []model.Route {
	var closed []model.Route
	for _, route := range r.Routes {
		if route.HasClosure {
			closed = append(closed, route)
		}
	}
	return closed
}

func (r *CycleResult) record(stage Stage, err error, elapsed time.Duration) StageReport {
	report := StageReport{Stage: stage, Status: StatusOK, Duration: elapsed, Err: err}
	if err != nil {
		report.Status = StatusFailed
		var d *degradedError
		if errors.As(err, &d) {
			report.Status = StatusDegraded
		}
		report.Error = err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages = append(r.Stages, report)
	if err != nil {
		r.warnings = multierror.Append(r.warnings, fmt.Errorf("%s: %w", stage, err))
	}
	return report
}

// degradedError marks a stage that lost part of its data but still produced a result
type degradedError struct {
	err error
}

func (e *degradedError) Error() string { return e.err.Error() }
func (e *degradedError) Unwrap() error { return e.err }

func degraded(err error) error {
	if err == nil {
		return nil
	}
	return &degradedError{err: err}
}
