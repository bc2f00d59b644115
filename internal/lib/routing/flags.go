package routing

import (
	"strings"

	"github.com/dpup/wolfcreekpass/server/internal/lib/geo"
	"github.com/dpup/wolfcreekpass/server/internal/model"
)

// FlagOptions controls how route closure and condition flags are derived
type FlagOptions struct {
	EventBufferKm     float64
	ConditionBufferKm float64
	// ClosedPasses lists the pass names reported closed this cycle, lower case
	ClosedPasses []string
	// ClosurePass is the route's pass keyword; empty means the route crosses no seasonal pass
	ClosurePass string
}

// ApplyFlags derives HasClosure and HasConditions for a route. A route without
// usable geometry keeps its pass-based closure flag only.
func ApplyFlags(route model.Route, events []model.Event, conditions []model.RoadCondition, opts FlagOptions) model.Route {
	route.HasClosure = false
	route.HasConditions = false

	if opts.ClosurePass != "" {
		keyword := strings.ToLower(opts.ClosurePass)
		for _, name := range opts.ClosedPasses {
			if strings.Contains(name, keyword) {
				route.HasClosure = true
				break
			}
		}
	}

	points := RoutePoints(route)
	if len(points) == 0 {
		return route
	}

	for _, e := range FilterByPoints(events, points, opts.EventBufferKm, nil) {
		if e.IsFullClosure {
			route.HasClosure = true
			break
		}
	}

	for _, c := range conditions {
		if !isAdverse(c) {
			continue
		}
		segment, err := geo.DecodePolyline(c.EncodedPolyline)
		if err != nil || len(segment) == 0 {
			continue
		}
		if geo.PolylinesNear(segment, points, opts.ConditionBufferKm) {
			route.HasConditions = true
			break
		}
	}

	return route
}

// isAdverse reports whether a road condition is worth flagging
func isAdverse(c model.RoadCondition) bool {
	if strings.TrimSpace(c.Restriction) != "" && !strings.EqualFold(c.Restriction, "none") {
		return true
	}
	cond := strings.ToLower(strings.TrimSpace(c.RoadCondition))
	return cond != "" && cond != "dry"
}
