package routing

import (
	"github.com/dpup/wolfcreekpass/server/internal/lib/geo"
	"github.com/dpup/wolfcreekpass/server/internal/model"
)

// Locatable is anything that may carry a coordinate. Entities without a
// coordinate are never considered near a route.
type Locatable interface {
	Coordinates() (lat, lon float64, ok bool)
}

// Annotator returns a copy of item carrying its computed distance to the route
type Annotator[T Locatable] func(item T, distanceKm float64) T

// match pairs an item with its position along the route
type match[T Locatable] struct {
	item       T
	pointIndex int
	distanceKm float64
}

// RoutePoints decodes the polyline of every route and concatenates the points
// in route order. Routes whose polyline is empty or undecodable contribute
// nothing.
func RoutePoints(routes ...model.Route) []geo.Point {
	var points []geo.Point
	for _, r := range routes {
		line, err := geo.ParsePolyline(r.Polyline)
		if err != nil || line.IsEmpty() {
			continue
		}
		points = append(points, line.Points...)
	}
	return points
}
