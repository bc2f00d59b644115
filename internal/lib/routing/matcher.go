package routing

import (
	"sort"

	"github.com/dpup/wolfcreekpass/server/internal/lib/geo"
	"github.com/dpup/wolfcreekpass/server/internal/model"
)

// FilterByRoute keeps the items within bufferKm of the route and orders them
// by their nearest route point, keeping input order between items that share
// a point. When the route has no decodable points the input is returned
// unchanged and unannotated.
func FilterByRoute[T Locatable](items []T, route model.Route, bufferKm float64, annotate Annotator[T]) []T {
	return FilterByPoints(items, RoutePoints(route), bufferKm, annotate)
}

// FilterByRoutes is FilterByRoute against the combined points of several routes
func FilterByRoutes[T Locatable](items []T, routes []model.Route, bufferKm float64, annotate Annotator[T]) []T {
	return FilterByPoints(items, RoutePoints(routes...), bufferKm, annotate)
}

// FilterByPoints is the matching core shared by the route filters
func FilterByPoints[T Locatable](items []T, points []geo.Point, bufferKm float64, annotate Annotator[T]) []T {
	if len(points) == 0 {
		return items
	}

	matches := make([]match[T], 0, len(items))
	for _, item := range items {
		lat, lon, ok := item.Coordinates()
		if !ok {
			continue
		}
		idx, distance := geo.NearestPointIndex(lat, lon, points)
		if distance > bufferKm {
			continue
		}
		matches = append(matches, match[T]{item: item, pointIndex: idx, distanceKm: distance})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].pointIndex < matches[j].pointIndex
	})

	result := make([]T, len(matches))
	for i, m := range matches {
		if annotate != nil {
			result[i] = annotate(m.item, m.distanceKm)
		} else {
			result[i] = m.item
		}
	}
	return result
}

// FilterCameras keeps the cameras within bufferKm of the route in route order
// and records each camera's distance from the route.
func FilterCameras(cameras []model.Camera, route model.Route, bufferKm float64) []model.Camera {
	return FilterByRoute(cameras, route, bufferKm, annotateCamera)
}

// AnnotateCameras sets each camera's distance to the nearest point of any
// route without filtering or reordering. Cameras are left untouched when no
// route has usable geometry.
func AnnotateCameras(cameras []model.Camera, routes []model.Route) []model.Camera {
	points := RoutePoints(routes...)
	out := make([]model.Camera, len(cameras))
	for i, cam := range cameras {
		out[i] = cam
		lat, lon, ok := cam.Coordinates()
		if !ok || len(points) == 0 {
			continue
		}
		out[i] = annotateCamera(cam, geo.MinDistanceToRoute(lat, lon, points))
	}
	return out
}

func annotateCamera(cam model.Camera, distanceKm float64) model.Camera {
	cam.DistanceFromRouteKm = model.Ptr(geo.RoundKm(distanceKm))
	return cam
}
