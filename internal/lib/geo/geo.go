package geo

import (
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances
const EarthRadiusKm = 6371.0

// HaversineKm calculates great-circle distance in kilometers between two coordinates
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dphi := (lat2 - lat1) * math.Pi / 180
	dlambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dphi/2)*math.Sin(dphi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dlambda/2)*math.Sin(dlambda/2)
	// Guard against rounding pushing a just past 1 for antipodal points
	a = math.Min(1, a)

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// PointToPoint calculates distance in kilometers between two points
func PointToPoint(p1, p2 Point) float64 {
	return HaversineKm(p1.Latitude, p1.Longitude, p2.Latitude, p2.Longitude)
}

// DecodePolyline decodes a Google encoded polyline (precision 5) into points.
// An empty string decodes to an empty sequence.
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return []Point{}, nil
	}

	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("failed to decode polyline: %d trailing bytes", len(rest))
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
	}
	return points, nil
}

// ParsePolyline decodes an encoded polyline into a Polyline value
func ParsePolyline(encoded string) (Polyline, error) {
	points, err := DecodePolyline(encoded)
	if err != nil {
		return Polyline{EncodedPolyline: encoded}, err
	}
	return Polyline{EncodedPolyline: encoded, Points: points}, nil
}

// MinDistanceToRoute returns the smallest distance in kilometers from the
// coordinate to any route point. An empty route is infinitely far away.
func MinDistanceToRoute(lat, lon float64, route []Point) float64 {
	_, distance := NearestPointIndex(lat, lon, route)
	return distance
}

// NearestPointIndex returns the index of the route point closest to the
// coordinate and its distance in kilometers. The first index wins on ties;
// an empty route returns (-1, +Inf).
func NearestPointIndex(lat, lon float64, route []Point) (int, float64) {
	best := -1
	minDistance := math.Inf(1)
	for i, p := range route {
		d := HaversineKm(lat, lon, p.Latitude, p.Longitude)
		if d < minDistance {
			best = i
			minDistance = d
		}
	}
	return best, minDistance
}

// PolylinesNear reports whether any vertex of a lies within thresholdKm of a
// vertex of b
func PolylinesNear(a, b []Point, thresholdKm float64) bool {
	for _, p := range a {
		if MinDistanceToRoute(p.Latitude, p.Longitude, b) <= thresholdKm {
			return true
		}
	}
	return false
}

// RoundKm rounds a kilometer distance to meter precision
func RoundKm(km float64) float64 {
	return math.Round(km*1000) / 1000
}
