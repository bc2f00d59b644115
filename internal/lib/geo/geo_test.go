package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Kamas and Francis, both on SR-32 near the west end of Wolf Creek Pass
var (
	kamas   = Point{Latitude: 40.6430, Longitude: -111.2808}
	francis = Point{Latitude: 40.6105, Longitude: -111.2810}
)

func TestHaversineKm(t *testing.T) {
	distance := HaversineKm(kamas.Latitude, kamas.Longitude, francis.Latitude, francis.Longitude)
	assert.InDelta(t, 3.61, distance, 0.05, "Kamas to Francis should be about 3.6km")

	// Symmetric
	reverse := HaversineKm(francis.Latitude, francis.Longitude, kamas.Latitude, kamas.Longitude)
	assert.InDelta(t, distance, reverse, 1e-9)

	// Identical points
	assert.Equal(t, 0.0, HaversineKm(40.3712, -111.1156, 40.3712, -111.1156))

	// One degree of latitude on the meridian
	assert.InDelta(t, 111.195, HaversineKm(0, 0, 1, 0), 0.01)
}

func TestHaversineKm_SaltLakeToProvo(t *testing.T) {
	d := HaversineKm(40.76, -111.89, 40.23, -111.66)
	assert.GreaterOrEqual(t, d, 55.0)
	assert.LessOrEqual(t, d, 65.0)
}

func TestParsePolyline(t *testing.T) {
	line, err := ParsePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	assert.False(t, line.IsEmpty())
	assert.Len(t, line.Points, 3)

	empty, err := ParsePolyline("")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	broken, err := ParsePolyline("_p~iF~ps|U_")
	assert.Error(t, err)
	assert.True(t, broken.IsEmpty())
	assert.Equal(t, "_p~iF~ps|U_", broken.EncodedPolyline)
}

func TestHaversineKm_Antipodal(t *testing.T) {
	d := HaversineKm(0, 0, 0, 180)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 0.001)
}

func TestDecodePolyline(t *testing.T) {
	// Canonical example from the Google polyline algorithm documentation
	points, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 38.5, points[0].Latitude, 1e-6)
	assert.InDelta(t, -120.2, points[0].Longitude, 1e-6)
	assert.InDelta(t, 40.7, points[1].Latitude, 1e-6)
	assert.InDelta(t, -120.95, points[1].Longitude, 1e-6)
	assert.InDelta(t, 43.252, points[2].Latitude, 1e-6)
	assert.InDelta(t, -126.453, points[2].Longitude, 1e-6)
}

func TestDecodePolyline_Empty(t *testing.T) {
	points, err := DecodePolyline("")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestDecodePolyline_Invalid(t *testing.T) {
	// Truncated varint
	_, err := DecodePolyline("_p~iF~ps|U_")
	assert.Error(t, err)
}

func TestMinDistanceToRoute(t *testing.T) {
	route := []Point{kamas, francis}

	assert.Equal(t, 0.0, MinDistanceToRoute(kamas.Latitude, kamas.Longitude, route))

	d := MinDistanceToRoute(40.6105, -111.2700, route)
	assert.InDelta(t, 0.93, d, 0.05)

	assert.True(t, math.IsInf(MinDistanceToRoute(40, -111, nil), 1), "empty route should be infinitely far")
}

func TestNearestPointIndex(t *testing.T) {
	route := []Point{kamas, francis, {Latitude: 40.5, Longitude: -111.2}}

	idx, d := NearestPointIndex(francis.Latitude, francis.Longitude, route)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 0.0, d)

	// Ties resolve to the first index
	dup := []Point{francis, francis}
	idx, _ = NearestPointIndex(francis.Latitude, francis.Longitude, dup)
	assert.Equal(t, 0, idx)

	idx, d = NearestPointIndex(1, 1, nil)
	assert.Equal(t, -1, idx)
	assert.True(t, math.IsInf(d, 1))
}

func TestPolylinesNear(t *testing.T) {
	route := []Point{kamas, francis}
	near := []Point{{Latitude: 40.62, Longitude: -111.28}}
	far := []Point{{Latitude: 40.2, Longitude: -110.5}}

	assert.True(t, PolylinesNear(near, route, 2.0))
	assert.False(t, PolylinesNear(far, route, 2.0))
	assert.False(t, PolylinesNear(nil, route, 2.0))
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 1.235, RoundKm(1.23456))
	assert.Equal(t, 0.0, RoundKm(0.0001))
}
