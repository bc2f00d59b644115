package export

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/twpayne/go-kml/v2"

	"github.com/dpup/wolfcreekpass/server/internal/lib/geo"
	"github.com/dpup/wolfcreekpass/server/internal/model"
	"github.com/dpup/wolfcreekpass/server/internal/services"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
)

// KMLExporter writes a map of the cycle's routes and captured cameras
type KMLExporter struct {
	objects storage.ObjectStore
	key     string
}

// NewKMLExporter writes latest.kml under prefix
func NewKMLExporter(objects storage.ObjectStore, prefix string) *KMLExporter {
	key := "latest.kml"
	if prefix != "" {
		key = strings.TrimSuffix(prefix, "/") + "/" + key
	}
	return &KMLExporter{objects: objects, key: key}
}

// Name identifies the exporter in cycle reports
func (e *KMLExporter) Name() string { return "kml" }

// Export renders and stores the map
func (e *KMLExporter) Export(ctx context.Context, res *services.CycleResult) error {
	data, err := RenderKML(res)
	if err != nil {
		return err
	}
	if err := e.objects.Put(ctx, e.key, data, "application/vnd.google-earth.kml+xml"); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.key, err)
	}
	return nil
}

// RenderKML builds the KML document for a cycle. Routes without geometry and
// captures without coordinates are left out.
func RenderKML(res *services.CycleResult) ([]byte, error) {
	children := []kml.Element{kml.Name("Wolf Creek Pass " + res.CycleID())}

	for _, r := range res.Routes {
		points, err := geo.DecodePolyline(r.Polyline)
		if err != nil || len(points) == 0 {
			continue
		}
		coords := make([]kml.Coordinate, len(points))
		for i, p := range points {
			coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
		}
		children = append(children, kml.Placemark(
			kml.Name(r.Name),
			kml.Description(routeDescription(r)),
			kml.Style(kml.LineStyle(kml.Color(routeColor(r.Color)), kml.Width(4))),
			kml.LineString(kml.Coordinates(coords...)),
		))
	}

	for _, c := range res.Captures {
		if c.Latitude == nil || c.Longitude == nil {
			continue
		}
		children = append(children, kml.Placemark(
			kml.Name(captureName(c)),
			kml.Description(c.AnalysisNotes),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: *c.Longitude, Lat: *c.Latitude})),
		))
	}

	var buf bytes.Buffer
	if err := kml.KML(kml.Document(children...)).WriteIndent(&buf, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to render KML: %w", err)
	}
	return buf.Bytes(), nil
}

func routeDescription(r model.Route) string {
	parts := []string{fmt.Sprintf("%.1f km, %d min", float64(r.DistanceM)/1000, r.DurationS/60)}
	if r.HasClosure {
		parts = append(parts, "closure reported")
	}
	if r.HasConditions {
		parts = append(parts, "adverse conditions")
	}
	return strings.Join(parts, "; ")
}

func captureName(c model.CaptureRecord) string {
	name := fmt.Sprintf("Camera %d", c.CameraID)
	if c.Location != nil && *c.Location != "" {
		name = *c.Location
	}
	if c.HasSnow != nil && *c.HasSnow {
		name += " (snow)"
	}
	return name
}

// routeColor parses a #rrggbb color, falling back to blue
func routeColor(hex string) color.Color {
	fallback := color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
