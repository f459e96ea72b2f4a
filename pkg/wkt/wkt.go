// Package wkt provides parsing and validation for WKT polygon rings used as
// area-of-interest constraints in catalog queries.
package wkt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidGeometry is returned when a polygon fails validation.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Point is a lon/lat coordinate pair in EPSG:4326.
type Point struct {
	Lon float64
	Lat float64
}

// Polygon is a validated, closed ring of EPSG:4326 coordinates.
// The zero value is not usable; construct via ParsePolygon or NewPolygon.
type Polygon struct {
	ring []Point
}

// ParsePolygon parses a WKT POLYGON expression with a single outer ring,
// e.g. "POLYGON((12.4 41.8, 12.6 41.8, 12.6 42.0, 12.4 41.8))".
// The ring is validated but never repaired.
func ParsePolygon(s string) (*Polygon, error) {
	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)

	if !strings.HasPrefix(upper, "POLYGON((") || !strings.HasSuffix(upper, "))") {
		return nil, fmt.Errorf("%w: expression must be of the form POLYGON((lon lat, ...))", ErrInvalidGeometry)
	}

	inner := trimmed[len("POLYGON((") : len(trimmed)-2]
	if strings.Contains(inner, "(") || strings.Contains(inner, ")") {
		return nil, fmt.Errorf("%w: only a single outer ring is supported", ErrInvalidGeometry)
	}

	parts := strings.Split(inner, ",")
	points := make([]Point, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: coordinate %q must be 'lon lat'", ErrInvalidGeometry, strings.TrimSpace(part))
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: longitude %q is not a number", ErrInvalidGeometry, fields[0])
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: latitude %q is not a number", ErrInvalidGeometry, fields[1])
		}
		points = append(points, Point{Lon: lon, Lat: lat})
	}

	return NewPolygon(points)
}

// NewPolygon validates an ordered ring of coordinate pairs and returns a
// canonical polygon. The ring must be closed (first point equals last),
// contain at least 4 points, and every coordinate must lie within valid
// lon/lat bounds.
func NewPolygon(points []Point) (*Polygon, error) {
	if len(points) < 4 {
		return nil, fmt.Errorf("%w: ring has %d points, need at least 4", ErrInvalidGeometry, len(points))
	}

	if points[0] != points[len(points)-1] {
		return nil, fmt.Errorf("%w: ring is not closed (first point must equal last)", ErrInvalidGeometry)
	}

	for i, p := range points {
		if p.Lon < -180 || p.Lon > 180 {
			return nil, fmt.Errorf("%w: longitude %s at index %d out of range [-180, 180]", ErrInvalidGeometry, formatCoord(p.Lon), i)
		}
		if p.Lat < -90 || p.Lat > 90 {
			return nil, fmt.Errorf("%w: latitude %s at index %d out of range [-90, 90]", ErrInvalidGeometry, formatCoord(p.Lat), i)
		}
	}

	ring := make([]Point, len(points))
	copy(ring, points)
	return &Polygon{ring: ring}, nil
}

// Ring returns a copy of the polygon's coordinate ring.
func (p *Polygon) Ring() []Point {
	ring := make([]Point, len(p.ring))
	copy(ring, p.ring)
	return ring
}

// WKT renders the canonical WKT text of the polygon, ready for embedding in a
// spatial predicate.
func (p *Polygon) WKT() string {
	var b strings.Builder
	b.WriteString("POLYGON((")
	for i, pt := range p.ring {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(formatCoord(pt.Lon))
		b.WriteString(" ")
		b.WriteString(formatCoord(pt.Lat))
	}
	b.WriteString("))")
	return b.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
