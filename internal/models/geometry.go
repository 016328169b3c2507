package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	earthRadiusKm = 6371.0
	// circleVertices is the vertex count of a buffered search area.
	circleVertices = 64
)

// ErrInvalidPolygon wraps every region validation failure.
var ErrInvalidPolygon = errors.New("invalid polygon")

// Validate checks the ring has enough points and sane coordinates.
func (p Polygon) Validate() error {
	if len(p.Ring) < 3 {
		return fmt.Errorf("%w: needs at least 3 points", ErrInvalidPolygon)
	}
	for i, pt := range p.Ring {
		if pt.Lat < -90 || pt.Lat > 90 || pt.Lon < -180 || pt.Lon > 180 {
			return fmt.Errorf("%w: point %d out of range: %v,%v", ErrInvalidPolygon, i, pt.Lon, pt.Lat)
		}
	}
	return nil
}

// Contains reports whether pt lies inside the ring (even-odd rule).
func (p Polygon) Contains(pt Point) bool {
	n := len(p.Ring)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p.Ring[i], p.Ring[j]
		if (a.Lat > pt.Lat) != (b.Lat > pt.Lat) &&
			pt.Lon < (b.Lon-a.Lon)*(pt.Lat-a.Lat)/(b.Lat-a.Lat)+a.Lon {
			inside = !inside
		}
	}
	return inside
}

// Encode renders the ring as "lon lat,lon lat,...".
func (p Polygon) Encode() string {
	parts := make([]string, len(p.Ring))
	for i, pt := range p.Ring {
		parts[i] = strconv.FormatFloat(pt.Lon, 'f', -1, 64) + " " + strconv.FormatFloat(pt.Lat, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// ParsePolygon is the inverse of Encode.
func ParsePolygon(s string) (Polygon, error) {
	var p Polygon
	for i, pair := range strings.Split(s, ",") {
		fields := strings.Fields(pair)
		if len(fields) != 2 {
			return Polygon{}, fmt.Errorf("point %d: want \"lon lat\", got %q", i, pair)
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("point %d lon: %w", i, err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("point %d lat: %w", i, err)
		}
		p.Ring = append(p.Ring, Point{Lon: lon, Lat: lat})
	}
	return p, p.Validate()
}

// CircleAround approximates a geodesic buffer of radiusKm around center.
func CircleAround(center Point, radiusKm float64) Polygon {
	lat1 := center.Lat * math.Pi / 180
	lon1 := center.Lon * math.Pi / 180
	d := radiusKm / earthRadiusKm

	ring := make([]Point, circleVertices)
	for i := range ring {
		brng := 2 * math.Pi * float64(i) / circleVertices
		lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
		lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))
		ring[i] = Point{Lon: lon2 * 180 / math.Pi, Lat: lat2 * 180 / math.Pi}
	}
	return Polygon{Ring: ring}
}

// Haversine returns the great-circle distance in km.
func Haversine(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
