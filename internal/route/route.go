package route

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
)

var (
	ErrTooShort     = errors.New("route needs at least two waypoints")
	ErrStopMismatch = errors.New("waypoint and stop name counts differ")
)

type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Route is an ordered, immutable list of waypoints paired 1:1 with stop names.
type Route struct {
	waypoints []Point
	stops     []string
}

// New validates and copies the inputs. Both slices must have the same length
// and at least two entries.
func New(waypoints []Point, stops []string) (Route, error) {
	if len(waypoints) < 2 {
		return Route{}, fmt.Errorf("%w: got %d", ErrTooShort, len(waypoints))
	}
	if len(waypoints) != len(stops) {
		return Route{}, fmt.Errorf("%w: %d waypoints, %d stops", ErrStopMismatch, len(waypoints), len(stops))
	}
	r := Route{
		waypoints: make([]Point, len(waypoints)),
		stops:     make([]string, len(stops)),
	}
	copy(r.waypoints, waypoints)
	copy(r.stops, stops)
	return r, nil
}

// FromPolyline decodes an encoded polyline into waypoints.
func FromPolyline(encoded string, stops []string) (Route, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return Route{}, fmt.Errorf("decode polyline: %w", err)
	}
	pts := make([]Point, 0, len(coords))
	for _, c := range coords {
		pts = append(pts, Point{Lat: c[0], Lon: c[1]})
	}
	return New(pts, stops)
}

func (r Route) Len() int { return len(r.waypoints) }

func (r Route) Segments() int {
	if len(r.waypoints) == 0 {
		return 0
	}
	return len(r.waypoints) - 1
}

func (r Route) Waypoint(i int) Point { return r.waypoints[i] }

func (r Route) Stop(i int) string { return r.stops[i] }

func (r Route) Waypoints() []Point {
	out := make([]Point, len(r.waypoints))
	copy(out, r.waypoints)
	return out
}

func (r Route) Stops() []string {
	out := make([]string, len(r.stops))
	copy(out, r.stops)
	return out
}

// Polyline returns the waypoints in Google encoded polyline format.
func (r Route) Polyline() string {
	coords := make([][]float64, 0, len(r.waypoints))
	for _, p := range r.waypoints {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}

// PlanarLength is the sum of Euclidean segment lengths in degree space.
func (r Route) PlanarLength() float64 {
	sum := 0.0
	for i := 1; i < len(r.waypoints); i++ {
		sum += Euclidean(r.waypoints[i-1], r.waypoints[i])
	}
	return sum
}

// GreatCircleLength is the route length in meters.
func (r Route) GreatCircleLength() float64 {
	sum := 0.0
	for i := 1; i < len(r.waypoints); i++ {
		sum += Haversine(r.waypoints[i-1], r.waypoints[i])
	}
	return sum
}

// Lerp interpolates linearly between a and b at fraction t.
func Lerp(a, b Point, t float64) Point {
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lon: a.Lon + (b.Lon-a.Lon)*t,
	}
}

// Euclidean distance in degree space.
func Euclidean(a, b Point) float64 {
	return math.Hypot(b.Lat-a.Lat, b.Lon-a.Lon)
}

// Haversine distance in meters
func Haversine(a, b Point) float64 {
	const R = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}

// Bearing from a to b in degrees, 0..360.
func Bearing(a, b Point) float64 {
	y := math.Sin((b.Lon-a.Lon)*math.Pi/180.0) * math.Cos(b.Lat*math.Pi/180.0)
	x := math.Cos(a.Lat*math.Pi/180.0)*math.Sin(b.Lat*math.Pi/180.0) - math.Sin(a.Lat*math.Pi/180.0)*math.Cos(b.Lat*math.Pi/180.0)*math.Cos((b.Lon-a.Lon)*math.Pi/180.0)
	brng := math.Atan2(y, x) * 180.0 / math.Pi
	if brng < 0 {
		brng += 360
	}
	return brng
}
