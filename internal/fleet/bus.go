package fleet

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fleet-tracker/internal/gui"
	"fleet-tracker/internal/mapview"
	"fleet-tracker/internal/route"
)

// HistoryView is how many visited stops the details dialog shows.
const HistoryView = 10

// Bus is one simulated vehicle. The animator goroutine writes the motion
// state; the render loop reads it through Status when drawing or on click.
type Bus struct {
	ID    string
	Color string
	Route route.Route

	index atomic.Int64

	mu          sync.Mutex
	tripKm      float64
	totalKm     float64
	history     []string
	currentStop string
	position    route.Point
	bearing     float64
	completed   bool
	startedAt   time.Time

	// owned by the render loop
	marker  mapview.Handle
	label   *gui.StringVar
	onClick func()
}

func newBus(id, color string, r route.Route) *Bus {
	b := &Bus{
		ID:          id,
		Color:       color,
		Route:       r,
		currentStop: r.Stop(0),
		position:    r.Waypoint(0),
		startedAt:   time.Now(),
	}
	if r.Len() > 1 {
		b.bearing = route.Bearing(r.Waypoint(0), r.Waypoint(1))
	}
	return b
}

// Index is the waypoint the bus last departed from.
func (b *Bus) Index() int { return int(b.index.Load()) }

func (b *Bus) addDistance(km float64) {
	b.mu.Lock()
	b.tripKm += km
	b.totalKm += km
	b.mu.Unlock()
}

func (b *Bus) moveTo(p route.Point, bearing float64, stop string) {
	b.mu.Lock()
	b.position = p
	b.bearing = bearing
	b.currentStop = stop
	b.mu.Unlock()
}

// depart records leaving stop and advances the index to next.
func (b *Bus) depart(next int, stop string) {
	b.mu.Lock()
	b.history = append(b.history, stop)
	b.mu.Unlock()
	if int64(next) > b.index.Load() {
		b.index.Store(int64(next))
	}
}

func (b *Bus) finish(stop string) {
	b.mu.Lock()
	b.history = append(b.history, stop)
	b.completed = true
	b.mu.Unlock()
}

// History returns every visited stop in traversal order.
func (b *Bus) History() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.history))
	copy(out, b.history)
	return out
}

// Status is a point-in-time copy of a bus.
type Status struct {
	ID          string      `json:"id"`
	Color       string      `json:"color"`
	Index       int         `json:"index"`
	CurrentStop string      `json:"currentStop"`
	Position    route.Point `json:"position"`
	Bearing     float64     `json:"bearing"`
	TripKm      float64     `json:"tripKm"`
	TotalKm     float64     `json:"totalKm"`
	LastStops   []string    `json:"lastStops"`
	Completed   bool        `json:"completed"`
	StartedAt   time.Time   `json:"startedAt"`
}

func (b *Bus) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		ID:          b.ID,
		Color:       b.Color,
		Index:       b.Index(),
		CurrentStop: b.currentStop,
		Position:    b.position,
		Bearing:     b.bearing,
		TripKm:      b.tripKm,
		TotalKm:     b.totalKm,
		LastStops:   lastN(b.history, HistoryView),
		Completed:   b.completed,
		StartedAt:   b.startedAt,
	}
}

func lastN(s []string, n int) []string {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func waitingText(id string) string {
	return fmt.Sprintf("Bus %s waiting...", id)
}

func movingText(st Status) string {
	return fmt.Sprintf("Bus %s at stop: %s | Trip: %.2f km | Total: %.2f km", st.ID, st.CurrentStop, st.TripKm, st.TotalKm)
}

func completedText(st Status) string {
	return fmt.Sprintf("Bus %s completed. Trip: %.2f km | Total: %.2f km", st.ID, st.TripKm, st.TotalKm)
}

// DetailsTitle and DetailsBody render the marker click dialog.
func DetailsTitle(st Status) string {
	return fmt.Sprintf("Bus %s Details", st.ID)
}

func DetailsBody(st Status, detailsBaseURL string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bus Number: %s\n", st.ID)
	fmt.Fprintf(&sb, "Current Stop: %s\n", st.CurrentStop)
	fmt.Fprintf(&sb, "Trip Distance: %.2f km\n", st.TripKm)
	fmt.Fprintf(&sb, "Cumulative Distance: %.2f km\n", st.TotalKm)
	fmt.Fprintf(&sb, "Route History (last stops): %s\n", strings.Join(st.LastStops, " -> "))
	fmt.Fprintf(&sb, "Details Link: %s%s", detailsBaseURL, url.PathEscape(st.ID))
	return sb.String()
}
