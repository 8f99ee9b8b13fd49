package mapview

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"fleet-tracker/internal/route"
)

var ErrUnknownMarker = errors.New("unknown marker")

// Handle identifies a placed marker.
type Handle string

type Line struct {
	From  route.Point `json:"from"`
	To    route.Point `json:"to"`
	Color string      `json:"color"`
	Width int         `json:"width"`
}

type Marker struct {
	Handle    Handle      `json:"handle"`
	Position  route.Point `json:"position"`
	Text      string      `json:"text"`
	Color     string      `json:"color"`
	Clickable bool        `json:"clickable"`
}

type Scene struct {
	Lines   []Line   `json:"lines"`
	Markers []Marker `json:"markers"`
}

// Map is the map widget: lines and markers drawn over the tiles.
// It is owned by the render loop and is not safe for concurrent use.
type Map struct {
	lines   []Line
	order   []Handle
	markers map[Handle]*Marker
	clicks  map[Handle]func()
}

func New() *Map {
	return &Map{
		markers: make(map[Handle]*Marker),
		clicks:  make(map[Handle]func()),
	}
}

func (m *Map) SetLine(from, to route.Point, color string, width int) {
	m.lines = append(m.lines, Line{From: from, To: to, Color: color, Width: width})
}

func (m *Map) SetMarker(at route.Point, text, color string) Handle {
	h := Handle(uuid.NewString())
	m.markers[h] = &Marker{Handle: h, Position: at, Text: text, Color: color}
	m.order = append(m.order, h)
	return h
}

func (m *Map) DeleteMarker(h Handle) {
	if _, ok := m.markers[h]; !ok {
		return
	}
	delete(m.markers, h)
	delete(m.clicks, h)
	for i, o := range m.order {
		if o == h {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// BindClick attaches fn to the marker, replacing any earlier handler.
func (m *Map) BindClick(h Handle, fn func()) error {
	mk, ok := m.markers[h]
	if !ok {
		return fmt.Errorf("bind click %s: %w", h, ErrUnknownMarker)
	}
	m.clicks[h] = fn
	mk.Clickable = fn != nil
	return nil
}

// Click invokes the marker's click handler, if any.
func (m *Map) Click(h Handle) error {
	if _, ok := m.markers[h]; !ok {
		return fmt.Errorf("click %s: %w", h, ErrUnknownMarker)
	}
	if fn := m.clicks[h]; fn != nil {
		fn()
	}
	return nil
}

func (m *Map) Marker(h Handle) (Marker, bool) {
	mk, ok := m.markers[h]
	if !ok {
		return Marker{}, false
	}
	return *mk, true
}

func (m *Map) Snapshot() Scene {
	s := Scene{
		Lines:   make([]Line, len(m.lines)),
		Markers: make([]Marker, 0, len(m.order)),
	}
	copy(s.Lines, m.lines)
	for _, h := range m.order {
		s.Markers = append(s.Markers, *m.markers[h])
	}
	return s
}
