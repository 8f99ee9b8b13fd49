package mapview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-tracker/internal/route"
)

func TestMarkers(t *testing.T) {
	m := New()
	a := m.SetMarker(route.Point{Lat: 1, Lon: 2}, "City Center", "yellow")
	b := m.SetMarker(route.Point{Lat: 3, Lon: 4}, "101", "red")
	assert.NotEqual(t, a, b)

	s := m.Snapshot()
	require.Len(t, s.Markers, 2)
	assert.Equal(t, "City Center", s.Markers[0].Text)
	assert.Equal(t, "101", s.Markers[1].Text)

	m.DeleteMarker(a)
	m.DeleteMarker(a)
	s = m.Snapshot()
	require.Len(t, s.Markers, 1)
	assert.Equal(t, b, s.Markers[0].Handle)

	_, ok := m.Marker(a)
	assert.False(t, ok)
}

func TestClick(t *testing.T) {
	m := New()
	h := m.SetMarker(route.Point{}, "101", "red")

	require.NoError(t, m.Click(h), "marker without handler is a no-op")

	clicks := 0
	require.NoError(t, m.BindClick(h, func() { clicks++ }))
	require.NoError(t, m.Click(h))
	assert.Equal(t, 1, clicks)

	mk, ok := m.Marker(h)
	require.True(t, ok)
	assert.True(t, mk.Clickable)

	m.DeleteMarker(h)
	assert.ErrorIs(t, m.Click(h), ErrUnknownMarker)
	assert.ErrorIs(t, m.BindClick(h, func() {}), ErrUnknownMarker)
	assert.Equal(t, 1, clicks)
}

func TestLines(t *testing.T) {
	m := New()
	m.SetLine(route.Point{Lat: 0, Lon: 0}, route.Point{Lat: 0, Lon: 1}, "black", 2)
	s := m.Snapshot()
	require.Len(t, s.Lines, 1)
	assert.Equal(t, Line{From: route.Point{}, To: route.Point{Lon: 1}, Color: "black", Width: 2}, s.Lines[0])
}
