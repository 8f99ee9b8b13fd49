package gtfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jamespfennell/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-tracker/internal/route"
)

func ptr(f float64) *float64 { return &f }

func fixtureStatic() *gtfs.Static {
	center := &gtfs.Stop{Id: "s1", Name: "City Center", Latitude: ptr(12.9716), Longitude: ptr(77.5946)}
	mainSt := &gtfs.Stop{Id: "s2", Name: "", Latitude: ptr(12.9726), Longitude: ptr(77.5956)}
	park := &gtfs.Stop{Id: "s3", Name: "Park", Latitude: ptr(12.9736), Longitude: ptr(77.5966)}
	ghost := &gtfs.Stop{Id: "s4", Name: "No Location"}

	return &gtfs.Static{
		Trips: []gtfs.ScheduledTrip{
			{
				ID:    "trip-1",
				Route: &gtfs.Route{Id: "r1"},
				StopTimes: []gtfs.ScheduledStopTime{
					{Stop: park, StopSequence: 3},
					{Stop: center, StopSequence: 1},
					{Stop: ghost, StopSequence: 4},
					{Stop: mainSt, StopSequence: 2},
				},
			},
		},
	}
}

func TestStaticAssignments(t *testing.T) {
	t.Run("orders stops and skips unlocated ones", func(t *testing.T) {
		got, err := StaticAssignments(fixtureStatic(), []TripBinding{{BusID: "101", TripID: "trip-1", Color: "red"}})
		require.NoError(t, err)
		require.Len(t, got, 1)

		a := got[0]
		assert.Equal(t, "101", a.BusID)
		assert.Equal(t, "red", a.Color)
		assert.Equal(t, []string{"City Center", "s2", "Park"}, a.Stops)
		assert.Equal(t, route.Point{Lat: 12.9716, Lon: 77.5946}, a.Waypoints[0])
		assert.Len(t, a.Waypoints, 3)
	})

	t.Run("unknown trip", func(t *testing.T) {
		_, err := StaticAssignments(fixtureStatic(), []TripBinding{{BusID: "9", TripID: "missing"}})
		assert.ErrorIs(t, err, ErrTripNotFound)
	})
}

func TestReadStatic(t *testing.T) {
	t.Run("downloads over http", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("zipbytes"))
		}))
		defer srv.Close()

		b, err := ReadStatic(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "zipbytes", string(b))
	})

	t.Run("reports http failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		_, err := ReadStatic(context.Background(), srv.URL)
		assert.Error(t, err)
	})

	t.Run("missing local file", func(t *testing.T) {
		_, err := ReadStatic(context.Background(), t.TempDir()+"/nope.zip")
		assert.Error(t, err)
	})
}
