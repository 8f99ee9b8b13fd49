package gtfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/jamespfennell/gtfs"
)

var ErrTripNotFound = errors.New("trip not found")

// ReadStatic returns the raw bytes of a GTFS static zip from a local path or
// an http(s) URL.
func ReadStatic(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("error reading local GTFS file: %w", err)
		}
		return b, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading GTFS data: %w", err)
	}
	defer resp.Body.Close() // nolint
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error downloading GTFS data: %s", resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}
	return b, nil
}

// LoadStaticAssignments parses a GTFS static zip and builds one assignment per binding.
func LoadStaticAssignments(ctx context.Context, source string, bindings []TripBinding) ([]Assignment, error) {
	b, err := ReadStatic(ctx, source)
	if err != nil {
		return nil, err
	}
	static, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	return StaticAssignments(static, bindings)
}

func StaticAssignments(static *gtfs.Static, bindings []TripBinding) ([]Assignment, error) {
	byID := make(map[string]*gtfs.ScheduledTrip, len(static.Trips))
	for i := range static.Trips {
		byID[static.Trips[i].ID] = &static.Trips[i]
	}
	out := make([]Assignment, 0, len(bindings))
	for _, b := range bindings {
		trip, ok := byID[b.TripID]
		if !ok {
			return nil, fmt.Errorf("bus %s: trip %q: %w", b.BusID, b.TripID, ErrTripNotFound)
		}
		out = append(out, AssignmentFromStops(b, TripStops(trip)))
	}
	return out, nil
}

// TripStops lists a scheduled trip's located stops ordered by stop_sequence.
func TripStops(trip *gtfs.ScheduledTrip) []TripStop {
	stops := make([]TripStop, 0, len(trip.StopTimes))
	for _, st := range trip.StopTimes {
		if st.Stop == nil || st.Stop.Latitude == nil || st.Stop.Longitude == nil {
			continue
		}
		stops = append(stops, TripStop{
			StopSequence: st.StopSequence,
			StopID:       st.Stop.Id,
			Name:         st.Stop.Name,
			Lat:          *st.Stop.Latitude,
			Lon:          *st.Stop.Longitude,
		})
	}
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].StopSequence < stops[j].StopSequence })
	return stops
}
