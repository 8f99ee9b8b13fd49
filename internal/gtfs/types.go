package gtfs

import "fleet-tracker/internal/route"

// TripBinding assigns a bus to a GTFS trip whose stops become its route.
type TripBinding struct {
	BusID  string
	TripID string
	Color  string
}

// TripStop is one stop of a trip, in stop_sequence order.
type TripStop struct {
	StopSequence int
	StopID       string
	Name         string
	Lat          float64
	Lon          float64
}

// Assignment is a bus ready to be registered with the fleet controller.
type Assignment struct {
	BusID     string
	Color     string
	Waypoints []route.Point
	Stops     []string
}

// AssignmentFromStops builds an assignment from ordered trip stops. Stops
// without a name fall back to their stop_id.
func AssignmentFromStops(b TripBinding, stops []TripStop) Assignment {
	a := Assignment{
		BusID:     b.BusID,
		Color:     b.Color,
		Waypoints: make([]route.Point, 0, len(stops)),
		Stops:     make([]string, 0, len(stops)),
	}
	for _, st := range stops {
		name := st.Name
		if name == "" {
			name = st.StopID
		}
		a.Waypoints = append(a.Waypoints, route.Point{Lat: st.Lat, Lon: st.Lon})
		a.Stops = append(a.Stops, name)
	}
	return a
}
