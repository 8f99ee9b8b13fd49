package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleet-tracker/internal/gtfs"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNoStops = errors.New("trip has no stops")

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// LoadAssignments builds one assignment per binding from the stops of its trip.
func LoadAssignments(ctx context.Context, db *sql.DB, bindings []gtfs.TripBinding) ([]gtfs.Assignment, error) {
	out := make([]gtfs.Assignment, 0, len(bindings))
	for _, b := range bindings {
		stops, err := FetchTripStops(ctx, db, b.TripID)
		if err != nil {
			return nil, fmt.Errorf("bus %s: %w", b.BusID, err)
		}
		out = append(out, gtfs.AssignmentFromStops(b, stops))
	}
	return out, nil
}

// FetchTripStops returns the stops served by a trip ordered by stop_sequence.
func FetchTripStops(ctx context.Context, db *sql.DB, tripID string) ([]gtfs.TripStop, error) {
	// Prefer stop_lat/stop_lon, but support PostGIS stop_loc geography as fallback
	latlonExists, err := hasColumns(ctx, db, "public", "stops", "stop_lat", "stop_lon")
	if err != nil {
		return nil, fmt.Errorf("introspect stops columns: %w", err)
	}
	var q string
	if latlonExists["stop_lat"] && latlonExists["stop_lon"] {
		q = `SELECT st.stop_sequence,
                    st.stop_id,
                    COALESCE(s.stop_name, ''),
                    COALESCE(s.stop_lat, 0),
                    COALESCE(s.stop_lon, 0)
             FROM stop_times st
             JOIN stops s ON s.stop_id = st.stop_id
             WHERE st.trip_id = $1
             ORDER BY st.stop_sequence`
	} else {
		locExists, err := hasColumns(ctx, db, "public", "stops", "stop_loc")
		if err != nil {
			return nil, fmt.Errorf("introspect stops stop_loc: %w", err)
		}
		if !locExists["stop_loc"] {
			return nil, fmt.Errorf("stops table missing expected columns (stop_lat/lon or stop_loc)")
		}
		q = `SELECT st.stop_sequence,
                    st.stop_id,
                    COALESCE(s.stop_name, ''),
                    COALESCE(ST_Y(s.stop_loc::geometry), 0),
                    COALESCE(ST_X(s.stop_loc::geometry), 0)
             FROM stop_times st
             JOIN stops s ON s.stop_id = st.stop_id
             WHERE st.trip_id = $1
             ORDER BY st.stop_sequence`
	}
	rows, err := db.QueryContext(ctx, q, tripID)
	if err != nil {
		return nil, fmt.Errorf("query stop_times: %w", err)
	}
	defer rows.Close()

	var stops []gtfs.TripStop
	for rows.Next() {
		var st gtfs.TripStop
		if err := rows.Scan(&st.StopSequence, &st.StopID, &st.Name, &st.Lat, &st.Lon); err != nil {
			return nil, err
		}
		stops = append(stops, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stops) == 0 {
		return nil, fmt.Errorf("trip %q: %w", tripID, ErrNoStops)
	}
	return stops, nil
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
