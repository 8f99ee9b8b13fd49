package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-tracker/internal/gtfs"
	"fleet-tracker/internal/route"
)

// arrayConverter lets []string arguments through the way pgx accepts them.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if s, ok := v.([]string); ok {
		return s, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(arrayConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

const columnsQuery = `SELECT column_name FROM information_schema.columns`

func TestFetchTripStops(t *testing.T) {
	ctx := context.Background()

	t.Run("lat lon columns", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(columnsQuery).
			WithArgs("public", "stops", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("stop_lat").AddRow("stop_lon"))
		mock.ExpectQuery(`FROM stop_times st\s+JOIN stops s`).
			WithArgs("trip-1").
			WillReturnRows(sqlmock.NewRows([]string{"stop_sequence", "stop_id", "stop_name", "lat", "lon"}).
				AddRow(1, "s1", "City Center", 12.9716, 77.5946).
				AddRow(2, "s2", "Main Street", 12.9726, 77.5956))

		stops, err := FetchTripStops(ctx, db, "trip-1")
		require.NoError(t, err)
		require.Len(t, stops, 2)
		assert.Equal(t, gtfs.TripStop{StopSequence: 1, StopID: "s1", Name: "City Center", Lat: 12.9716, Lon: 77.5946}, stops[0])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("postgis fallback", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(columnsQuery).
			WillReturnRows(sqlmock.NewRows([]string{"column_name"}))
		mock.ExpectQuery(columnsQuery).
			WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("stop_loc"))
		mock.ExpectQuery(`ST_Y\(s\.stop_loc::geometry\)`).
			WithArgs("trip-2").
			WillReturnRows(sqlmock.NewRows([]string{"stop_sequence", "stop_id", "stop_name", "lat", "lon"}).
				AddRow(1, "a", "A", 1.0, 2.0))

		stops, err := FetchTripStops(ctx, db, "trip-2")
		require.NoError(t, err)
		assert.Len(t, stops, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing columns", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(columnsQuery).WillReturnRows(sqlmock.NewRows([]string{"column_name"}))
		mock.ExpectQuery(columnsQuery).WillReturnRows(sqlmock.NewRows([]string{"column_name"}))

		_, err := FetchTripStops(ctx, db, "trip-3")
		assert.ErrorContains(t, err, "missing expected columns")
	})

	t.Run("trip without stops", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(columnsQuery).
			WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("stop_lat").AddRow("stop_lon"))
		mock.ExpectQuery(`FROM stop_times st`).
			WithArgs("empty").
			WillReturnRows(sqlmock.NewRows([]string{"stop_sequence", "stop_id", "stop_name", "lat", "lon"}))

		_, err := FetchTripStops(ctx, db, "empty")
		assert.ErrorIs(t, err, ErrNoStops)
	})
}

func TestLoadAssignments(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(columnsQuery).
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("stop_lat").AddRow("stop_lon"))
	mock.ExpectQuery(`FROM stop_times st`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"stop_sequence", "stop_id", "stop_name", "lat", "lon"}).
			AddRow(1, "s1", "Downtown", 12.9716, 77.5946).
			AddRow(2, "s2", "", 12.9706, 77.5936))

	got, err := LoadAssignments(context.Background(), db, []gtfs.TripBinding{{BusID: "102", TripID: "t1", Color: "green"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, gtfs.Assignment{
		BusID:     "102",
		Color:     "green",
		Waypoints: []route.Point{{Lat: 12.9716, Lon: 77.5946}, {Lat: 12.9706, Lon: 77.5936}},
		Stops:     []string{"Downtown", "s2"},
	}, got[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestImportDBName(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(`FROM public\.latest_successful_imports`).
			WithArgs("bengaluru").
			WillReturnRows(sqlmock.NewRows([]string{"db_name"}).AddRow("gtfs_bengaluru_20261001"))

		name, err := LatestImportDBName(ctx, db, " bengaluru ")
		require.NoError(t, err)
		assert.Equal(t, "gtfs_bengaluru_20261001", name)
	})

	t.Run("none", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(`FROM public\.latest_successful_imports`).
			WillReturnError(sql.ErrNoRows)

		_, err := LatestImportDBName(ctx, db, "atlantis")
		assert.ErrorIs(t, err, ErrNoCityDatabase)
	})

	t.Run("city required", func(t *testing.T) {
		db, _ := newMock(t)
		_, err := LatestImportDBName(ctx, db, "")
		assert.Error(t, err)
	})
}

func TestWithDBName(t *testing.T) {
	got, err := WithDBName("postgres://u:p@localhost:5432/postgres?sslmode=disable", "gtfs_city")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/gtfs_city?sslmode=disable", got)

	got, err = WithDBName("localhost:5432/x", "/y")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432/y", got)

	_, err = WithDBName("", "x")
	assert.Error(t, err)

	_, err = WithDBName("mysql://localhost/x", "y")
	assert.Error(t, err)
}
