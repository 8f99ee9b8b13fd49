package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"fleet-tracker/internal/fleet"
	"fleet-tracker/internal/gtfs"
)

const (
	SourceBuiltin  = "builtin"
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceGTFS     = "gtfs"
)

type Config struct {
	RoutesSource string
	RoutesFile   string
	RouteTrips   []gtfs.TripBinding
	GTFSStatic   string
	DatabaseURL  string
	City         string

	HTTPAddr    string
	MetricsAddr string

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool

	InitialSpeed float64
	Fleet        fleet.Options

	LogLevel  logrus.Level
	LogFormat string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{Fleet: fleet.DefaultOptions()}

	cfg.RoutesSource = strings.ToLower(getenvDefault("ROUTES_SOURCE", SourceBuiltin))
	switch cfg.RoutesSource {
	case SourceBuiltin:
	case SourceFile:
		cfg.RoutesFile = os.Getenv("ROUTES_FILE")
		if cfg.RoutesFile == "" {
			return nil, errors.New("ROUTES_FILE must be set when ROUTES_SOURCE=file")
		}
	case SourcePostgres, SourceGTFS:
		trips, err := ParseTripBindings(os.Getenv("ROUTE_TRIPS"))
		if err != nil {
			return nil, fmt.Errorf("invalid ROUTE_TRIPS: %w", err)
		}
		if len(trips) == 0 {
			return nil, fmt.Errorf("ROUTE_TRIPS must be set when ROUTES_SOURCE=%s", cfg.RoutesSource)
		}
		cfg.RouteTrips = trips
	default:
		return nil, fmt.Errorf("invalid ROUTES_SOURCE: %q", cfg.RoutesSource)
	}

	if cfg.RoutesSource == SourceGTFS {
		cfg.GTFSStatic = os.Getenv("GTFS_STATIC")
		if cfg.GTFSStatic == "" {
			return nil, errors.New("GTFS_STATIC must be set when ROUTES_SOURCE=gtfs")
		}
	}

	if cfg.RoutesSource == SourcePostgres {
		dsn, err := databaseURL()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
		// City name for dynamic DB resolution
		cfg.City = firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME"))
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	// Empty NATS_URL disables position publishing.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "fleet")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	var err error
	if cfg.InitialSpeed, err = floatEnv("INITIAL_SPEED", 5, func(f float64) bool { return f >= 1 && f <= 10 }); err != nil {
		return nil, err
	}
	if cfg.Fleet.Substeps, err = intEnv("SUBSTEPS", 30, func(n int) bool { return n > 0 }); err != nil {
		return nil, err
	}
	if cfg.Fleet.DistanceScale, err = floatEnv("DISTANCE_SCALE", 0.1, positive); err != nil {
		return nil, err
	}
	if cfg.Fleet.Pacing.Base, err = msEnv("PACE_BASE_MS", cfg.Fleet.Pacing.Base); err != nil {
		return nil, err
	}
	if cfg.Fleet.Pacing.ConflictMin, err = msEnv("PACE_CONFLICT_MIN_MS", cfg.Fleet.Pacing.ConflictMin); err != nil {
		return nil, err
	}
	if cfg.Fleet.Pacing.FreeMin, err = msEnv("PACE_FREE_MIN_MS", cfg.Fleet.Pacing.FreeMin); err != nil {
		return nil, err
	}
	if cfg.Fleet.Pacing.ConflictDivisor, err = floatEnv("PACE_CONFLICT_DIVISOR", cfg.Fleet.Pacing.ConflictDivisor, positive); err != nil {
		return nil, err
	}
	if cfg.Fleet.Pacing.FreeDivisor, err = floatEnv("PACE_FREE_DIVISOR", cfg.Fleet.Pacing.FreeDivisor, positive); err != nil {
		return nil, err
	}
	cfg.Fleet.DetailsBaseURL = getenvDefault("DETAILS_BASE_URL", cfg.Fleet.DetailsBaseURL)

	cfg.LogLevel = logrus.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		lvl, err := logrus.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %q", v)
		}
		cfg.LogLevel = lvl
	}
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid LOG_FORMAT: %q", cfg.LogFormat)
	}

	return cfg, nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

// ParseTripBindings parses "bus:trip[:color],..." lists. Color defaults to red.
func ParseTripBindings(s string) ([]gtfs.TripBinding, error) {
	var out []gtfs.TripBinding
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("entry %q: want bus:trip[:color]", item)
		}
		b := gtfs.TripBinding{
			BusID:  strings.TrimSpace(parts[0]),
			TripID: strings.TrimSpace(parts[1]),
			Color:  "red",
		}
		if len(parts) == 3 && strings.TrimSpace(parts[2]) != "" {
			b.Color = strings.TrimSpace(parts[2])
		}
		if b.BusID == "" || b.TripID == "" {
			return nil, fmt.Errorf("entry %q: empty bus or trip", item)
		}
		out = append(out, b)
	}
	return out, nil
}

// databaseURL prefers DATABASE_URL / PG_DSN, else builds a DSN from PG* vars.
func databaseURL() (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	// If CITY is provided, default base DB to 'postgres' when PGDATABASE is not set.
	if db == "" && os.Getenv("CITY") != "" {
		db = "postgres"
	}
	if db == "" {
		return "", errors.New("PGDATABASE or DATABASE_URL must be set (set PGDATABASE=postgres when using CITY)")
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func positive(f float64) bool { return f > 0 }

func floatEnv(key string, def float64, ok func(float64) bool) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !ok(f) {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func intEnv(key string, def int, ok func(int) bool) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || !ok(n) {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func msEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
