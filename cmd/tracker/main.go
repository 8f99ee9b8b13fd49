package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-tracker/internal/config"
	"fleet-tracker/internal/db"
	"fleet-tracker/internal/fleet"
	"fleet-tracker/internal/gtfs"
	"fleet-tracker/internal/gui"
	"fleet-tracker/internal/httpapi"
	"fleet-tracker/internal/mapview"
	"fleet-tracker/internal/metrics"
	"fleet-tracker/internal/publisher"
)

const dialogHistory = 50

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config error")
	}
	log := cfg.NewLogger()

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	assignments, err := loadAssignments(ctx, cfg, log)
	if err != nil {
		log.WithError(err).WithField("source", cfg.RoutesSource).Fatal("load routes")
	}
	log.WithFields(logrus.Fields{"source": cfg.RoutesSource, "buses": len(assignments)}).Info("routes loaded")

	// Metrics setup
	var (
		mcol      *metrics.Collector
		metricSrv *http.Server
		fleetM    fleet.Metrics
		loopM     gui.LoopMetrics
		pubM      publisher.PublisherMetrics
	)
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.InitialSpeed, cfg.Fleet.Substeps)
		metricSrv = mcol.Serve(cfg.MetricsAddr, log)
		fleetM, loopM, pubM = mcol.Fleet(), mcol.Loop(), mcol.Publisher()
	}

	// Position stream; an empty NATS_URL keeps it off
	var pub fleet.PositionPublisher
	if cfg.NATSURL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, log, pubM)
		if err != nil {
			log.WithError(err).Fatal("nats error")
		}
		defer np.Close()
		pub = np
	}

	loop := gui.NewLoop(log, loopM)
	view := mapview.New()
	labels := gui.NewLabels()
	dialog := gui.NewDialog(log, dialogHistory)
	speed := gui.NewScale(1, 10, cfg.InitialSpeed)

	// The render loop outlives the animators so their last updates still land.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(loopCtx)
	}()

	ctrl := fleet.NewController(fleet.Deps{
		Log:       log,
		Loop:      loop,
		Map:       view,
		Labels:    labels,
		Dialog:    dialog,
		Speed:     speed,
		Publisher: pub,
		Metrics:   fleetM,
	}, cfg.Fleet)

	for _, a := range assignments {
		if err := ctrl.AddBus(ctx, a.BusID, a.Waypoints, a.Stops, a.Color); err != nil {
			log.WithError(err).WithField("bus", a.BusID).Error("bus not started")
		}
	}

	api := httpapi.New(httpapi.Deps{
		Log:    log,
		Loop:   loop,
		Fleet:  ctrl,
		Map:    view,
		Labels: labels,
		Dialog: dialog,
		Speed:  speed,
		OnSpeed: func(v float64) {
			if mcol != nil {
				mcol.Speed.Set(v)
			}
		},
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server error")
			cancel()
		}
	}()
	log.WithField("addr", cfg.HTTPAddr).Info("shell api listening")

	// Block until context cancelled
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	ctrl.Wait()
	stopLoop()
	<-loopDone

	if metricSrv != nil {
		_ = metricSrv.Shutdown(shutdownCtx)
	}
	log.Info("shutdown complete")
}

func loadAssignments(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) ([]gtfs.Assignment, error) {
	switch cfg.RoutesSource {
	case config.SourceBuiltin:
		return config.BuiltinAssignments(), nil
	case config.SourceFile:
		return config.LoadRoutesFile(cfg.RoutesFile)
	case config.SourceGTFS:
		return gtfs.LoadStaticAssignments(ctx, cfg.GTFSStatic, cfg.RouteTrips)
	case config.SourcePostgres:
		return loadFromPostgres(ctx, cfg, log)
	}
	return nil, fmt.Errorf("unknown routes source %q", cfg.RoutesSource)
}

func loadFromPostgres(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) ([]gtfs.Assignment, error) {
	dsn := cfg.DatabaseURL
	// Resolve latest city database if CITY is set
	if cfg.City != "" {
		resolved, err := db.ResolveCityDSN(ctx, dsn, cfg.City)
		if err != nil {
			return nil, fmt.Errorf("resolve latest import for city %q: %w", cfg.City, err)
		}
		dsn = resolved
		log.WithField("city", cfg.City).Info("using latest city database")
	}
	sqlDB, err := db.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db.LoadAssignments(ctx, sqlDB, cfg.RouteTrips)
}
