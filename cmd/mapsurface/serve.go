package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"carbontwin/mapsurface/internal/config"
	"carbontwin/mapsurface/internal/db"
	"carbontwin/mapsurface/internal/events"
	"carbontwin/mapsurface/internal/feed"
	"carbontwin/mapsurface/internal/geo"
	"carbontwin/mapsurface/internal/httpapi"
	"carbontwin/mapsurface/internal/markers"
	"carbontwin/mapsurface/internal/metrics"
	"carbontwin/mapsurface/internal/mode"
	"carbontwin/mapsurface/internal/planner"
	"carbontwin/mapsurface/internal/surface"
	"carbontwin/mapsurface/internal/tiles"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long:  `Runs the HTTP API. Settings come from the environment and an optional .env file.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := httpapi.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var catalog []planner.Type
	if cfg.CatalogPath != "" {
		catalog, err = planner.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("failed to load intervention catalogue")
		}
	}

	var (
		pool  *db.Pool
		store *db.Store
	)
	if cfg.DatabaseURL != "" {
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		if err := p.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}
		pool = p
		store = db.NewStore(p.Queries())
	}

	var pub events.Publisher = events.NopPublisher{}
	if cfg.RedisAddr != "" {
		rp, err := events.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("event publishing disabled")
		} else {
			pub = rp
		}
	}
	defer pub.Close()
	emitter := events.NewAsync(pub, logger, 2*time.Second)

	resource := tiles.NewHTTPResource(logger, tiles.HTTPOptions{
		URLTemplate: cfg.TileURLTemplate,
		Client:      &http.Client{Timeout: cfg.TileTimeout},
		Backoff:     tiles.BackoffConfig{MaxRetries: cfg.TileRetries},
	})

	// The controller, planner and surface call into each other; surf is set before any
	// request can reach them.
	var surf *surface.Surface

	ctrl := mode.New(resource, logger, mode.Options{
		OnClick: func(p geo.GeoPoint) { surf.LiveClick(p) },
		Hooks: mode.Hooks{
			OnTransition: func(from, to mode.Mode) { m.IncModeTransition(string(from), string(to)) },
			OnReadiness:  m.ObserveTileInit,
			OnReady:      func() { surf.SyncLive() },
		},
	})
	defer ctrl.Close()

	plannerOpts := planner.Options{
		Catalog:   catalog,
		OnChange:  func(ivs []markers.Intervention) { surf.SetInterventions(ivs) },
		OnPlaced:  func(iv markers.Intervention) { emitter.Emit(events.InterventionPlaced(iv)) },
		OnRemoved: func(iv markers.Intervention) { emitter.Emit(events.InterventionRemoved(iv)) },
	}
	if store != nil {
		plannerOpts.Store = store
	}
	plan := planner.New(logger, plannerOpts)

	surf = surface.New(logger, ctrl, surface.Options{
		Background:     surface.Background(cfg.FallbackBackground),
		StaticImageURL: cfg.StaticTileURL,
		SeedSamples:    cfg.SeedSampleZones,
		Metrics:        m,
		OnCoordinateChosen: func(p geo.GeoPoint) {
			emitter.Emit(events.CoordinateChosen(p))
			placeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := plan.Place(placeCtx, p); err != nil {
				logger.Warn().Err(err).Float64("lat", p.Lat).Float64("lng", p.Lng).Msg("coordinate not placed")
			}
		},
	})

	if store != nil {
		ivs, err := store.Interventions(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to restore interventions")
		} else {
			plan.Restore(ivs)
		}

		worker := feed.New(logger, store, surf, feed.Options{Interval: cfg.FeedInterval}, m)
		go worker.Run(ctx)
	}

	h := httpapi.NewHandler(logger, httpapi.Deps{
		Pool:       pool,
		Surface:    surf,
		Controller: ctrl,
		Planner:    plan,
		Metrics:    m,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("mapsurface listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
	return nil
}
