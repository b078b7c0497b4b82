package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MJE43/visual-replay-go/internal/api"
	"github.com/MJE43/visual-replay-go/internal/config"
	"github.com/MJE43/visual-replay-go/internal/logger"
	"github.com/MJE43/visual-replay-go/internal/render"
	"github.com/MJE43/visual-replay-go/internal/scan"
	"github.com/MJE43/visual-replay-go/internal/scripting"
	"github.com/MJE43/visual-replay-go/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("visualrngd exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Version != "" && api.Version == "dev" {
		api.Version = cfg.Version
	}

	log := logger.Init(cfg.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := cfg.DBPath
	if cfg.DBDriver == config.DriverPostgres {
		dsn = cfg.DBURL
	}
	db, err := store.Open(cfg.DBDriver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = db.Migrate(migrateCtx)
	cancel()
	if err != nil {
		return err
	}

	renders := render.NewService(
		render.WithCache(cfg.RenderCacheSize, cfg.RenderCacheTTL),
		render.WithStore(db),
	)
	scans := scan.NewService(scan.NewScanner(scan.WithMaxRange(cfg.ScanMaxRange)), db)
	scripts := scripting.NewRunner(
		scripting.WithTimeout(cfg.ScriptTimeout),
		scripting.WithBucket(cfg.AmbientBucket),
		scripting.WithStore(db),
	)

	srv := api.NewServer(api.Services{
		DB:            db,
		Render:        renders,
		Scans:         scans,
		Scripts:       scripts,
		AmbientBucket: cfg.AmbientBucket,
	}, log)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv.SecurityLogger().LogSystemStartup(httpServer.Addr, map[string]any{
		"environment":       cfg.Environment,
		"db_driver":         cfg.DBDriver,
		"render_cache_size": cfg.RenderCacheSize,
		"scan_max_range":    cfg.ScanMaxRange,
		"script_timeout":    cfg.ScriptTimeout.String(),
		"ambient_bucket":    cfg.AmbientBucket.String(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		reason := "signal"
		if ctx.Err() == nil {
			reason = "server error"
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		srv.SecurityLogger().LogSystemShutdown(reason, srv.Uptime())
		return err
	})

	return g.Wait()
}
