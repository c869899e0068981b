package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/content-ledger/internal/metrics"
	"github.com/tendant/content-ledger/pkg/contentledger"
	"github.com/tendant/content-ledger/pkg/contentledger/api"
	"github.com/tendant/content-ledger/pkg/contentledger/config"
	"github.com/tendant/content-ledger/pkg/contentledger/snapshot"
)

type Config struct {
	EnvPrefix        string        `env:"LEDGER_ENV_PREFIX" env-default:"LEDGER_"`
	AllowedOrigins   []string      `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	MetricsEnabled   bool          `env:"METRICS_ENABLED" env-default:"true"`
	VerifyInterval   time.Duration `env:"VERIFY_INTERVAL" env-default:"5m"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" env-default:"0"`
	SnapshotRetain   int           `env:"SNAPSHOT_RETAIN" env-default:"0"`
}

func main() {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	serverConfig, err := config.Load(config.WithEnv(cfg.EnvPrefix))
	if err != nil {
		slog.Error("Failed to load ledger configuration", "err", err)
		os.Exit(1)
	}
	if serverConfig.JWTSecret == "" {
		slog.Warn("No JWT secret configured, using an insecure development secret")
		serverConfig.JWTSecret = "development-only-secret"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, closeRepo, err := serverConfig.BuildService(ctx, contentledger.WithObserver(metrics.NewLedger()))
	if err != nil {
		slog.Error("Failed to build ledger", "err", err)
		os.Exit(1)
	}
	defer closeRepo()

	if err := svc.Verify(ctx); err != nil {
		slog.Error("Ledger failed verification at startup, serving read-only", "err", err)
	}

	go verifyLoop(ctx, svc, cfg.VerifyInterval)

	if cfg.SnapshotInterval > 0 {
		store, err := serverConfig.BuildSnapshotStore()
		if err != nil {
			slog.Error("Failed to build snapshot store", "err", err)
			os.Exit(1)
		}
		go snapshotLoop(ctx, svc, store, serverConfig.Snapshot.Prefix, cfg.SnapshotInterval, cfg.SnapshotRetain)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	if cfg.MetricsEnabled {
		server.R.Handle("/metrics", promhttp.Handler())
	}

	mountAPI(server.R, api.NewHandler(svc, api.NewJWTAuth(serverConfig.JWTSecret)), cfg.AllowedOrigins)

	slog.Info("Content ledger starting",
		"environment", serverConfig.Environment,
		"database", serverConfig.DatabaseType,
		"snapshots", serverConfig.Snapshot.Type)

	server.Run()
}

func mountAPI(r chi.Router, handler *api.Handler, allowedOrigins []string) {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(corsHandler.Handler)
		r.Mount("/", handler.Routes())
	})
}

// verifyLoop periodically recomputes derived state. A failed check halts
// writes inside the service; the loop only reports it.
func verifyLoop(ctx context.Context, svc contentledger.Service, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.Verify(ctx); err != nil {
				slog.Error("Ledger verification failed", "err", err)
			}
		}
	}
}

// snapshotLoop exports a snapshot every interval and, when retain is
// positive, deletes all but the newest retain snapshots.
func snapshotLoop(ctx context.Context, svc contentledger.Service, store contentledger.BlobStore, prefix string, interval time.Duration, retain int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			key, err := snapshot.Export(ctx, svc, store, snapshot.NewKey(prefix, now))
			if err != nil {
				slog.Error("Snapshot export failed", "err", err)
				continue
			}
			slog.Info("Snapshot exported", "key", key)

			deleted, err := snapshot.Prune(ctx, store, prefix, retain)
			if err != nil {
				slog.Error("Snapshot pruning failed", "err", err)
			}
			if len(deleted) > 0 {
				slog.Info("Old snapshots pruned", "count", len(deleted))
			}
		}
	}
}
