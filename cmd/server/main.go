package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"parkhub/internal/api"
	"parkhub/internal/audit"
	"parkhub/internal/config"
	"parkhub/internal/database"
	"parkhub/internal/events"
	"parkhub/internal/metrics"
	"parkhub/internal/session"
	"parkhub/internal/sheets"
	"parkhub/internal/status"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("PARKHUB_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Garage roster comes from garages.yaml; reload on change so new
	// garages get their status rows without a restart.
	err = config.WatchGarages(ctx, cfg.GaragesConfigPath, 30*time.Second, func(gc *config.GaragesConfig) {
		if err := gc.Validate(); err != nil {
			logger.Error().Err(err).Msg("invalid garages config, keeping previous roster")
			return
		}
		if err := db.SyncGaragesFromConfig(ctx, gc); err != nil {
			logger.Error().Err(err).Msg("garage sync failed")
			return
		}
		logger.Info().Int("garages", len(gc.Garages)).Msg("garage roster synced")
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("load garages config")
	}

	var rdb *redis.Client
	sessions := session.Repository(session.NewDBRepository(db))
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		primary := session.NewRedisRepository(rdb, cfg.SessionTTL())
		sessions = session.NewFailoverRepository(primary, session.NewDBRepository(db), logger)
	}

	bus := events.NewEventBus()
	bus.Subscribe(events.TypeStatusChanged, func(e events.Event) error {
		logger.Info().RawJSON("payload", e.Payload).Str("event", e.Type).Msg("event")
		return nil
	})
	bus.Subscribe(events.TypeOverrideApplied, func(e events.Event) error {
		logger.Info().RawJSON("payload", e.Payload).Str("event", e.Type).Msg("event")
		return nil
	})

	resolver := status.NewResolver(db)
	mutator := status.NewMutator(db, db, bus, logger)

	if cfg.Backup.Enabled {
		backupSvc := database.NewBackupService(cfg.Database.Path, database.BackupConfig{
			Enabled:       true,
			StoragePath:   cfg.Backup.StoragePath,
			IntervalHours: cfg.Backup.IntervalHours,
			RetentionDays: cfg.Backup.RetentionDays,
		}, logger)
		go backupSvc.Start(ctx)
	}

	if cfg.Audit.Enabled {
		auditSvc := audit.NewService(audit.Config{
			ExportDir:     cfg.Audit.ExportDir,
			ExportOnStart: cfg.Audit.ExportOnStart,
			RetentionDays: cfg.Audit.RetentionDays,
		}, db, audit.NewExcelizeWriter, db, logger)
		auditSvc.Start()
		defer auditSvc.Stop()
	}

	if cfg.Sheets.Enabled {
		sheetsSvc, err := sheets.NewSheetsService(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, logger)
		if err != nil {
			logger.Error().Err(err).Msg("sheets export disabled")
		} else {
			// Mirror the full history after every status change. Dispatch
			// is synchronous, so the export runs off the event goroutine.
			bus.Subscribe(events.TypeStatusChanged, func(events.Event) error {
				go func() {
					exportCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					entries, err := db.GetAllStatusHistory(exportCtx)
					if err != nil {
						logger.Error().Err(err).Msg("load history for sheets export")
						return
					}
					if err := sheetsSvc.ExportHistory(exportCtx, entries); err != nil {
						logger.Error().Err(err).Msg("sheets export failed")
					}
				}()
				return nil
			})
		}
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
	}

	server := api.NewHTTPServer(cfg, db, resolver, mutator, sessions, logger)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown error")
		}
	}()

	logger.Info().Msg("parkhub status engine started")
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("http server error")
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		// Redis being down is degraded, not unready: sessions fail
		// over to sqlite.
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
