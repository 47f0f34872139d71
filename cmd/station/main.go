package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rmtracer/internal/backend"
	"rmtracer/internal/config"
	"rmtracer/internal/connectivity"
	"rmtracer/internal/domain"
	"rmtracer/internal/logging"
	"rmtracer/internal/metrics"
	"rmtracer/internal/notify"
	"rmtracer/internal/queue"
	"rmtracer/internal/repository"
	"rmtracer/internal/session"
	"rmtracer/internal/station"
	"rmtracer/internal/syncengine"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if cfg.Station.ServerURL == "" {
		return fmt.Errorf("station.server_url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := initStore(cfg, &logger)
	if err != nil {
		return err
	}

	client := backend.NewClient(cfg.Station)
	q := queue.NewStore(ctx, kv, &logger)
	hub := notify.NewHub(&logger)
	sess := session.NewManager(ctx, kv, &logger)
	monitor := connectivity.NewMonitor(client, cfg.Station.PingInterval.Std(), &logger)

	signIn(ctx, cfg, client, sess, &logger)

	engine := syncengine.New(q, client, sess, hub, monitor, kv, &logger,
		syncengine.Options{DebounceWindow: cfg.Station.SyncDebounce.Std()})
	svc := station.NewService(client, q, monitor, sess, hub, &logger)
	httpServer := station.NewHTTPServer(cfg.Station.HTTPPort, svc, q, engine, monitor, sess, hub, kv, &logger)

	startMetrics(ctx, cfg, &logger)

	go monitor.Run(ctx)
	go engine.Run(ctx)
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("station http server stopped")
			stop()
		}
	}()

	logger.Info().
		Int("http_port", cfg.Station.HTTPPort).
		Str("server_url", cfg.Station.ServerURL).
		Msg("Station started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("Station stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/station.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "station-main").Logger()

	return cfg, logger, closer, nil
}

// initStore builds the durable station store: a local file store, fronted
// by redis when one is configured.
func initStore(cfg *config.Config, logger *zerolog.Logger) (domain.KVStore, error) {
	filePath := filepath.Join(cfg.Station.DataDir, "station.json")
	fileStore, err := repository.NewFileKVStore(filePath)
	if err != nil {
		logger.Error().Err(err).Str("path", filePath).Msg("init station store")
		return nil, err
	}

	if cfg.Redis.Address == "" {
		return fileStore, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, using file store only")
		return fileStore, nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return repository.NewFailoverKVStore(repository.NewRedisKVStore(client), fileStore, logger), nil
}

// signIn resolves the configured operator email against the server. The
// cached profile keeps the station usable when the server is unreachable
// at start.
func signIn(ctx context.Context, cfg *config.Config, client *backend.Client, sess *session.Manager, logger *zerolog.Logger) {
	if id, ok := sess.CurrentUserID(); ok {
		client.SetUserID(id)
		return
	}
	if cfg.Station.UserEmail == "" {
		logger.Warn().Msg("no station.user_email configured and no cached profile; scans will be rejected")
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, cfg.Station.RequestTimeout.Std())
	defer cancel()

	user, err := client.LookupUserByEmail(lookupCtx, cfg.Station.UserEmail)
	if err != nil {
		logger.Warn().Err(err).Str("email", cfg.Station.UserEmail).Msg("sign-in failed; will retry on next start")
		return
	}
	if err := sess.SignIn(ctx, user); err != nil {
		logger.Warn().Err(err).Msg("failed to cache profile")
		return
	}
	client.SetUserID(user.ID)
	logger.Info().Str("email", user.Email).Msg("operator signed in")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info().Int("port", port).Msg("metrics server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}
