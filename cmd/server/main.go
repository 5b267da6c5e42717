package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"moneymoved/internal/config"
	"moneymoved/internal/dataset"
	"moneymoved/internal/handlers/charts"
	"moneymoved/internal/handlers/datasets"
	"moneymoved/internal/logging"
	"moneymoved/internal/prompt"
	"moneymoved/internal/services/analytics"
	"moneymoved/internal/services/matcher"
	"moneymoved/internal/services/storage"
	"moneymoved/internal/version"
)

var (
	cfg     *config.Config
	store   *storage.Storage
	catalog *config.Catalog
	svc     *analytics.Service
	assets  *matcher.AssetRegistry
	logger  = zap.NewNop()
)

func main() {
	// .env is optional outside development
	_ = godotenv.Load()

	cfg = config.Load()

	var err error
	logger, err = logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("starting money moved service", append(version.Get().Fields(),
		zap.String("addr", cfg.ListenAddr),
		zap.String("data_dir", cfg.DataDirectory))...)

	store, err = storage.New(cfg.DataDirectory)
	if err != nil {
		logger.Fatal("failed to open data directory", zap.Error(err))
	}
	if store.IsSealed() {
		if err := unlock(store); err != nil {
			logger.Fatal("failed to unlock data directory", zap.Error(err))
		}
		logger.Info("data directory unlocked")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := SetupDependencies(ctx, cfg); err != nil {
		logger.Fatal("failed to set up dependencies", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	store.Lock()
}

// unlock opens a sealed data directory with MM_DATA_PASSWORD or a
// terminal prompt.
func unlock(s *storage.Storage) error {
	pass, err := prompt.Resolve(cfg.DataPassword)
	if err != nil {
		return err
	}
	return s.Unlock(pass)
}

// SetupDependencies loads the catalogue, registers its datasets and
// initializes the handler packages. store must be set.
func SetupDependencies(ctx context.Context, c *config.Config) error {
	var err error
	catalog, err = config.LoadCatalog(c.CatalogFile)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	opts := c.Options(catalog)
	loader := dataset.NewFileLoader(store, opts.Calendar, logger.Named("loader"))
	registry := dataset.NewRegistry(loader, logger.Named("registry"))
	svc = analytics.New(registry, opts, logger.Named("analytics"))

	start := time.Now()
	if err := svc.RegisterAll(ctx, catalog.Datasets); err != nil {
		return err
	}
	logger.Info("datasets registered",
		zap.Strings("datasets", svc.Datasets()),
		zap.Duration("elapsed", time.Since(start)))

	assets, err = loadAssets(c)
	if err != nil {
		return err
	}

	charts.Initialize(svc, assets, charts.Views{
		MoneyMoved: catalog.MoneyMoved,
		Flow:       catalog.Flow,
	}, logger.Named("charts"))
	datasets.Initialize(svc, logger.Named("datasets"))
	return nil
}

// loadAssets reads the asset registry. A missing registry file leaves
// entity images unmatched.
func loadAssets(c *config.Config) (*matcher.AssetRegistry, error) {
	if _, err := os.Stat(c.AssetsFile); errors.Is(err, os.ErrNotExist) {
		logger.Warn("asset registry not found", zap.String("path", c.AssetsFile))
		return matcher.NewAssetRegistry(), nil
	}
	reg, err := matcher.LoadAssetRegistry(c.AssetsFile, c.AssetsDirectory)
	if err != nil {
		return nil, fmt.Errorf("load asset registry: %w", err)
	}
	logger.Info("asset registry loaded", zap.Int("entries", reg.Len()), zap.Int("files", len(reg.Files())))
	return reg, nil
}

// SetupRouter builds the HTTP routes.
func SetupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/api/health", handleHealth)
	r.Get("/api/version", handleVersion)

	charts.RegisterRoutes(r)
	datasets.RegisterRoutes(r)

	return r
}

// requestLogger logs each request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"datasets": svc.Datasets(),
		"sealed":   store.IsSealed(),
		"version":  version.Version,
	})
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(version.Get())
}
