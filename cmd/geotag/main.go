package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/geotag/internal/config"
	"github.com/kailas-cloud/geotag/internal/db"
	dbRedis "github.com/kailas-cloud/geotag/internal/db/redis"
	"github.com/kailas-cloud/geotag/internal/domain"
	logpkg "github.com/kailas-cloud/geotag/internal/logger"
	"github.com/kailas-cloud/geotag/internal/metrics"
	"github.com/kailas-cloud/geotag/internal/repository/geocache"
	azureRec "github.com/kailas-cloud/geotag/internal/transport/azure"
	chiTransport "github.com/kailas-cloud/geotag/internal/transport/chi"
	esriGeo "github.com/kailas-cloud/geotag/internal/transport/esri"
	hugotRec "github.com/kailas-cloud/geotag/internal/transport/hugot"
	shipengineRec "github.com/kailas-cloud/geotag/internal/transport/shipengine"
	annotateuc "github.com/kailas-cloud/geotag/internal/usecase/annotate"
	geotaguc "github.com/kailas-cloud/geotag/internal/usecase/geotag"
	healthuc "github.com/kailas-cloud/geotag/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/geotag/internal/usecase/pipeline"
	"github.com/kailas-cloud/geotag/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting geotag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("recognizers", cfg.Annotator.Enabled),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	metrics.RegisterPipelineMetrics()

	// Optional geocode cache store
	ctx := context.Background()
	var store db.Store
	if cfg.Cache.Enabled {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to geocode cache")
	}

	geocoder := buildGeocoder(cfg, store, logger)
	recognizers := buildRecognizers(cfg, logger)
	if len(recognizers) == 0 {
		logger.Warn("No recognizers configured, texts will pass through unannotated")
	}

	annotateSvc := annotateuc.New(recognizers, annotateuc.Config{
		PlaceholderIsolation: cfg.PlaceholderIsolationEnabled(),
		NestedTagRemoval:     cfg.NestedTagRemovalEnabled(),
	}, logger)
	geotagSvc := geotaguc.New(geocoder, geotaguc.Config{
		CourtesyDelay: time.Duration(cfg.Geocoder.CourtesyDelayMS) * time.Millisecond,
	}, logger)
	pipelineSvc := pipelineuc.New(annotateSvc, geotagSvc, geotaguc.FilterByAreas, logger)

	healthChecks := make([]healthuc.Recognizer, len(recognizers))
	for i, rec := range recognizers {
		healthChecks[i] = rec
	}
	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(cachePinger, healthChecks)

	server := chiTransport.NewServer(pipelineSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	closeRecognizers(recognizers, logger)
	logger.Info("Server stopped gracefully")
}

// buildGeocoder assembles the geocoder chain: Esri -> Cached.
func buildGeocoder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Geocoder {
	var geocoder domain.Geocoder = esriGeo.New(esriGeo.Config{
		URL:         cfg.Geocoder.URL,
		APIKey:      cfg.Geocoder.APIKey,
		Timeout:     time.Duration(cfg.Geocoder.TimeoutSec) * time.Second,
		MaxAttempts: cfg.Geocoder.MaxAttempts,
		Logger:      logger,
	})

	if store != nil {
		geocoder = geocache.New(
			geocoder, store,
			cfg.Cache.KeyPrefix,
			time.Duration(cfg.Cache.TTLHours)*time.Hour,
			metrics.GeocodeCacheTotal,
			logger,
		)
	}
	return geocoder
}

// buildRecognizers creates the configured recognizers in execution order.
// A recognizer that fails to initialize is skipped with a warning so the
// remaining passes still run.
func buildRecognizers(cfg config.Config, logger *zap.Logger) []domain.Recognizer {
	recognizers := make([]domain.Recognizer, 0, len(cfg.Annotator.Enabled))
	for _, name := range cfg.Annotator.Enabled {
		switch name {
		case config.RecognizerNER:
			rec, err := hugotRec.New(hugotRec.Config{
				Model:          cfg.NER.Model,
				ModelDir:       cfg.NER.ModelDir,
				TargetEntities: cfg.NER.TargetEntities,
				Logger:         logger,
			})
			if err != nil {
				logger.Warn("NER recognizer unavailable", zap.Error(err))
				continue
			}
			recognizers = append(recognizers, rec)
		case config.RecognizerAddress:
			recognizers = append(recognizers, shipengineRec.New(shipengineRec.Config{
				APIKey:         cfg.Address.APIKey,
				BaseURL:        cfg.Address.BaseURL,
				EnableFallback: cfg.AddressFallbackEnabled(),
				Timeout:        time.Duration(cfg.Address.TimeoutSec) * time.Second,
				Logger:         logger,
			}))
		case config.RecognizerCloud:
			recognizers = append(recognizers, azureRec.New(azureRec.Config{
				APIKey:              cfg.Cloud.APIKey,
				Endpoint:            cfg.Cloud.Endpoint,
				TargetEntities:      cfg.Cloud.TargetEntities,
				ConfidenceThreshold: cfg.Cloud.ConfidenceThreshold,
				Timeout:             time.Duration(cfg.Cloud.TimeoutSec) * time.Second,
				Logger:              logger,
			}))
		default:
			logger.Warn("Unknown recognizer in annotator.enabled", zap.String("name", name))
		}
	}
	return recognizers
}

func closeRecognizers(recognizers []domain.Recognizer, logger *zap.Logger) {
	for _, rec := range recognizers {
		if closer, ok := rec.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Warn("Failed to close recognizer", zap.String("name", rec.Name()), zap.Error(err))
			}
		}
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
