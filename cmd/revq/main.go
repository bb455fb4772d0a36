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

	"github.com/parklens/revq/internal/config"
	dbRedis "github.com/parklens/revq/internal/db/redis"
	logpkg "github.com/parklens/revq/internal/logger"
	"github.com/parklens/revq/internal/metrics"
	reviewsrepo "github.com/parklens/revq/internal/repository/reviews"
	vectorrepo "github.com/parklens/revq/internal/repository/vector"
	chiTransport "github.com/parklens/revq/internal/transport/chi"
	openaiTransport "github.com/parklens/revq/internal/transport/openai"
	"github.com/parklens/revq/internal/usecase/answer"
	healthuc "github.com/parklens/revq/internal/usecase/health"
	"github.com/parklens/revq/internal/usecase/ingest"
	"github.com/parklens/revq/internal/usecase/qcache"
	"github.com/parklens/revq/internal/usecase/retrieval"
	"github.com/parklens/revq/internal/version"
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

	logger.Info("Starting revq API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterProviderMetrics()
	metrics.RegisterQueryMetrics()

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.Embedding.APIKey,
		BaseURL:     cfg.Embedding.BaseURL,
		Model:       cfg.Answering.Model,
		Temperature: cfg.Answering.Temperature,
		MaxTokens:   cfg.Answering.MaxTokens,
		Logger:      logger,
	})
	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("answering_model", cfg.Answering.Model),
	)

	// Load the review corpus; it is immutable for the process lifetime.
	corpus, err := reviewsrepo.LoadCSV(cfg.Data.ReviewsCSV)
	if err != nil {
		logger.Fatal("Failed to load reviews", zap.String("path", cfg.Data.ReviewsCSV), zap.Error(err))
	}
	reviewStore := reviewsrepo.NewStore(corpus)
	logger.Info("Reviews loaded", zap.Int("count", reviewStore.Len()))

	vectorRepo := vectorrepo.New(store, cfg.Embedding.Dimensions).WithHNSW(vectorrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})

	retrievalSvc := retrieval.NewService(reviewStore, vectorRepo, embedder, logger).
		WithTuning(retrieval.Tuning{
			StrategyMultiplier: cfg.Retrieval.StrategyMultiplier,
			LexicalWeight:      cfg.Retrieval.LexicalWeight,
			VectorWeight:       cfg.Retrieval.VectorWeight,
			PhraseBoost:        retrieval.DefaultTuning().PhraseBoost,
		})
	cacheSvc := qcache.NewService(store, embedder, logger).
		WithThreshold(cfg.Cache.SimilarityThreshold).
		WithTTL(time.Duration(cfg.Cache.TTLHours) * time.Hour)
	answerSvc := answer.NewService(retrievalSvc, cacheSvc, generator, cfg.Retrieval.TopK, logger)
	healthSvc := healthuc.New(store, embedder)

	server := chiTransport.NewServer(answerSvc, cacheSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	// Backfill the vector index in the background; /query answers 503 until
	// the backfill completes.
	ingestSvc := ingest.NewService(embedder, vectorRepo, cfg.Data.IngestBatch, cfg.Data.IngestParallel, logger)
	go func() {
		n, err := ingestSvc.Run(ctx, reviewStore.All())
		if err != nil {
			logger.Fatal("Vector index backfill failed", zap.Error(err))
		}
		healthSvc.SetReady()
		logger.Info("Service ready", zap.Int("reviews_indexed", n))
	}()

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

	logger.Info("Server stopped gracefully")
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
						"error": "internal error",
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

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
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
