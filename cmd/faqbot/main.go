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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kaabil/faqbot/internal/cache"
	"github.com/kaabil/faqbot/internal/config"
	"github.com/kaabil/faqbot/internal/domain"
	"github.com/kaabil/faqbot/internal/index"
	logpkg "github.com/kaabil/faqbot/internal/logger"
	"github.com/kaabil/faqbot/internal/metrics"
	"github.com/kaabil/faqbot/internal/repository/embcache"
	"github.com/kaabil/faqbot/internal/repository/turns"
	chiTransport "github.com/kaabil/faqbot/internal/transport/chi"
	openaiTransport "github.com/kaabil/faqbot/internal/transport/openai"
	"github.com/kaabil/faqbot/internal/usecase/answer"
	askuc "github.com/kaabil/faqbot/internal/usecase/ask"
	healthuc "github.com/kaabil/faqbot/internal/usecase/health"
	"github.com/kaabil/faqbot/internal/usecase/retrieval"
	"github.com/kaabil/faqbot/internal/version"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

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

	logger.Info("Starting faqbot API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_model", cfg.OpenAI.EmbeddingModel),
		zap.String("chat_model", cfg.OpenAI.ChatModel),
		zap.Bool("offline", cfg.Retrieval.Offline),
	)

	systemPrompt, err := os.ReadFile(cfg.Index.SystemPrompt)
	if err != nil {
		logger.Fatal("Failed to read system prompt", zap.Error(err))
	}

	// Register remote call metrics explicitly (no init())
	metrics.RegisterRemoteMetrics()

	// Optional embedding cache
	var cacheStore *cache.Store
	if cfg.Cache.Enabled() {
		cacheStore, err = cache.NewStore(cache.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create embedding cache", zap.Error(err))
		}
		defer cacheStore.Close()

		if err := cacheStore.WaitForReady(context.Background(), 10*time.Second); err != nil {
			logger.Fatal("Embedding cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Embedder chain: OpenAI -> Cached
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.EmbeddingModel,
		TimeoutSec: cfg.OpenAI.TimeoutSec,
		Logger:     logger,
	})
	var embedder domain.Embedder = base
	if cacheStore != nil {
		embedder = embcache.New(base, cacheStore, cfg.OpenAI.EmbeddingModel, metrics.EmbeddingCacheTotal, logger)
	}

	chatClient := openaiTransport.NewChatClient(&openaiTransport.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.ChatModel,
		TimeoutSec: cfg.OpenAI.TimeoutSec,
		Logger:     logger,
	})

	turnStore, err := turns.New(cfg.Turns.DBPath)
	if err != nil {
		logger.Fatal("Failed to open turn log", zap.Error(err))
	}
	defer func() { _ = turnStore.Close() }()

	lazy := index.NewLazy(cfg.Index.Path, cfg.Index.MetaPath)
	if store, err := lazy.Get(); err != nil {
		// The server still starts; /ask returns 503 until ingestion runs.
		logger.Warn("Index artifacts not available yet", zap.Error(err))
	} else {
		logger.Info("Index loaded",
			zap.Int("rows", store.Len()),
			zap.Int("dimensions", store.Dimensions()),
			zap.String("embedding_model", store.EmbeddingModel()),
		)
	}

	selector := retrieval.New(cfg.Retrieval.Threshold(), cfg.Retrieval.RerankK, cfg.Retrieval.Offline)
	composer := answer.New(chatClient, string(systemPrompt), cfg.Retrieval.Offline)

	askSvc := askuc.New(askuc.Config{
		Index:    lazy,
		Embedder: embedder,
		Selector: selector,
		Composer: composer,
		Turns:    turnStore,
		Logger:   logger,
		TopK:     cfg.Retrieval.TopK,
		Model:    cfg.OpenAI.ChatModel,
		Offline:  cfg.Retrieval.Offline,
	})

	// Pass nil interface (not typed nil pointer!) when the cache is absent.
	var cachePinger healthuc.CachePinger
	if cacheStore != nil {
		cachePinger = cacheStore
	}
	healthSvc := healthuc.New(lazy, turnStore, base, cachePinger)

	server := chiTransport.NewServer(askSvc, healthSvc, turnStore, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one line per request
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
