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

	"github.com/medfuse/medfuse/internal/cache"
	"github.com/medfuse/medfuse/internal/config"
	"github.com/medfuse/medfuse/internal/extract"
	"github.com/medfuse/medfuse/internal/llm"
	logpkg "github.com/medfuse/medfuse/internal/logger"
	"github.com/medfuse/medfuse/internal/merge"
	"github.com/medfuse/medfuse/internal/metrics"
	"github.com/medfuse/medfuse/internal/provider/ctgov"
	"github.com/medfuse/medfuse/internal/provider/pubmed"
	chiTransport "github.com/medfuse/medfuse/internal/transport/chi"
	healthuc "github.com/medfuse/medfuse/internal/usecase/health"
	qauc "github.com/medfuse/medfuse/internal/usecase/qa"
	searchuc "github.com/medfuse/medfuse/internal/usecase/search"
	"github.com/medfuse/medfuse/internal/validate"
	"github.com/medfuse/medfuse/internal/version"
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

	logger.Info("Starting medfuse API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("cache_addrs", cfg.Cache.Addrs),
	)

	metrics.RegisterDomainMetrics()

	// Result cache: Redis when configured, always with the in-memory
	// fallback so an unreachable backend never fails a search.
	ctx := context.Background()
	local := cache.NewMemory(cfg.Cache.MaxLocalEntries)
	var store cache.Store = local
	var redisStore *cache.Redis
	if len(cfg.Cache.Addrs) > 0 {
		redisStore, err = cache.NewRedis(cache.RedisConfig{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache client", zap.Error(err))
		}
		defer redisStore.Close()

		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := redisStore.WaitForReady(ctx, readiness); err != nil {
			logger.Warn("Cache backend not ready, relying on in-memory fallback", zap.Error(err))
		}
		store = cache.NewFallback(redisStore, local, logger)
	} else {
		logger.Info("No cache backend configured, using in-memory store only")
	}

	// Source providers
	pm := pubmed.NewClient(&pubmed.Config{
		BaseURL:  cfg.Providers.PubMed.BaseURL,
		APIKey:   cfg.Providers.PubMed.APIKey,
		Tool:     cfg.Providers.PubMed.Tool,
		Email:    cfg.Providers.PubMed.Email,
		Timeout:  time.Duration(cfg.Providers.PubMed.TimeoutSec) * time.Second,
		MaxFetch: cfg.Providers.PubMed.MaxFetch,
		Logger:   logger,
	})
	ctg := ctgov.NewClient(&ctgov.Config{
		BaseURL:  cfg.Providers.CTGov.BaseURL,
		RPS:      cfg.Providers.CTGov.RPS,
		Timeout:  time.Duration(cfg.Providers.CTGov.TimeoutSec) * time.Second,
		MaxFetch: cfg.Providers.CTGov.MaxFetch,
		Logger:   logger,
	})

	engine := merge.New(logger)
	searchSvc := searchuc.New(pm, ctg, store, engine, searchuc.Config{
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
		TTL:             time.Duration(cfg.Cache.TTLSec) * time.Second,
		KeyPrefix:       cfg.Cache.KeyPrefix,
	}, logger)

	// Validation schema is a startup asset; a service without it cannot
	// serve its extraction contract.
	schema, err := validate.LoadSchema(cfg.Validation.SchemaPath, cfg.Validation.EnumsPath)
	if err != nil {
		logger.Fatal("Failed to load validation schema", zap.Error(err))
	}

	// Completion provider is optional; extraction, qa, and the medical-term
	// pass are disabled without it.
	var (
		completer  *llm.Client
		extractSvc *extract.Service
		qaSvc      *qauc.Service
		terms      validate.TermLookup
	)
	if cfg.LLM.APIKey != "" {
		completer = llm.NewClient(&llm.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Logger:      logger,
		})
		extractSvc = extract.New(completer, schema, logger)
		qaSvc = qauc.New(completer, logger)
		if cfg.Validation.MedicalTerms {
			terms = llm.NewTermNormalizer(completer)
		}
	} else {
		logger.Info("No completion API key configured, extraction and qa disabled")
	}

	validator := validate.New(schema, validate.Config{
		AutoFix:            cfg.Validation.AutoFix,
		AutoTruncate:       cfg.Validation.AutoTruncate,
		AllowUnknownFields: cfg.Validation.AllowUnknownFields,
		MedicalTerms:       cfg.Validation.MedicalTerms,
	}, terms, logger)

	var cachePinger healthuc.CachePinger
	if redisStore != nil {
		cachePinger = redisStore
	}
	var llmChecker healthuc.LLMChecker
	if completer != nil {
		llmChecker = completer
	}
	healthSvc := healthuc.New(cachePinger, llmChecker)

	server := chiTransport.NewServer(searchSvc, extractSvc, validator, qaSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

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
