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

	"github.com/kailas-cloud/storefront/internal/config"
	"github.com/kailas-cloud/storefront/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/storefront/internal/db/redis"
	domotp "github.com/kailas-cloud/storefront/internal/domain/otp"
	"github.com/kailas-cloud/storefront/internal/domain/search/relevance"
	logpkg "github.com/kailas-cloud/storefront/internal/logger"
	"github.com/kailas-cloud/storefront/internal/metrics"
	catalogrepo "github.com/kailas-cloud/storefront/internal/repository/catalog"
	"github.com/kailas-cloud/storefront/internal/repository/catalogpg"
	"github.com/kailas-cloud/storefront/internal/repository/otpstore"
	"github.com/kailas-cloud/storefront/internal/repository/visioncache"
	chiTransport "github.com/kailas-cloud/storefront/internal/transport/chi"
	openaiVision "github.com/kailas-cloud/storefront/internal/transport/openai"
	cataloguc "github.com/kailas-cloud/storefront/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/storefront/internal/usecase/health"
	otpuc "github.com/kailas-cloud/storefront/internal/usecase/otp"
	searchuc "github.com/kailas-cloud/storefront/internal/usecase/search"
	"github.com/kailas-cloud/storefront/internal/version"
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

	logger.Info("Starting storefront API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("catalog_source", cfg.Catalog.Source),
		zap.String("otp_store", cfg.OTP.Store),
		zap.Bool("vision_enabled", cfg.Vision.Enabled),
	)

	// Redis and Valkey share the RESP protocol; one rueidis store serves both drivers.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		DB:         cfg.Database.DB,
		ClientName: "storefront",
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterDomainMetrics()
	metrics.RegisterHTTPMetrics()

	healthSvc := healthuc.New(store)

	// Catalog: admin writes go to Redis hashes; Postgres is a read-only source.
	var catalogRepo cataloguc.Repository = catalogrepo.New(store, cfg.Storage.KeyPrefix)
	if cfg.Catalog.Source == "postgres" {
		pg := cfg.Catalog.Postgres
		pool, err := postgres.Open(ctx, postgres.Config{
			DSN:             pg.DSN,
			MaxConns:        pg.MaxConns,
			MinConns:        pg.MinConns,
			MaxConnLifetime: time.Duration(pg.MaxConnLifetimeSec) * time.Second,
			ConnectTimeout:  time.Duration(pg.ConnectTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Fatal("Failed to connect to catalog database", zap.Error(err))
		}
		defer pool.Close()
		catalogRepo = catalogpg.New(pool, pg.MaxRows)
		healthSvc.With("catalog", healthuc.CheckFunc(pool.Ping))
		logger.Info("Using PostgreSQL product catalog", zap.Int("max_rows", pg.MaxRows))
	}

	// Vision: OpenAI-compatible analyzer behind a result cache.
	// Pass a nil interface (not a typed nil pointer) when vision is disabled.
	var analyzer searchuc.Analyzer
	if cfg.Vision.Enabled {
		base := openaiVision.NewAnalyzer(&openaiVision.Config{
			APIKey:    cfg.Vision.APIKey,
			BaseURL:   cfg.Vision.BaseURL,
			Model:     cfg.Vision.Model,
			MaxTokens: cfg.Vision.MaxTokens,
			Provider:  cfg.Vision.Provider,
			Timeout:   time.Duration(cfg.Vision.TimeoutSec) * time.Second,
			Logger:    logger,
		})
		analyzer = base
		if cfg.Vision.CacheTTLSec > 0 {
			analyzer = visioncache.New(
				base, store, cfg.Storage.KeyPrefix,
				time.Duration(cfg.Vision.CacheTTLSec)*time.Second,
				metrics.VisionCacheTotal, logger,
			)
		}
		healthSvc.With("vision", base)
		logger.Info("Vision analyzer enabled",
			zap.String("provider", cfg.Vision.Provider),
			zap.String("model", cfg.Vision.Model),
		)
	}

	// OTP store: in-process map by default, Redis/Valkey with TTL for multi-instance deployments.
	var otpStore otpuc.Store
	retention := time.Duration(cfg.OTP.RetentionSec) * time.Second
	switch cfg.OTP.Store {
	case "redis":
		otpStore = otpstore.NewKV(store, cfg.Storage.KeyPrefix, retention)
	default:
		mem := otpstore.NewMemory()
		go sweepLoop(ctx, mem, time.Duration(cfg.OTP.SweepIntervalSec)*time.Second, retention, logger)
		otpStore = mem
	}

	// Use case services
	searchSvc := searchuc.New(catalogRepo, analyzer, relevance.Default(), searchuc.Config{
		ImageKeywords:   cfg.Search.ImageKeywords,
		ImageResultCap:  cfg.Search.ImageResultCap,
		SuggestionLimit: cfg.Search.SuggestionLimit,
	}, logger)
	otpManager := otpuc.New(otpStore, otpPolicy(cfg.OTP), logger)
	catalogSvc := cataloguc.New(catalogRepo)

	if cfg.OTP.ExposeCode {
		logger.Warn("OTP codes are echoed in API responses; never enable this in production")
	}

	server := chiTransport.NewServer(searchSvc, otpManager, catalogSvc, healthSvc, chiTransport.Options{
		ExposeOTPCode:   cfg.OTP.ExposeCode,
		ExpandByDefault: cfg.Search.ExpandFallback,
		AdminAPIKeys:    cfg.Auth.APIKeys,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// otpPolicy layers configured per-purpose overrides on the built-in defaults.
func otpPolicy(c config.OTPConfig) domotp.Policy {
	base := domotp.DefaultPolicy()
	overrides := make(domotp.Policy, len(c.Purposes))
	for purpose, p := range c.Purposes {
		o := domotp.Overrides{
			Type:        domotp.CodeType(p.Type),
			Length:      p.Length,
			ExpiresIn:   time.Duration(p.ExpiresInMin) * time.Minute,
			MaxAttempts: p.MaxAttempts,
		}
		pc := o.Apply(base.For(purpose))
		if p.ResendCooldownSec > 0 {
			pc.ResendCooldown = time.Duration(p.ResendCooldownSec) * time.Second
		}
		overrides[purpose] = pc
	}
	return base.Merge(overrides)
}

// sweepLoop drops long-dead OTP records from the in-process store.
func sweepLoop(ctx context.Context, mem *otpstore.Memory, interval, retention time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := mem.Sweep(now, retention); n > 0 {
				logger.Debug("Swept OTP records", zap.Int("removed", n), zap.Int("remaining", mem.Len()))
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
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logpkg.FromContextOr(r.Context(), logger).Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    string(chiTransport.CodeInternalError),
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

			// Query strings are left out: they carry search text and OTP subjects.
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
