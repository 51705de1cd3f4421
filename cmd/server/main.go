package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	_ "go.uber.org/automaxprocs"

	"github.com/Clark-Hu/movielog/db"
	"github.com/Clark-Hu/movielog/internal/auth"
	"github.com/Clark-Hu/movielog/internal/catalog"
	"github.com/Clark-Hu/movielog/internal/config"
	"github.com/Clark-Hu/movielog/internal/events"
	httpserver "github.com/Clark-Hu/movielog/internal/http"
	"github.com/Clark-Hu/movielog/internal/ledger"
	"github.com/Clark-Hu/movielog/internal/library"
	"github.com/Clark-Hu/movielog/internal/ratelimit"
	"github.com/Clark-Hu/movielog/internal/repository"
	"github.com/Clark-Hu/movielog/internal/store"
	"github.com/Clark-Hu/movielog/internal/tmdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnvFiles(".env.local", ".env"); err != nil {
		log.Fatalf("env files: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With("service", "movielog")
	slog.SetDefault(logger)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		fatal(logger, "connect database", err)
	}
	defer st.Close()

	if err := db.Migrate(dbCtx, st.Pool()); err != nil {
		fatal(logger, "apply migrations", err)
	}

	tmdbClient, err := tmdb.NewHTTPClient(cfg.TMDBURL, cfg.TMDBAPIKey, tmdb.Options{
		Timeout:           time.Duration(cfg.TMDBTimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.TMDBRPS,
		Logger:            logger,
	})
	if err != nil {
		fatal(logger, "init tmdb client", err)
	}
	resolver := catalog.NewResolver(tmdbClient, logger)

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.DialAMQP(cfg.AMQPURL, events.DefaultExchange, logger)
		if err != nil {
			fatal(logger, "connect amqp", err)
		}
		publisher = amqpPub
	}
	defer publisher.Close()

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = newLimiter(ctx, cfg.RedisAddr, logger)
	}

	repo := repository.New(st)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute)
	server := httpserver.New(cfg, st, httpserver.Services{
		Ledger:  ledger.NewService(st, repo, resolver, publisher, logger),
		Library: library.NewService(st, repo, resolver, logger),
		Auth:    auth.NewService(repo.Users, tokens, logger),
		Limiter: limiter,
	}, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error("server error", "error", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("graceful shutdown error", "error", err)
	}
}

// newLimiter prefers the shared Redis limiter and falls back to a
// process-local one when Redis is not configured or not reachable.
func newLimiter(ctx context.Context, addr string, logger *slog.Logger) ratelimit.Limiter {
	if addr == "" {
		logger.Info("rate limiting in memory")
		return ratelimit.NewMemoryLimiter(10 * time.Minute)
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, rate limiting in memory", "addr", addr, "error", err)
		_ = rdb.Close()
		return ratelimit.NewMemoryLimiter(10 * time.Minute)
	}
	logger.Info("rate limiting via redis", "addr", addr)
	return ratelimit.NewRedisLimiter(rdb, "movielog:rl:")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
