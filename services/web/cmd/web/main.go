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
	"quoteshare/internal/metrics"
	"quoteshare/internal/ratelimit"
	"quoteshare/internal/util"
	"quoteshare/pkg/auth"
	"quoteshare/pkg/store"
	"quoteshare/services/web/internal/app"
	"quoteshare/services/web/internal/config"
	"quoteshare/services/web/internal/security"
	"quoteshare/services/web/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger("web", cfg.LogLevel)
	if cfg.UsesInsecureSecret() {
		logger.Warn("SECRET_KEY is the development default; set a real secret in production")
	}
	proxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	cookies, err := auth.NewCookieSigner(cfg.SecretKey, cfg.SessionTTLDuration())
	if err != nil {
		log.Fatalf("failed to init session cookies: %v", err)
	}

	appCfg := app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		SessionTTL:    cfg.SessionTTLDuration(),
		PageSize:      cfg.PageSize,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIModel:   cfg.OpenAIModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		AITimeout:     cfg.AITimeoutDuration(),
	}
	serverCfg := server.Config{
		Metrics:        metrics.New(),
		Cookies:        cookies,
		TrustedProxies: proxies,
		CookieSecure:   cfg.CookieSecure,
	}

	if cfg.RedisAddr != "" {
		// sessions and rate limits share one connection pool
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		sessions := store.NewRedisSessionStoreWithClient(rdb, cfg.SessionTTLDuration())
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := sessions.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatalf("failed to reach redis: %v", err)
		}
		appCfg.Sessions = sessions
		serverCfg.Alerter = security.NewAuditAlerter(rdb, "quoteshare:alerts")
		if cfg.LoginRateLimitPerMinute > 0 {
			if serverCfg.LoginLimiter, err = ratelimit.NewFixedWindowLimiter(rdb, "quoteshare:ratelimit:login", cfg.LoginRateLimitPerMinute, time.Minute); err != nil {
				log.Fatalf("failed to init login limiter: %v", err)
			}
		}
		if cfg.RegisterRateLimitPerMinute > 0 {
			if serverCfg.RegisterLimiter, err = ratelimit.NewFixedWindowLimiter(rdb, "quoteshare:ratelimit:register", cfg.RegisterRateLimitPerMinute, time.Minute); err != nil {
				log.Fatalf("failed to init register limiter: %v", err)
			}
		}
	} else {
		logger.Warn("REDIS_ADDR not set; using in-memory sessions without rate limiting")
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()
	if !appCore.ExplanationsEnabled() {
		logger.Warn("OPENAI_API_KEY not set; AI explanations disabled")
	}

	serverCfg.App = appCore
	httpServer, err := server.New(serverCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.AITimeoutDuration() + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("web server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err, ok := <-serverErr:
		if ok {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	logger.Info("shutdown complete")
}
