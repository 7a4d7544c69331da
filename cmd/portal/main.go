package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/sessions"
	"golang.org/x/time/rate"

	"github.com/typeapproval/portal/internal/api"
	"github.com/typeapproval/portal/internal/infrastructure/backend"
	"github.com/typeapproval/portal/internal/infrastructure/config"
	mongodb "github.com/typeapproval/portal/internal/infrastructure/db/mongo"
	redisdb "github.com/typeapproval/portal/internal/infrastructure/db/redis"
	"github.com/typeapproval/portal/internal/infrastructure/http/handlers"
	"github.com/typeapproval/portal/internal/infrastructure/queue"
	"github.com/typeapproval/portal/internal/infrastructure/tokenstore"
	"github.com/typeapproval/portal/pkg/logger"
)

// @title        Type-Approval Portal API
// @version      1.0
// @description  Session, authentication and role-guarded access to the vehicle type-approval certification backend.
// @BasePath     /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.IsDevelopment(), Env: cfg.Env})

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongodb")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	auditRepo := mongodb.NewAuditRepository(db, cfg.Audit.Retention)
	if err := auditRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure audit indexes")
	}

	// Audit workers outlive the signal context so they can drain after shutdown.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(
		cfg.Audit.Workers,
		auditRepo,
		redisdb.NewDeniedThrottle(rdb, cfg.Audit.DeniedThrottle),
		logger.Component("audit"),
	)
	dispatcher.Start(workerCtx)

	cookies := sessions.NewCookieStore([]byte(cfg.Session.Key))
	tokens, err := tokenstore.NewFactory(cfg.Session.Store, cookies, rdb, tokenstore.Options{
		CookieName: cfg.Session.CookieName,
		MaxAge:     cfg.Session.MaxAge,
		Secure:     cfg.Session.Secure,
		SameSite:   tokenstore.SameSiteFromString(cfg.Session.SameSite),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("token store")
	}

	client, err := backend.New(backend.Config{BaseURL: cfg.Backend.BaseURL, Timeout: cfg.Backend.Timeout}, nil, logger.Component("backend"))
	if err != nil {
		log.Fatal().Err(err).Msg("backend client")
	}

	e := api.NewRouter(api.Deps{
		Log:     logger.Component("http"),
		Tokens:  tokens,
		Backend: client,
		Audit:   dispatcher,
		Checks: map[string]handlers.Check{
			"mongodb": mongodb.Ping(mongoClient),
			"redis":   redisdb.Ping(rdb),
			"backend": client.Ping,
		},
		SignInPath:  cfg.Session.SignInPath,
		SignInRate:  rate.Limit(cfg.Limits.SignInPerSecond),
		SignInBurst: cfg.Limits.SignInBurst,
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("token_store", cfg.Session.Store).Msg("portal listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}

	stopWorkers()
	dispatcher.Wait()
}
