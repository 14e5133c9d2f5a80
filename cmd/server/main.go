package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/tasktracker/internal/config"
	"github.com/iliyamo/tasktracker/internal/database"
	"github.com/iliyamo/tasktracker/internal/handler"
	"github.com/iliyamo/tasktracker/internal/logging"
	"github.com/iliyamo/tasktracker/internal/middleware"
	"github.com/iliyamo/tasktracker/internal/queue"
	"github.com/iliyamo/tasktracker/internal/realtime"
	"github.com/iliyamo/tasktracker/internal/repository"
	"github.com/iliyamo/tasktracker/internal/router"
	"github.com/iliyamo/tasktracker/internal/service"
	"github.com/iliyamo/tasktracker/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins

	cfg := config.Load()
	log := logging.NewLogger(cfg.LogLevel, cfg.IsDev())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server.exit", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var (
		users service.UserStore
		tasks service.TaskStore
		store handler.Pinger
	)
	switch cfg.Store {
	case config.StoreMemory:
		users, tasks = repository.NewMemoryUserRepo(), repository.NewMemoryTaskRepo()
		log.Warn("store.memory", "note", "data is lost on restart")
	default:
		db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return err
		}
		defer db.Close()
		users, tasks, store = repository.NewUserRepo(db), repository.NewTaskRepo(db), db
		log.Info("store.mysql", "host", cfg.DBHost, "db", cfg.DBName)
	}

	tokens, err := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return err
	}
	hasher := utils.NewPasswordHasher(cfg.BcryptCost)

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis.unavailable", "err", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)

	instanceID := realtime.NewRandomHex(6)
	hub := realtime.NewHub(log)
	opts := []realtime.Option{realtime.WithHook(cache.OnBroadcast)}
	if cfg.Broker.URL != "" {
		opts = append(opts, realtime.WithRelay(queue.NewPublisher(cfg.Broker.URL, cfg.Broker.Exchange, instanceID)))
	}
	broadcaster := realtime.NewBroadcaster(hub, log, opts...)
	defer broadcaster.Close()

	if cfg.Broker.URL != "" {
		consumer := queue.NewConsumer(cfg.Broker.URL, cfg.Broker.Exchange, instanceID, broadcaster, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("relay.stopped", "err", err)
			}
		}()
		log.Info("relay.enabled", "exchange", cfg.Broker.Exchange, "instance", instanceID)
	}

	sessions := service.NewSessionService(users, hasher, tokens, broadcaster, log)
	taskSvc := service.NewTaskService(tasks, users, broadcaster, log)
	userSvc := service.NewUserService(users, hasher, broadcaster, log)

	e := router.New(router.Deps{
		Auth:        handler.NewAuthHandler(sessions, log),
		Tasks:       handler.NewTaskHandler(taskSvc, log),
		Users:       handler.NewUserHandler(userSvc, log),
		Verifier:    tokens,
		Gateway:     realtime.NewGateway(log, hub, cfg.WS),
		Store:       store,
		RateLimit:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Cache:       cache.Middleware(),
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("server.listening", "addr", addr, "env", cfg.Env, "store", cfg.Store)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
