package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "transitbook/internal/config"
	"transitbook/internal/domain"
	"transitbook/internal/events"
	router "transitbook/internal/http"
	"transitbook/internal/http/handlers"
	"transitbook/internal/repositories"
	"transitbook/internal/services"
	"transitbook/internal/store"
	"transitbook/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	env := intconfig.LoadEnv()
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	logger, err := utils.InitLogger(env.LogLevel, gin.Mode() == gin.DebugMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	bus, closeBus := buildBus(env)
	defer closeBus()

	storeOpts := []store.Option{
		store.WithDefaultPoints(env.DefaultLoyaltyPoints),
		store.WithSeedHook(func(owner domain.OwnerKey) {
			utils.LogEvent("", "store", "seed", "owner="+string(owner))
		}),
	}

	var eventLog *repositories.EventLogRepository
	if env.DBDSN != "" {
		db, err := intconfig.ConnectDB(env.DBDSN)
		if err != nil {
			logger.Fatal("connect event log db", zap.Error(err))
		}
		defer intconfig.CloseDB()

		eventLog = &repositories.EventLogRepository{DB: db}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = eventLog.EnsureTable(ctx)
		cancel()
		if err != nil {
			logger.Fatal("create event log table", zap.Error(err))
		}

		bus = services.NewEventRecorder(bus, eventLog)
	}

	st := store.New(bus, storeOpts...)

	r := router.NewRouter(env, &handlers.Handler{
		Store:          st,
		Bus:            st.Bus(),
		EventLog:       eventLog,
		AllowedOrigins: env.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", env.AppAddr), zap.String("bus", env.BusBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}

func buildBus(env intconfig.Env) (events.Bus, func()) {
	if env.BusBackend != intconfig.BusRedis {
		return events.NewLocalBus(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rb, err := events.NewRedisBus(ctx, env.RedisAddr, env.RedisPassword, env.RedisDB)
	if err != nil {
		utils.Logger().Fatal("connect redis bus", zap.Error(err))
	}
	return rb, func() { _ = rb.Close() }
}
