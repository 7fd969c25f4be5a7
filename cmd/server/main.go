package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"uitforum/internal/config"
	"uitforum/internal/db"
	"uitforum/internal/docstore"
	"uitforum/internal/functions"
	"uitforum/internal/handlers"
	"uitforum/internal/router"
	"uitforum/internal/services"
	"uitforum/internal/triggers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 文档存储
	var (
		store  docstore.Store
		health router.Pinger
	)
	switch cfg.StoreBackend {
	case config.StoreMemory:
		logger.Warn("using in-memory document store, data is lost on restart")
		store = docstore.NewMemoryStore()
	default:
		conn, err := db.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		gs := docstore.NewGormStore(conn)
		store, health = gs, gs
	}

	// 触发器调度
	registry := triggers.NewRegistry()
	dispatcher := triggers.NewDispatcher(registry, logger, triggers.Options{
		Workers:   cfg.TriggerWorkers,
		QueueSize: cfg.TriggerQueueSize,
		Timeout:   cfg.FunctionTimeout,
		Retries:   uint64(cfg.TriggerRetries),
	})
	observed := docstore.NewObserved(store, dispatcher)

	var pusher services.Pusher
	if cfg.FirebaseCredentials != "" {
		fcm, err := services.NewFCMPusher(ctx, cfg.FirebaseCredentials, cfg.FirebaseProjectID)
		if err != nil {
			logger.WithError(err).Fatal("Failed to init push transport")
		}
		pusher = fcm
	} else {
		logger.Warn("FIREBASE_CREDENTIALS_FILE not set, push messages are only logged")
		pusher = services.NewLogPusher(logger)
	}

	counters := services.NewCounterService(observed, logger)
	notifications, err := services.NewNotificationService(observed, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to init notification service")
	}
	communities := services.NewCommunityService(observed, counters, logger, cfg.DefaultCommunityID)

	functions.Register(registry, functions.Services{
		Cascade:       services.NewCascadeService(observed, logger),
		Counters:      counters,
		Notifications: notifications,
		Push:          services.NewPushService(pusher, logger),
		Profile:       services.NewProfileService(observed, logger),
		Timestamps:    services.NewTimestampService(observed, logger),
		Communities:   communities,
	}, logger)
	dispatcher.Start()
	logger.WithField("functions", len(registry.Names())).Info("triggers registered")

	// HTTP
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	router.RegisterRoutes(r, handlers.NewHandler(handlers.Deps{
		Store:         observed,
		Communities:   communities,
		Notifications: notifications,
		Logger:        logger,
	}), router.Options{
		JWTSecret:   []byte(cfg.JWTSecret),
		CORSOrigins: cfg.CORSOrigins,
		Health:      health,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("trigger dispatcher did not drain")
	}
	logger.Info("bye")
}
