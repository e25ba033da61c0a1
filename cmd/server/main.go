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

	"imobiliaria/server/config"
	"imobiliaria/server/internal/api"
	"imobiliaria/server/internal/cache"
	"imobiliaria/server/internal/database"
	"imobiliaria/server/internal/events"
	"imobiliaria/server/internal/listing"
	"imobiliaria/server/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("Using database at: %s", cfg.Database.Path)
	db, err := database.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}

	logger.Info("Running database migrations...")
	if err := database.MigrateSchema(db); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	opts, err := cfg.ListingOptions()
	if err != nil {
		logger.WithError(err).Fatal("Invalid listing configuration")
	}
	normalizer, err := listing.NewNormalizer(opts)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build listing normalizer")
	}

	store, err := storage.New(ctx, cfg.StorageConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize upload storage")
	}
	defer func() {
		if err := storage.Close(store); err != nil {
			logger.WithError(err).Warn("Failed to close upload storage")
		}
	}()

	var listings api.ListingStore = database.NewListingRepository(db)
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to redis")
		}
		defer client.Close()
		listings = cache.NewListings(listings, client, cfg.Redis.TTL, logger)
		logger.WithField("addr", cfg.Redis.Addr).Info("Listing cache enabled")
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to NATS")
		}
		publisher = natsPublisher
		logger.WithField("url", cfg.NATS.URL).Info("Listing events enabled")
	}
	defer publisher.Close()

	handler := api.NewHandler(api.HandlerConfig{
		Listings:   listings,
		Orphans:    database.NewOrphanRepository(db),
		Storage:    store,
		Normalizer: normalizer,
		Files:      storage.NewFileValidator(cfg.UploadLimits()),
		Events:     publisher,
		Logger:     logger,
	})

	routerCfg := api.RouterConfig{AllowedOrigins: cfg.Server.AllowedOrigins}
	if local, ok := store.(*storage.LocalStorage); ok {
		routerCfg.StaticPath = local.PublicPath()
		routerCfg.StaticDir = local.Dir()
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(handler, routerCfg, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
