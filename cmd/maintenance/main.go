package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"imobiliaria/server/config"
	"imobiliaria/server/internal/database"
	"imobiliaria/server/internal/processor"
	"imobiliaria/server/internal/queue"
	"imobiliaria/server/internal/storage"
)

const (
	taskBackfill = "backfill-created-at"
	taskSweep    = "sweep-orphans"
)

func main() {
	task := flag.String("task", "", "task to run: "+taskBackfill+" or "+taskSweep)
	flag.Parse()

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

	db, err := database.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	if err := database.MigrateSchema(db); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	switch *task {
	case taskBackfill:
		backfill(ctx, db, logger)
	case taskSweep:
		sweep(ctx, db, cfg, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func backfill(ctx context.Context, db *gorm.DB, logger *logrus.Logger) {
	touched, err := database.NewListingRepository(db).BackfillCreatedAt(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to backfill created_at")
	}
	logger.WithField("updated", touched).Info("Backfilled created_at")
}

func sweep(ctx context.Context, db *gorm.DB, cfg *config.Config, logger *logrus.Logger) {
	store, err := storage.New(ctx, cfg.StorageConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize upload storage")
	}
	defer func() {
		if err := storage.Close(store); err != nil {
			logger.WithError(err).Warn("Failed to close upload storage")
		}
	}()

	orphans := database.NewOrphanRepository(db)
	pending, err := orphans.Count(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to count orphaned photos")
	}
	logger.WithField("pending", pending).Info("Sweeping orphaned photos")

	q := queue.NewOrphanQueue(max(cfg.BatchProcessing.ProcessorCount*2, 1), logger)
	sweeper := processor.NewSweepProcessor(db, store, q, cfg, logger)
	sweeper.Start()
	defer sweeper.Stop()

	stats, err := sweeper.Run(ctx, orphans)
	if err != nil {
		logger.WithError(err).Error("Orphan sweep stopped early")
	}
	logger.WithFields(logrus.Fields{
		"batches": stats.Batches,
		"swept":   stats.Swept,
		"failed":  stats.Failed,
	}).Info("Orphan sweep finished")
}
