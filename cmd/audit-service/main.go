package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/vitalis-health/obesity-risk/pkg/common/config"
	"github.com/vitalis-health/obesity-risk/pkg/common/database"
	"github.com/vitalis-health/obesity-risk/pkg/common/kafka"
	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/serving"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.ClosePostgres()

	repo := serving.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate prediction logs")
	}

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.PredictionTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"topic":    cfg.PredictionTopic,
			"group_id": cfg.KafkaGroupID,
		}).Info("Audit Service started")
		done <- consumer.Consume(ctx, serving.AuditHandler(repo))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Log.Info("Shutting down Audit Service...")
		cancel()
		<-done
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("Consumer stopped")
		}
	}

	logger.Log.Info("Audit Service stopped")
}
