package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/vitalis-health/obesity-risk/pkg/common/config"
	"github.com/vitalis-health/obesity-risk/pkg/common/database"
	"github.com/vitalis-health/obesity-risk/pkg/common/kafka"
	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/common/middleware"
	"github.com/vitalis-health/obesity-risk/pkg/serving"
	"github.com/vitalis-health/obesity-risk/pkg/serving/artifacts"
	"github.com/vitalis-health/obesity-risk/pkg/serving/form"
	"github.com/vitalis-health/obesity-risk/pkg/serving/predictor"
	"github.com/vitalis-health/obesity-risk/pkg/storage"
)

func main() {
	logger.Init()
	cfg := config.Load()

	definition, err := form.LoadDefinition(cfg.FormConfigPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load form definition")
	}

	loader := artifacts.NewLoader(cfg.ArtifactDir, artifacts.Files{
		Model:   cfg.ModelFile,
		Encoder: cfg.EncoderFile,
		Scaler:  cfg.ScalerFile,
	})
	if bundle, err := loader.Load(); err != nil {
		// the service still starts; /health reports the failure until the
		// artifacts appear
		logger.Log.WithError(err).Error("Failed to load model artifacts")
	} else {
		logger.Log.WithFields(map[string]interface{}{
			"model_version": bundle.Fingerprint(),
			"columns":       bundle.Schema().Columns,
		}).Info("Model artifacts loaded")
	}

	var opts []predictor.Option
	if cfg.CacheEnabled {
		cache := storage.NewPredictionCache(database.GetRedis(cfg), cfg.CachePrefix, cfg.PredictionCacheTTL)
		opts = append(opts, predictor.WithCache(cache))
		defer database.CloseRedis()
	}
	if cfg.EventsEnabled {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.PredictionTopic, "serving-service")
		opts = append(opts, predictor.WithPublisher(producer))
		defer producer.Close()
	}

	var history serving.HistoryReader
	if cfg.HistoryEnabled {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to database")
		}
		repo := serving.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate prediction logs")
		}
		history = repo
		defer database.ClosePostgres()
	}

	handler := serving.NewHTTPHandler(predictor.NewPredictor(loader, opts...), history, definition)

	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	handler.Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"cache":   cfg.CacheEnabled,
			"events":  cfg.EventsEnabled,
			"history": cfg.HistoryEnabled,
		}).Info("Serving Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Serving Service...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Serving Service stopped")
}
