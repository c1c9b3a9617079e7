package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/vitalis-health/obesity-risk/pkg/batch"
	"github.com/vitalis-health/obesity-risk/pkg/common/config"
	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/serving/artifacts"
	"github.com/vitalis-health/obesity-risk/pkg/serving/predictor"
)

func main() {
	logger.Init()
	cfg := config.Load()

	input := flag.String("input", "", "spreadsheet with one observation per row")
	sheet := flag.String("sheet", "", "sheet to read (defaults to the first sheet)")
	output := flag.String("output", "predictions.xlsx", "where to write the annotated spreadsheet")
	artifactDir := flag.String("artifacts", cfg.ArtifactDir, "directory holding the exported model artifacts")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	loader := artifacts.NewLoader(*artifactDir, artifacts.Files{
		Model:   cfg.ModelFile,
		Encoder: cfg.EncoderFile,
		Scaler:  cfg.ScalerFile,
	})
	if _, err := loader.Load(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to load model artifacts")
	}

	rows, err := batch.ReadObservations(*input, *sheet)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to read observations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, summary, err := batch.Score(ctx, predictor.NewPredictor(loader), rows)
	if err != nil {
		logger.Log.WithError(err).Error("Scoring interrupted")
	}
	if err := batch.WriteResults(*output, results); err != nil {
		logger.Log.WithError(err).Fatal("Failed to write results")
	}

	fields := map[string]interface{}{
		"total":  summary.Total,
		"scored": summary.Scored,
		"failed": summary.Failed,
		"output": *output,
	}
	if summary.WithTarget > 0 {
		fields["accuracy"] = summary.Accuracy
		fields["with_target"] = summary.WithTarget
	}
	logger.Log.WithFields(fields).Info("Batch scoring finished")
}
