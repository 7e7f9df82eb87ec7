package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/rgf/pkg/errors"
	"github.com/YuminosukeSato/rgf/pkg/log"
	"github.com/YuminosukeSato/rgf/sklearn/rgf"
)

var (
	trainConfigPath string
	trainLogLevel   string
	trainEvalPeriod int
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model described by a YAML config",
		Long: `Trains a boosted ensemble from .npy feature and label files.

Examples:
  rgf train -c config.yaml
  rgf train -c config.yaml --log-level debug --eval-period 10`,
		RunE: runTrain,
	}
	cmd.Flags().StringVarP(&trainConfigPath, "config", "c", "rgf.yaml", "path to the YAML config")
	cmd.Flags().StringVar(&trainLogLevel, "log-level", "", "override log_level from the config")
	cmd.Flags().IntVar(&trainEvalPeriod, "eval-period", 1, "log metrics every N iterations (0 disables)")
	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(trainConfigPath)
	if err != nil {
		return err
	}
	if trainLogLevel != "" {
		cfg.LogLevel = trainLogLevel
	}
	if err := log.SetupLogger(cfg.LogLevel); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("rgf.cli")

	train, err := rgf.LoadNpyDataset("training", cfg.Train.Features, cfg.Train.Labels, cfg.Train.Weights)
	if err != nil {
		return err
	}
	valids := make([]*rgf.Dataset, 0, len(cfg.Valid))
	for i, v := range cfg.Valid {
		d, err := rgf.LoadNpyDataset(fmt.Sprintf("valid_%d", i), v.Features, v.Labels, v.Weights)
		if err != nil {
			return err
		}
		valids = append(valids, d)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	history := map[string][]float64{}
	callbacks := []rgf.Callback{rgf.RecordEvaluation(&history)}
	if trainEvalPeriod > 0 {
		callbacks = append(callbacks, rgf.PrintEvaluation(logger, trainEvalPeriod))
	}

	booster, err := rgf.Train(ctx, cfg.Params, train, valids,
		rgf.WithCallbacks(callbacks...),
		rgf.WithTrainLogger(logger),
		rgf.WithBoosterOptions(rgf.WithObserver(rgf.MultiObserver{
			rgf.NewLogObserver(logger),
			rgf.NewPromObserver(reg, "rgf"),
		})),
	)
	if err != nil {
		if booster == nil || !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Warn("Training interrupted, writing partial model outputs", log.IterationKey, booster.CurrentIteration())
	}

	return writeOutputs(cfg.Output, booster, train, history, reg, logger)
}

func writeOutputs(out OutputConfig, booster *rgf.Booster, train *rgf.Dataset, history map[string][]float64, reg *prometheus.Registry, logger log.Logger) error {
	switch {
	case out.Predictions == "":
	case !booster.IsFitted():
		logger.Warn("No accepted round, skipping predictions", "path", out.Predictions)
	default:
		pred, err := booster.PredictProba(train.X, booster.BestIteration())
		if err != nil {
			return err
		}
		if err := rgf.WriteNpy(out.Predictions, pred); err != nil {
			return err
		}
		logger.Info("Predictions written", "path", out.Predictions)
	}
	if out.LearningCurve != "" && len(history) > 0 {
		if err := rgf.SaveLearningCurve(history, "learning curve", out.LearningCurve); err != nil {
			return err
		}
		logger.Info("Learning curve written", "path", out.LearningCurve)
	}
	if out.Metrics != "" {
		if err := prometheus.WriteToTextfile(out.Metrics, reg); err != nil {
			return errors.Wrapf(err, "writing metrics to %s", out.Metrics)
		}
	}
	return nil
}
