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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"blitzwatch/internal/insights"
	"blitzwatch/internal/metrics"
	"blitzwatch/internal/ml"
	"blitzwatch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions and insight plots over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath, version := settings.ModelPath, ""
		if store := openExistingRegistry(settings.RegistryPath); store != nil {
			modelPath, version = activeModelPath(store, settings.ModelPath)
			store.Close()
		}

		mw := metrics.NewWrapper(metrics.New())
		predictor, err := ml.OpenPredictor(modelPath, mw)
		if err != nil {
			return fmt.Errorf("cannot start server: %w", err)
		}

		var renderer server.InsightRenderer
		holdout, err := insights.LoadHoldout(predictor.Model(), settings.DataPath, settings.TestSize, settings.Seed)
		if err != nil {
			log.Warn().Err(err).Str("data_path", settings.DataPath).Msg("Insight plots disabled")
		} else {
			renderer = insights.NewService(holdout, insightsConfig(), insights.NewRenderer(), mw)
		}

		ms := server.NewModelServer(predictor, renderer, server.Options{
			Port:         settings.ServerPort,
			Threshold:    settings.ProbThreshold,
			CORSOrigins:  settings.CORSOrigins,
			ModelVersion: version,
			Metrics:      mw,
		})

		errCh := make(chan error, 1)
		go func() {
			if err := ms.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigChan:
			log.Info().Msg("Shutdown signal received")
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ms.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Shutdown timeout, forcing exit")
		}
		return nil
	},
}

func insightsConfig() insights.Config {
	return insights.Config{
		Threshold:   settings.EvalThreshold,
		SHAPSamples: settings.SHAPSampleSize,
		Seed:        settings.Seed,
		CacheTTL:    settings.InsightsCacheTTL,
	}
}
