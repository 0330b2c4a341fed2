package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"blitzwatch/internal/cfg"
	"blitzwatch/internal/common"
	"blitzwatch/internal/ml"
	"blitzwatch/internal/storage"
)

var (
	configFile string
	logLevel   string
	settings   cfg.Settings
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(fetchCmd, trainCmd, serveCmd, predictCmd, plotsCmd, modelsCmd)
}

var rootCmd = &cobra.Command{
	Use:           "blitzwatch",
	Short:         "Predict defensive blitzes from pre-snap situations",
	Long:          `BlitzWatch trains a gradient-boosted blitz classifier on NFL play-by-play data and serves its predictions and diagnostic plots.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := os.Setenv(common.EnvConfigFile, configFile); err != nil {
				return err
			}
		}
		if logLevel != "" {
			if err := os.Setenv(common.EnvLogLevel, logLevel); err != nil {
				return err
			}
		}

		var err error
		if settings, err = cfg.Load(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return setupLogging(settings.LogLevel)
	},
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("blitzwatch failed")
	}
}

func trainConfig(s cfg.Settings) ml.TrainConfig {
	c := ml.DefaultTrainConfig()
	c.TestSize = s.TestSize
	c.Seed = s.Seed
	c.Threshold = s.EvalThreshold
	c.Params.NEstimators = s.NEstimators
	c.Params.LearningRate = s.LearningRate
	c.Params.MaxDepth = s.MaxDepth
	c.Params.MinChildSamples = s.MinChildSamples
	c.ModelPath = s.ModelPath
	return c
}

// openRegistry opens the model registry, or returns nil with a warning so
// commands keep working without it.
func openRegistry(path string) *storage.Store {
	store, err := storage.New(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Model registry unavailable, continuing without it")
		return nil
	}
	return store
}

// openExistingRegistry opens the registry only if its file is already
// there, so read-only commands never create one.
func openExistingRegistry(path string) *storage.Store {
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("Model registry unavailable, continuing without it")
		}
		return nil
	}
	return openRegistry(path)
}

// activeModelPath prefers the registry's active version over the configured
// path.
func activeModelPath(store *storage.Store, fallback string) (path, version string) {
	if store == nil {
		return fallback, ""
	}
	v, err := store.ActiveVersion()
	if err != nil {
		return fallback, ""
	}
	return v.Path, v.Version
}
