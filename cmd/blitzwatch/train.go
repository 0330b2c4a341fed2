package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"blitzwatch/internal/metrics"
	"blitzwatch/internal/ml"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train, evaluate, save and register the blitz model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		opts := ml.TrainOptions{
			DataPath:          settings.DataPath,
			Config:            trainConfig(settings),
			Metrics:           metrics.NewWrapper(metrics.New()),
			ImportanceSamples: settings.SHAPSampleSize,
		}
		if store := openRegistry(settings.RegistryPath); store != nil {
			defer store.Close()
			opts.Registry = store
		}

		run, err := ml.TrainAndEvaluate(ctx, opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Rows used: %d (dropped %d with undefined features)\n\n", run.Rows, run.Dropped)
		fmt.Fprintln(out, run.Evaluation.Report())
		if run.Importance != nil {
			fmt.Fprintf(out, "\nTop features: %v\n", run.Importance.GetTopFeatures(5))
		}
		fmt.Fprintf(out, "\nModel saved to %s\n", settings.ModelPath)
		if run.Version != nil {
			fmt.Fprintf(out, "Registered as version %s (active) at %s\n", run.Version.Version, run.Version.Path)
		}
		return nil
	},
}
