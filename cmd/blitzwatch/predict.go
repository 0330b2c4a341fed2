package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blitzwatch/internal/ml"
	"blitzwatch/internal/prompt"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Interactively describe a pre-snap situation and predict a blitz",
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath := settings.ModelPath
		if store := openExistingRegistry(settings.RegistryPath); store != nil {
			modelPath, _ = activeModelPath(store, settings.ModelPath)
			store.Close()
		}

		predictor, err := ml.OpenPredictor(modelPath, nil)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "\n=== BlitzWatch: Manual Pre-Snap Predictor ===")
		fmt.Fprintln(out)

		p := prompt.New(cmd.InOrStdin(), out)
		play, err := p.CollectPlay()
		if err != nil {
			return err
		}

		proba, err := predictor.Predict(play)
		if err != nil {
			return err
		}
		p.PrintResult(proba, settings.ProbThreshold)
		return nil
	},
}
