package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blitzwatch/internal/insights"
	"blitzwatch/internal/ml"
)

var (
	plotsDir        string
	plotsImportance string
)

func init() {
	plotsCmd.Flags().StringVarP(&plotsDir, "out", "o", "plots", "Directory the PNG files are written to")
	plotsCmd.Flags().StringVar(&plotsImportance, "importance", "split", "Feature importance type: split or gain")
}

var plotsCmd = &cobra.Command{
	Use:   "plots",
	Short: "Write feature importance, SHAP summary and confusion matrix plots",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := ml.ParseImportanceType(plotsImportance)
		if err != nil {
			return err
		}

		modelPath := settings.ModelPath
		if store := openExistingRegistry(settings.RegistryPath); store != nil {
			modelPath, _ = activeModelPath(store, settings.ModelPath)
			store.Close()
		}
		model, err := ml.LoadModel(modelPath)
		if err != nil {
			return err
		}

		holdout, err := insights.LoadHoldout(model, settings.DataPath, settings.TestSize, settings.Seed)
		if err != nil {
			return err
		}

		c := insightsConfig()
		c.ImportanceType = kind
		paths, err := insights.NewService(holdout, c, insights.NewRenderer(), nil).WriteAll(plotsDir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}
