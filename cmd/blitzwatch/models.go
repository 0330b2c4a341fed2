package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"blitzwatch/internal/storage"
)

func init() {
	modelsCmd.AddCommand(modelsListCmd, modelsActivateCmd, modelsRollbackCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage registered model versions",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List model versions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(store *storage.Store) error {
			versions, err := store.ListVersions()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if fetch, err := store.LatestFetch(); err == nil {
				fmt.Fprintf(out, "Training data: %d plays from seasons %v, fetched %s\n\n",
					fetch.Rows, fetch.Seasons, fetch.FetchedAt.Format("2006-01-02 15:04"))
			} else if !errors.Is(err, storage.ErrNoFetches) {
				return err
			}
			if len(versions) == 0 {
				fmt.Fprintln(out, "No model versions registered. Run `blitzwatch train` first.")
				return nil
			}
			return printVersions(out, versions)
		})
	},
}

var modelsActivateCmd = &cobra.Command{
	Use:   "activate <version>",
	Short: "Make a version the one served and used for prediction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(store *storage.Store) error {
			v, err := store.ActivateVersion(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activated %s (%s)\n", v.Version, v.Path)
			return nil
		})
	},
}

var modelsRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Activate the version registered before the active one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(store *storage.Store) error {
			v, err := store.Rollback()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back to %s (%s)\n", v.Version, v.Path)
			return nil
		})
	},
}

func withRegistry(fn func(*storage.Store) error) error {
	if _, err := os.Stat(settings.RegistryPath); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("no model registry at %s: run `blitzwatch train` first", settings.RegistryPath)
	}
	store, err := storage.New(settings.RegistryPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printVersions(out io.Writer, versions []storage.ModelVersion) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTIVE\tVERSION\tCREATED\tAUC\tACCURACY\tF1\tPATH")
	for _, v := range versions {
		mark := ""
		if v.IsActive {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\t%.4f\t%s\n",
			mark, v.Version, v.CreatedAt.Format("2006-01-02 15:04"),
			v.Metrics.AUCScore, v.Metrics.Accuracy, v.Metrics.F1Score, v.Path)
	}
	return tw.Flush()
}
