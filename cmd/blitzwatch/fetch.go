package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"blitzwatch/internal/plays"
	"blitzwatch/internal/storage"
)

var fetchLimit int

func init() {
	fetchHistoryCmd.Flags().IntVarP(&fetchLimit, "limit", "n", 10, "Number of fetches to show, 0 for all")
	fetchCmd.AddCommand(fetchHistoryCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download play-by-play seasons and cache their pass plays",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fetcher := plays.NewFetcher(settings.SourceURL, settings.RESTTimeout)
		ds, err := fetcher.FetchSeasons(ctx, settings.Seasons)
		if err != nil {
			return err
		}
		if err := plays.SaveCSV(settings.DataPath, ds); err != nil {
			return err
		}

		log.Info().
			Ints("seasons", settings.Seasons).
			Int("plays", ds.Len()).
			Bool("pressure", ds.HasPressure).
			Str("path", settings.DataPath).
			Msg("Pass plays cached")

		if store := openRegistry(settings.RegistryPath); store != nil {
			defer store.Close()
			err := store.StoreFetch(storage.FetchRecord{
				Seasons:     settings.Seasons,
				SourceURL:   settings.SourceURL,
				Path:        settings.DataPath,
				Rows:        ds.Len(),
				HasPressure: ds.HasPressure,
				FetchedAt:   time.Now(),
			})
			if err != nil {
				log.Warn().Err(err).Msg("Failed to record fetch")
			}
		}
		return nil
	},
}

var fetchHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded play-by-play downloads, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(store *storage.Store) error {
			recs, err := store.ListFetches(fetchLimit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No fetches recorded. Run `blitzwatch fetch` first.")
				return nil
			}
			return printFetches(cmd.OutOrStdout(), recs)
		})
	},
}

func printFetches(out io.Writer, recs []storage.FetchRecord) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FETCHED\tSEASONS\tPLAYS\tPRESSURE\tPATH")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%v\t%d\t%t\t%s\n",
			r.FetchedAt.Format("2006-01-02 15:04"), r.Seasons, r.Rows, r.HasPressure, r.Path)
	}
	return tw.Flush()
}
