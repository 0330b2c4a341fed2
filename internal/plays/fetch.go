package plays

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Fetcher downloads season play-by-play files from an nflverse-style
// release: one gzipped CSV per season named play_by_play_<season>.csv.gz.
type Fetcher struct {
	base string
	rest *resty.Client
}

func NewFetcher(base string, timeout time.Duration) *Fetcher {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(2 * time.Minute)
	}
	r.SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		SetHeader("Accept", "application/octet-stream")
	return &Fetcher{base: strings.TrimRight(base, "/"), rest: r}
}

// SeasonURL returns the download URL for one season.
func (f *Fetcher) SeasonURL(season int) string {
	return fmt.Sprintf("%s/play_by_play_%d.csv.gz", f.base, season)
}

// FetchSeasons downloads every season, keeps pass plays only and merges the
// result. Pressure is reported as present only when every season has it, so
// the merged dataset never mixes real and absent pressure values.
func (f *Fetcher) FetchSeasons(ctx context.Context, seasons []int) (Dataset, error) {
	var merged Dataset
	merged.HasPressure = true

	for _, season := range seasons {
		ds, err := f.FetchSeason(ctx, season)
		if err != nil {
			return Dataset{}, err
		}
		if !ds.HasPressure {
			merged.HasPressure = false
		}
		merged.Records = append(merged.Records, ds.Records...)
	}

	if !merged.HasPressure {
		for i := range merged.Records {
			merged.Records[i].Pressure = newRecord().Pressure
		}
	}

	log.Info().
		Ints("seasons", seasons).
		Int("rows", merged.Len()).
		Bool("has_pressure", merged.HasPressure).
		Msg("Fetched pass plays")

	return merged, nil
}

// FetchSeason downloads and parses a single season.
func (f *Fetcher) FetchSeason(ctx context.Context, season int) (Dataset, error) {
	url := f.SeasonURL(season)
	start := time.Now()

	resp, err := f.rest.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return Dataset{}, fmt.Errorf("fetch season %d: %w", season, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != 200 {
		return Dataset{}, fmt.Errorf("fetch season %d: unexpected status %s", season, resp.Status())
	}

	var r io.Reader = body
	if strings.HasSuffix(url, ".gz") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return Dataset{}, fmt.Errorf("season %d: open gzip stream: %w", season, err)
		}
		defer gz.Close()
		r = gz
	}

	ds, err := ReadCSV(r, true)
	if err != nil {
		return Dataset{}, fmt.Errorf("season %d: %w", season, err)
	}

	log.Debug().
		Int("season", season).
		Int("pass_plays", ds.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Season downloaded")

	return ds, nil
}
