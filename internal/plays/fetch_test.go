package plays

import (
	"compress/gzip"
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipHandler(t *testing.T, files map[string]string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(body))
		_ = gz.Close()
	})
}

func TestFetcher_FetchSeasons(t *testing.T) {
	srv := httptest.NewServer(gzipHandler(t, map[string]string{
		"/pbp/play_by_play_2021.csv.gz": sampleHeader + "\n" +
			"g1,1,pass,A,B,1,1,10,75,3540,0,0,left,short,1,0,1\n" +
			"g1,2,run,A,B,1,2,5,70,3500,0,0,,,0,0,0\n",
		"/pbp/play_by_play_2022.csv.gz": sampleHeader + ",pressure\n" +
			"g2,1,pass,C,D,2,3,7,40,2790,14,17,right,deep,1,0,0,1\n",
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL+"/pbp/", 5*time.Second)
	assert.Equal(t, srv.URL+"/pbp/play_by_play_2021.csv.gz", f.SeasonURL(2021))

	ds, err := f.FetchSeasons(context.Background(), []int{2021, 2022})
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	// 2021 has no pressure column, so the merged dataset drops it entirely.
	assert.False(t, ds.HasPressure)
	for _, r := range ds.Records {
		assert.True(t, math.IsNaN(r.Pressure))
	}
	assert.Equal(t, "g2", ds.Records[1].GameID)
}

func TestFetcher_KeepsPressureWhenEverySeasonHasIt(t *testing.T) {
	srv := httptest.NewServer(gzipHandler(t, map[string]string{
		"/play_by_play_2022.csv.gz": sampleHeader + ",pressure\n" +
			"g2,1,pass,C,D,2,3,7,40,2790,14,17,right,deep,1,0,0,1\n",
	}))
	defer srv.Close()

	ds, err := NewFetcher(srv.URL, time.Second).FetchSeasons(context.Background(), []int{2022})
	require.NoError(t, err)
	assert.True(t, ds.HasPressure)
	assert.Equal(t, 1.0, ds.Records[0].Pressure)
}

func TestFetcher_NotFound(t *testing.T) {
	srv := httptest.NewServer(gzipHandler(t, map[string]string{}))
	defer srv.Close()

	f := NewFetcher(srv.URL, time.Second)
	_, err := f.FetchSeason(context.Background(), 1998)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
