package insights

import (
	"bytes"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blitzwatch/internal/features"
	"blitzwatch/internal/ml"
	"blitzwatch/internal/plays"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

type fakeMetrics struct {
	renders map[string]int
	hits    int
}

func (f *fakeMetrics) InsightRenderObserve(kind string, seconds float64) {
	if f.renders == nil {
		f.renders = make(map[string]int)
	}
	f.renders[kind]++
}

func (f *fakeMetrics) InsightCacheHitInc() {
	f.hits++
}

// syntheticDataset builds pass plays whose blitz rate rises with down and
// shotgun.
func syntheticDataset(n int, seed int64) plays.Dataset {
	rng := rand.New(rand.NewSource(seed))
	locations := []string{"left", "middle", "right"}
	lengths := []string{"short", "deep", ""}

	ds := plays.Dataset{}
	for i := 0; i < n; i++ {
		down := 1 + rng.Intn(4)
		shotgun := rng.Intn(2)
		qbHit := 0.0
		if rng.Float64() < 0.1+0.15*float64(down-1)+0.2*float64(shotgun) {
			qbHit = 1
		}
		ds.Records = append(ds.Records, plays.Record{
			GameID:               "2023_01_AAA_BBB",
			Down:                 float64(down),
			YdsToGo:              float64(1 + rng.Intn(15)),
			YardLine100:          float64(1 + rng.Intn(99)),
			Qtr:                  float64(1 + rng.Intn(4)),
			GameSecondsRemaining: float64(rng.Intn(3600)),
			PosteamScore:         float64(rng.Intn(35)),
			DefteamScore:         float64(rng.Intn(35)),
			PassLocation:         locations[rng.Intn(3)],
			PassLength:           lengths[rng.Intn(3)],
			Shotgun:              float64(shotgun),
			NoHuddle:             float64(rng.Intn(2)),
			QBHit:                qbHit,
			Pressure:             math.NaN(),
		})
	}
	return ds
}

func trainConfig() ml.TrainConfig {
	cfg := ml.DefaultTrainConfig()
	cfg.Params.NEstimators = 10
	cfg.Params.MaxDepth = 3
	cfg.Params.MinChildSamples = 10
	return cfg
}

func testHoldout(t *testing.T) Holdout {
	t.Helper()
	X, y := features.Engineer(features.Label(syntheticDataset(400, 3)))
	rows := features.Rows(X)
	cfg := trainConfig()
	model, _, err := ml.Train(rows, y, cfg)
	require.NoError(t, err)
	Xte, yte, err := ml.HoldoutSet(rows, y, cfg.TestSize, cfg.Seed)
	require.NoError(t, err)
	return Holdout{Model: model, X: Xte, Y: yte}
}

func smallRenderer() *Renderer {
	r := NewRenderer()
	r.Width, r.Height = r.Width/2, r.Height/2
	return r
}

func TestRenderer_FeatureImportance(t *testing.T) {
	img, err := smallRenderer().FeatureImportance([]string{"down", "ydstogo", "shotgun"}, []float64{3, 10, 1}, "split")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	_, err = smallRenderer().FeatureImportance([]string{"down"}, []float64{1, 2}, "split")
	assert.Error(t, err)

	_, err = smallRenderer().FeatureImportance(nil, nil, "split")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRenderer_SHAPSummary(t *testing.T) {
	names := []string{"down", "shotgun"}
	shap := [][]float64{{0.4, -0.1}, {-0.2, 0.3}, {0.1, 0}}
	X := [][]float64{{3, 1}, {1, 0}, {2, math.NaN()}}

	img, err := smallRenderer().SHAPSummary(names, shap, X)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	again, err := smallRenderer().SHAPSummary(names, shap, X)
	require.NoError(t, err)
	assert.Equal(t, img, again, "jitter is seeded")

	_, err = smallRenderer().SHAPSummary(names, shap, X[:2])
	assert.Error(t, err)
	_, err = smallRenderer().SHAPSummary(names, [][]float64{{1}}, [][]float64{{1}})
	assert.Error(t, err)
	_, err = smallRenderer().SHAPSummary(names, nil, nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRenderer_ConfusionMatrix(t *testing.T) {
	img, err := smallRenderer().ConfusionMatrix([2][2]int{{50, 10}, {7, 13}}, [2]string{"No Blitz", "Blitz"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	// An all-zero matrix still has a usable colour range.
	_, err = smallRenderer().ConfusionMatrix([2][2]int{}, [2]string{"No Blitz", "Blitz"})
	assert.NoError(t, err)
}

func TestValueColor(t *testing.T) {
	assert.Equal(t, lowColor, valueColor(0, 0, 10))
	assert.Equal(t, highColor, valueColor(10, 0, 10))
	assert.Equal(t, nanColor, valueColor(math.NaN(), 0, 10))
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("roc_curve")
	assert.Error(t, err)
}

func TestService_RenderCaches(t *testing.T) {
	m := &fakeMetrics{}
	svc := NewService(testHoldout(t), Config{Threshold: 0.5, SHAPSamples: 40, Seed: 42}, smallRenderer(), m)

	for _, kind := range Kinds {
		img, err := svc.Render(kind)
		require.NoError(t, err, kind)
		assert.True(t, bytes.HasPrefix(img, pngMagic), kind)
	}
	assert.Equal(t, 1, m.renders[string(KindSHAPSummary)])
	assert.Equal(t, 0, m.hits)

	first, err := svc.Render(KindConfusionMatrix)
	require.NoError(t, err)
	second, err := svc.Render(KindConfusionMatrix)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.renders[string(KindConfusionMatrix)])
	assert.Equal(t, 2, m.hits)

	_, err = svc.Render(Kind("calibration"))
	assert.Error(t, err)
}

func TestService_EmptyHoldout(t *testing.T) {
	h := testHoldout(t)
	h.X, h.Y = nil, nil
	svc := NewService(h, Config{Threshold: 0.5}, smallRenderer(), nil)

	_, err := svc.Render(KindConfusionMatrix)
	assert.ErrorIs(t, err, ErrNoData)

	// Importance comes from the model alone.
	_, err = svc.Render(KindFeatureImportance)
	assert.NoError(t, err)
}

func TestService_WriteAll(t *testing.T) {
	svc := NewService(testHoldout(t), Config{Threshold: 0.5, SHAPSamples: 20, Seed: 1}, smallRenderer(), nil)
	dir := filepath.Join(t.TempDir(), "plots")

	paths, err := svc.WriteAll(dir)
	require.NoError(t, err)
	require.Len(t, paths, len(Kinds))
	for i, kind := range Kinds {
		assert.Equal(t, filepath.Join(dir, string(kind)+".png"), paths[i])
		data, err := os.ReadFile(paths[i])
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic))
	}
}

func TestLoadHoldout(t *testing.T) {
	ds := syntheticDataset(300, 9)
	path := filepath.Join(t.TempDir(), "raw_pass_plays.csv")
	require.NoError(t, plays.SaveCSV(path, ds))

	X, y := features.Engineer(features.Label(ds))
	cfg := trainConfig()
	model, eval, err := ml.Train(features.Rows(X), y, cfg)
	require.NoError(t, err)

	h, err := LoadHoldout(model, path, cfg.TestSize, cfg.Seed)
	require.NoError(t, err)
	assert.Len(t, h.X, eval.Samples)

	again := ml.Evaluate(h.Y, model.PredictProbaBatch(h.X), cfg.Threshold)
	assert.Equal(t, eval.Confusion, again.Confusion, "holdout must match the training evaluation split")

	_, err = LoadHoldout(model, filepath.Join(t.TempDir(), "missing.csv"), 0.2, 42)
	assert.Error(t, err)
}
