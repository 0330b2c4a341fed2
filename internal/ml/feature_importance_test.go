package ml

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blitzwatch/internal/features"
)

func TestModel_FeatureImportance(t *testing.T) {
	m := handModel()
	m.Trees[0].Nodes[0].Gain = 2.5
	m.Trees[0].Nodes[2].Gain = 1.5

	assert.Equal(t, []float64{1, 1}, m.FeatureImportance(ImportanceSplit))
	assert.Equal(t, []float64{2.5, 1.5}, m.FeatureImportance(ImportanceGain))
}

func TestParseImportanceType(t *testing.T) {
	kind, err := ParseImportanceType("gain")
	require.NoError(t, err)
	assert.Equal(t, ImportanceGain, kind)
	assert.Equal(t, "gain", kind.String())

	kind, err = ParseImportanceType("")
	require.NoError(t, err)
	assert.Equal(t, ImportanceSplit, kind)

	_, err = ParseImportanceType("cover")
	assert.Error(t, err)
}

func TestComputeImportance(t *testing.T) {
	m, X, y := fitSynthetic(t)

	r, err := ComputeImportance(m, X[:200], y[:200], 0.5, 42)
	require.NoError(t, err)
	require.Len(t, r.Features, features.NumFeatures)
	assert.Equal(t, 200, r.Samples)
	assert.Greater(t, r.BaselineScore, 0.5)

	// Down, distance and shotgun drive the synthetic blitz rate.
	top := r.GetTopFeatures(3)
	assert.Len(t, top, 3)
	assert.Contains(t, top, "down")

	down := r.Features[features.IdxDown]
	assert.Greater(t, down.MeanAbsSHAP, 0.0)
	assert.Greater(t, down.SplitCount, 0.0)

	again, err := ComputeImportance(m, X[:200], y[:200], 0.5, 42)
	require.NoError(t, err)
	assert.Equal(t, r.Features, again.Features, "seeded permutation must be reproducible")
}

func TestComputeImportance_ModelOnly(t *testing.T) {
	m, _, _ := fitSynthetic(t)

	r, err := ComputeImportance(m, nil, nil, 0.5, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Samples)
	for _, f := range r.Features {
		assert.Equal(t, 0.0, f.MeanAbsSHAP)
	}
}

func TestImportanceReport_SaveLoad(t *testing.T) {
	m, X, y := fitSynthetic(t)
	r, err := ComputeImportance(m, X[:50], y[:50], 0.5, 1)
	require.NoError(t, err)

	path := ImportancePath(filepath.Join(t.TempDir(), "models", "gbdt_blitz.json"))
	assert.Equal(t, "gbdt_blitz.importance.json", filepath.Base(path))

	require.NoError(t, r.Save(path))
	loaded, err := LoadImportanceReport(path)
	require.NoError(t, err)
	assert.Equal(t, r.Features, loaded.Features)
}
