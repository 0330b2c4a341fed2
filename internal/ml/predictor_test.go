package ml

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blitzwatch/internal/common"
	"blitzwatch/internal/features"
)

func examplePlay() features.Play {
	return features.Play{
		Down:                 3,
		YdsToGo:              7,
		YardLine100:          40,
		Qtr:                  2,
		GameSecondsRemaining: features.GameSecondsRemaining(1, 30),
		PosteamScore:         14,
		DefteamScore:         17,
		PassLocation:         "right",
		PassLength:           "deep",
		Shotgun:              true,
		NoHuddle:             false,
	}
}

func savedModel(t *testing.T) string {
	t.Helper()
	m, _, _ := fitSynthetic(t)
	path := filepath.Join(t.TempDir(), "gbdt_blitz.json")
	require.NoError(t, m.Save(path))
	return path
}

func TestPredictor_Predict(t *testing.T) {
	metrics := &MockMetrics{}
	p, err := OpenPredictor(savedModel(t), metrics)
	require.NoError(t, err)

	proba, err := p.Predict(examplePlay())
	require.NoError(t, err)
	assert.True(t, proba >= 0 && proba <= 1, "probability %v out of range", proba)

	again, err := p.Predict(examplePlay())
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(proba), math.Float64bits(again), "identical input must give bit-identical output")

	assert.Equal(t, Recommend(proba, 0.5), Recommend(again, 0.5))

	predictions, invalid := metrics.Counts()
	assert.Equal(t, 2, predictions)
	assert.Equal(t, 0, invalid)
	assert.Len(t, metrics.predictionScores, 2)
}

func TestPredictor_MatchesEncodedVector(t *testing.T) {
	p, err := OpenPredictor(savedModel(t), nil)
	require.NoError(t, err)

	proba, err := p.Predict(examplePlay())
	require.NoError(t, err)

	v := features.Vector{3, 7, 40, 2, 90, -3, 2, 1, 1, 0}
	assert.InDelta(t, p.Model().PredictProba(v[:]), proba, 1e-9)
}

func TestPredictor_InvalidInput(t *testing.T) {
	metrics := &MockMetrics{}
	p, err := OpenPredictor(savedModel(t), metrics)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*features.Play)
		field  string
	}{
		{"down too high", func(pl *features.Play) { pl.Down = 5 }, "down"},
		{"zero distance", func(pl *features.Play) { pl.YdsToGo = 0 }, "ydstogo"},
		{"missing location", func(pl *features.Play) { pl.PassLocation = "" }, "pass_location"},
		{"unknown location", func(pl *features.Play) { pl.PassLocation = "unknown" }, "pass_location"},
		{"unknown length", func(pl *features.Play) { pl.PassLength = "medium" }, "pass_length"},
		{"negative score", func(pl *features.Play) { pl.DefteamScore = -1 }, "defteam_score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			play := examplePlay()
			tt.mutate(&play)

			_, err := p.Predict(play)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}

	_, invalid := metrics.Counts()
	assert.Equal(t, len(tests), invalid)
}

func TestPredictor_OptionalPassLength(t *testing.T) {
	p, err := OpenPredictor(savedModel(t), nil)
	require.NoError(t, err)

	for _, length := range []string{"", "none"} {
		play := examplePlay()
		play.PassLength = length
		_, err := p.Predict(play)
		assert.NoError(t, err, "pass_length %q", length)
	}
}

func TestPredictor_UnknownLocationVectorDoesNotPanic(t *testing.T) {
	p, err := OpenPredictor(savedModel(t), nil)
	require.NoError(t, err)

	play := examplePlay()
	play.PassLocation = "unknown"
	v := features.EngineerSingle(play)
	require.True(t, math.IsNaN(v[features.IdxPassLocation]))

	proba, err := p.PredictVector(v)
	require.NoError(t, err)
	assert.True(t, proba >= 0 && proba <= 1)
}

func TestOpenPredictor_MissingModel(t *testing.T) {
	_, err := OpenPredictor(filepath.Join(t.TempDir(), "nope.json"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotFound))
}

func TestOpenPredictor_MissingBooster(t *testing.T) {
	path := savedModel(t)
	require.NoError(t, os.Remove(BoosterPath(path)))

	_, err := OpenPredictor(path, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotFound))
}

func TestNewPredictor_WalksTrees(t *testing.T) {
	m, _, _ := fitSynthetic(t)
	p := NewPredictor(m, nil)

	v := features.Vector{3, 7, 40, 2, 90, -3, 2, 1, 1, 0}
	proba, err := p.PredictVector(v)
	require.NoError(t, err)
	assert.Equal(t, m.PredictProba(v[:]), proba)
	assert.False(t, p.LoadedAt().IsZero())
}

func TestOpenPredictor_WrongWidth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narrow.json")
	require.NoError(t, handModel().Save(path))

	_, err := OpenPredictor(path, nil)
	assert.Error(t, err)
}

func TestRecommend(t *testing.T) {
	assert.Equal(t, common.RecommendBlitz, Recommend(0.51, 0.5))
	assert.Equal(t, common.RecommendNoBlitz, Recommend(0.5, 0.5))
	assert.Equal(t, common.RecommendNoBlitz, Recommend(0.1, 0.5))
}

func TestNewPredictor_SetsModelAge(t *testing.T) {
	m, _, _ := fitSynthetic(t)
	metrics := &MockMetrics{}
	NewPredictor(m, metrics)
	assert.GreaterOrEqual(t, metrics.modelAge, 0.0)
}
