package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handModel splits on feature 0 at the root and on feature 1 on the right.
func handModel() *Model {
	return &Model{
		FeatureNames: []string{"a", "b"},
		BaseScore:    0.5,
		Trees: []Tree{{Nodes: []Node{
			{Feature: 0, Threshold: 0.5, DefaultLeft: true, Left: 1, Right: 2, Cover: 10},
			{Leaf: true, Value: 1, Cover: 4},
			{Feature: 1, Threshold: 0.5, Left: 3, Right: 4, Cover: 6},
			{Leaf: true, Value: 2, Cover: 3},
			{Leaf: true, Value: -1, Cover: 3},
		}}},
	}
}

func TestSHAP_HandComputed(t *testing.T) {
	m := handModel()

	assert.InDelta(t, 1.2, m.ExpectedValue(), 1e-12)

	e, err := m.SHAP([]float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, e.Values[0], 1e-12)
	assert.InDelta(t, 1.2, e.Values[1], 1e-12)
	assert.InDelta(t, m.RawScore([]float64{1, 0}), e.Expected+e.Values[0]+e.Values[1], 1e-12)
}

func TestSHAP_MissingFollowsDefault(t *testing.T) {
	m := handModel()
	x := []float64{math.NaN(), 0}

	assert.Equal(t, 1.5, m.RawScore(x))

	e, err := m.SHAP(x)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, e.Expected+e.Values[0]+e.Values[1], 1e-12)
}

func TestSHAP_LocalAccuracyOnTrainedModel(t *testing.T) {
	m, X, _ := fitSynthetic(t)

	for i, x := range X[:50] {
		e, err := m.SHAP(x)
		require.NoError(t, err)

		sum := e.Expected
		for _, v := range e.Values {
			sum += v
		}
		assert.InDelta(t, m.RawScore(x), sum, 1e-9, "row %d", i)
	}
}

func TestSHAP_RepeatedFeatureOnPath(t *testing.T) {
	m := &Model{
		FeatureNames: []string{"a", "b"},
		Trees: []Tree{{Nodes: []Node{
			{Feature: 0, Threshold: 5, Left: 1, Right: 2, Cover: 8},
			{Feature: 0, Threshold: 2, Left: 3, Right: 4, Cover: 5},
			{Leaf: true, Value: 3, Cover: 3},
			{Leaf: true, Value: -2, Cover: 2},
			{Feature: 1, Threshold: 0, Left: 5, Right: 6, Cover: 3},
			{Leaf: true, Value: 1, Cover: 1},
			{Leaf: true, Value: 4, Cover: 2},
		}}},
	}

	for _, x := range [][]float64{{1, 0}, {3, 1}, {3, -1}, {9, 0}} {
		e, err := m.SHAP(x)
		require.NoError(t, err)
		assert.InDelta(t, m.RawScore(x), e.Expected+e.Values[0]+e.Values[1], 1e-12, "x=%v", x)
	}

	// b only matters below a <= 5; with a unknown it still shifts the
	// expectation, so its attribution for a = 9 is half of that shift.
	e, err := m.SHAP([]float64{9, 0})
	require.NoError(t, err)
	assert.InDelta(t, -0.375, e.Values[1], 1e-12)
}

func TestSHAP_WrongWidth(t *testing.T) {
	_, err := handModel().SHAP([]float64{1})
	assert.Error(t, err)
}

func TestSHAPBatch(t *testing.T) {
	values, err := handModel().SHAPBatch([][]float64{{1, 0}, {0, 0}})
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.InDelta(t, 1.2, values[0][1], 1e-12)
	assert.Equal(t, 0.0, MeanAbs(nil, 0))
}
