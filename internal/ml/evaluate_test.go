package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	y := []float64{1, 1, 0, 0, 0}
	proba := []float64{0.9, 0.4, 0.6, 0.2, 0.1}

	e := Evaluate(y, proba, 0.5)

	assert.Equal(t, 5, e.Samples)
	assert.InDelta(t, 0.6, e.Accuracy, 1e-12)
	assert.Equal(t, [2][2]int{{2, 1}, {1, 1}}, e.Confusion)

	blitz := e.Classes[ClassBlitz]
	assert.InDelta(t, 0.5, blitz.Precision, 1e-12)
	assert.InDelta(t, 0.5, blitz.Recall, 1e-12)
	assert.InDelta(t, 0.5, blitz.F1, 1e-12)
	assert.Equal(t, 2, blitz.Support)

	none := e.Classes[ClassNoBlitz]
	assert.InDelta(t, 2.0/3, none.Precision, 1e-12)
	assert.InDelta(t, 2.0/3, none.Recall, 1e-12)
	assert.Equal(t, 3, none.Support)

	assert.InDelta(t, (0.5+2.0/3)/2, e.MacroAvg.Precision, 1e-12)
	assert.InDelta(t, 0.6, e.WeightedAvg.Precision, 1e-12)

	assert.InDelta(t, 5.0/6, e.AUC, 1e-12)
	assert.Equal(t, 0.9, e.MaxProba)
	assert.Equal(t, []float64{0.9, 0.6, 0.4, 0.2, 0.1}, e.TopProba)
}

func TestEvaluate_HighPrecisionThreshold(t *testing.T) {
	y := []float64{1, 1, 0, 0, 0}
	proba := []float64{0.9, 0.4, 0.6, 0.2, 0.1}

	e := Evaluate(y, proba, 0.70)
	assert.Equal(t, [2][2]int{{3, 0}, {1, 1}}, e.Confusion)
	assert.InDelta(t, 1.0, e.Classes[ClassBlitz].Precision, 1e-12)
	assert.InDelta(t, 0.5, e.Classes[ClassBlitz].Recall, 1e-12)
}

func TestEvaluate_ThresholdIsExclusive(t *testing.T) {
	e := Evaluate([]float64{1}, []float64{0.5}, 0.5)
	assert.Equal(t, 1, e.Confusion[1][0])
}

func TestEvaluate_SingleClass(t *testing.T) {
	e := Evaluate([]float64{0, 0, 0}, []float64{0.1, 0.2, 0.3}, 0.5)
	assert.Equal(t, 0.0, e.AUC)
	assert.Equal(t, 1.0, e.Accuracy)
	assert.Equal(t, 0.0, e.Classes[ClassBlitz].F1)
	assert.Len(t, e.TopProba, 3)
}

func TestEvaluate_Empty(t *testing.T) {
	e := Evaluate(nil, nil, 0.5)
	assert.Equal(t, 0, e.Samples)
	assert.Equal(t, 0.0, e.Accuracy)
}

func TestEvaluation_Report(t *testing.T) {
	e := Evaluate([]float64{1, 1, 0, 0, 0}, []float64{0.9, 0.4, 0.6, 0.2, 0.1}, 0.5)
	report := e.Report()

	assert.Contains(t, report, "Accuracy: 0.6000")
	assert.Contains(t, report, "ROC AUC: 0.8333")
	assert.Contains(t, report, "macro avg")
	assert.Contains(t, report, "[[2 1]\n [1 1]]")
	assert.Contains(t, report, "Top 5 probabilities: [0.9000 0.6000 0.4000 0.2000 0.1000]")
}
