package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ImportanceType selects how tree importance is aggregated.
type ImportanceType int

const (
	// ImportanceSplit counts how many splits use a feature.
	ImportanceSplit ImportanceType = iota
	// ImportanceGain sums the loss reduction of those splits.
	ImportanceGain
)

func (t ImportanceType) String() string {
	if t == ImportanceGain {
		return "gain"
	}
	return "split"
}

// ParseImportanceType accepts "split" or "gain".
func ParseImportanceType(s string) (ImportanceType, error) {
	switch s {
	case "", "split":
		return ImportanceSplit, nil
	case "gain":
		return ImportanceGain, nil
	}
	return 0, fmt.Errorf("unknown importance type %q", s)
}

// FeatureImportance returns one score per feature, in feature order.
func (m *Model) FeatureImportance(kind ImportanceType) []float64 {
	scores := make([]float64, m.NumFeatures())
	for _, t := range m.Trees {
		for _, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if kind == ImportanceGain {
				scores[n.Feature] += n.Gain
			} else {
				scores[n.Feature]++
			}
		}
	}
	return scores
}

// FeatureStats contains importance measures for a single feature
type FeatureStats struct {
	Name             string  `json:"name"`
	SplitCount       float64 `json:"split_count"`
	TotalGain        float64 `json:"total_gain"`
	MeanAbsSHAP      float64 `json:"mean_abs_shap"`
	PermutationScore float64 `json:"permutation_score"`
}

// ImportanceReport collects every importance measure for a model.
type ImportanceReport struct {
	Features      []FeatureStats `json:"features"`
	BaselineScore float64        `json:"baseline_score"`
	Samples       int            `json:"samples"`
	ComputedAt    time.Time      `json:"computed_at"`
}

// ComputeImportance builds an ImportanceReport. When X is non-empty the
// SHAP and permutation measures are computed on it; permutation uses
// accuracy at threshold and a seeded shuffle.
func ComputeImportance(m *Model, X [][]float64, y []float64, threshold float64, seed int64) (*ImportanceReport, error) {
	split := m.FeatureImportance(ImportanceSplit)
	gain := m.FeatureImportance(ImportanceGain)

	r := &ImportanceReport{
		Features:   make([]FeatureStats, m.NumFeatures()),
		Samples:    len(X),
		ComputedAt: time.Now().UTC(),
	}
	for i, name := range m.FeatureNames {
		r.Features[i] = FeatureStats{Name: name, SplitCount: split[i], TotalGain: gain[i]}
	}
	if len(X) == 0 {
		return r, nil
	}
	if len(y) != len(X) {
		return nil, fmt.Errorf("feature rows (%d) and targets (%d) differ", len(X), len(y))
	}

	shapValues, err := m.SHAPBatch(X)
	if err != nil {
		return nil, err
	}
	for f := range r.Features {
		r.Features[f].MeanAbsSHAP = MeanAbs(shapValues, f)
	}

	r.BaselineScore = accuracy(m, X, y, threshold)
	rng := rand.New(rand.NewSource(seed))
	perm := make([]int, len(X))
	permuted := make([]float64, len(X[0]))
	for f := range r.Features {
		for i := range perm {
			perm[i] = i
		}
		rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

		correct := 0
		for i, x := range X {
			copy(permuted, x)
			permuted[f] = X[perm[i]][f]
			if (m.PredictProba(permuted) > threshold) == (y[i] == 1) {
				correct++
			}
		}
		// Importance is the drop in accuracy.
		r.Features[f].PermutationScore = r.BaselineScore - float64(correct)/float64(len(X))
	}

	return r, nil
}

// MeanAbs returns the mean absolute value of column f.
func MeanAbs(values [][]float64, f int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, row := range values {
		sum += math.Abs(row[f])
	}
	return sum / float64(len(values))
}

func accuracy(m *Model, X [][]float64, y []float64, threshold float64) float64 {
	correct := 0
	for i, x := range X {
		if (m.PredictProba(x) > threshold) == (y[i] == 1) {
			correct++
		}
	}
	return float64(correct) / float64(len(X))
}

// GetTopFeatures returns the n feature names with the highest total gain.
func (r *ImportanceReport) GetTopFeatures(n int) []string {
	sorted := append([]FeatureStats(nil), r.Features...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TotalGain > sorted[j].TotalGain })

	n = min(n, len(sorted))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = sorted[i].Name
	}
	return out
}

// Save writes the report as indented JSON, creating parent directories.
func (r *ImportanceReport) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// LoadImportanceReport reads a report written by Save.
func LoadImportanceReport(path string) (*ImportanceReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r ImportanceReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ImportancePath returns where the importance report for a model lives.
func ImportancePath(modelPath string) string {
	ext := filepath.Ext(modelPath)
	return modelPath[:len(modelPath)-len(ext)] + ".importance.json"
}
