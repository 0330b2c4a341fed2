package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Params configures gradient boosting. Zero values are replaced by the
// defaults from DefaultParams.
type Params struct {
	NEstimators     int     `json:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinChildSamples int     `json:"min_child_samples"`
	Lambda          float64 `json:"lambda"`
	MaxBins         int     `json:"max_bins"`
	MinSplitGain    float64 `json:"min_split_gain"`
}

// DefaultParams returns the boosting configuration used by `train`.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        6,
		MinChildSamples: 20,
		Lambda:          1.0,
		MaxBins:         255,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.NEstimators <= 0 {
		p.NEstimators = d.NEstimators
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.MinChildSamples <= 0 {
		p.MinChildSamples = d.MinChildSamples
	}
	if p.Lambda < 0 {
		p.Lambda = d.Lambda
	}
	if p.MaxBins <= 1 || p.MaxBins > maxBinLimit {
		p.MaxBins = d.MaxBins
	}
	return p
}

// Model is a fitted binary gradient-boosted tree ensemble. Scores are in
// log-odds space until passed through the logistic function.
type Model struct {
	FeatureNames    []string  `json:"feature_names"`
	BaseScore       float64   `json:"base_score"`
	Trees           []Tree    `json:"trees"`
	Params          Params    `json:"params"`
	ScalePosWeight  float64   `json:"scale_pos_weight"`
	TrainingSamples int       `json:"training_samples"`
	TrainedAt       time.Time `json:"trained_at"`
}

// RawScore returns the log-odds score for x.
func (m *Model) RawScore(x []float64) float64 {
	s := m.BaseScore
	for i := range m.Trees {
		s += m.Trees[i].Predict(x)
	}
	return s
}

// PredictProba returns the positive-class probability for x.
func (m *Model) PredictProba(x []float64) float64 {
	return sigmoid(m.RawScore(x))
}

// PredictProbaBatch scores every row of X.
func (m *Model) PredictProbaBatch(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.PredictProba(x)
	}
	return out
}

// NumFeatures returns the input width the model expects.
func (m *Model) NumFeatures() int {
	return len(m.FeatureNames)
}

// Save writes the model as JSON next to its LightGBM text model (see
// BoosterPath), creating parent directories. Both files are replaced
// atomically.
func (m *Model) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	err = writeAtomic(BoosterPath(path), func(w io.Writer) error { return m.WriteBooster(w) })
	if err != nil {
		return fmt.Errorf("failed to write booster: %w", err)
	}
	err = writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}

	log.Info().Str("model_path", path).Int("trees", len(m.Trees)).Msg("Model saved")
	return nil
}

// writeAtomic writes to a temp file in path's directory and renames it over
// path.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadModel reads a model written by Save. A missing file yields an error
// wrapping ErrModelNotFound.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s: run `blitzwatch train` first", ErrModelNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	if len(m.Trees) == 0 || len(m.FeatureNames) == 0 {
		return nil, fmt.Errorf("model %s is empty", path)
	}
	for ti := range m.Trees {
		if err := m.Trees[ti].check(len(m.FeatureNames)); err != nil {
			return nil, fmt.Errorf("model %s tree %d: %w", path, ti, err)
		}
	}
	return &m, nil
}

func (t *Tree) check(nFeatures int) error {
	if len(t.Nodes) == 0 {
		return errors.New("no nodes")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children", i)
		}
	}
	return nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

const (
	maxBinLimit = math.MaxUint16 - 1
	missingBin  = math.MaxUint16
)

// binner maps raw feature values to histogram bins. A value v falls in bin
// i where thresholds[i-1] < v <= thresholds[i].
type binner struct {
	thresholds [][]float64
}

func newBinner(X [][]float64, nFeatures, maxBins int) *binner {
	b := &binner{thresholds: make([][]float64, nFeatures)}
	vals := make([]float64, 0, len(X))
	for f := 0; f < nFeatures; f++ {
		vals = vals[:0]
		for _, x := range X {
			if !math.IsNaN(x[f]) {
				vals = append(vals, x[f])
			}
		}
		b.thresholds[f] = cutPoints(vals, maxBins)
	}
	return b
}

// cutPoints sorts vals in place and returns at most maxBins-1 thresholds.
// Few distinct values get midpoints between neighbours; otherwise cuts are
// taken at equal-frequency quantiles.
func cutPoints(vals []float64, maxBins int) []float64 {
	if len(vals) == 0 {
		return nil
	}
	sort.Float64s(vals)

	distinct := make([]float64, 0, len(vals))
	for i, v := range vals {
		if i == 0 || v != vals[i-1] {
			distinct = append(distinct, v)
		}
	}

	if len(distinct) <= maxBins {
		cuts := make([]float64, 0, len(distinct)-1)
		for i := 1; i < len(distinct); i++ {
			cuts = append(cuts, (distinct[i-1]+distinct[i])/2)
		}
		return cuts
	}

	cuts := make([]float64, 0, maxBins-1)
	n := len(vals)
	for k := 1; k < maxBins; k++ {
		c := vals[k*n/maxBins]
		if len(cuts) == 0 || c > cuts[len(cuts)-1] {
			cuts = append(cuts, c)
		}
	}
	// The largest value must land right of every cut.
	if len(cuts) > 0 && cuts[len(cuts)-1] >= vals[n-1] {
		cuts = cuts[:len(cuts)-1]
	}
	return cuts
}

func (b *binner) bin(f int, v float64) uint16 {
	if math.IsNaN(v) {
		return missingBin
	}
	return uint16(sort.SearchFloat64s(b.thresholds[f], v))
}

func (b *binner) numBins(f int) int {
	return len(b.thresholds[f]) + 1
}

// histBin accumulates gradient statistics for one bin.
type histBin struct {
	g, h  float64
	count int
}

type splitCandidate struct {
	feature     int
	bin         int
	gain        float64
	defaultLeft bool
}

// treeBuilder grows one tree depth-first over binned data.
type treeBuilder struct {
	params Params
	binner *binner
	bins   [][]uint16 // bins[f][i]
	grad   []float64
	hess   []float64
	score  []float64
	nodes  []Node
	hist   []histBin
}

func (tb *treeBuilder) sums(idx []int) (g, h float64) {
	for _, i := range idx {
		g += tb.grad[i]
		h += tb.hess[i]
	}
	return g, h
}

func (tb *treeBuilder) leafValue(g, h float64) float64 {
	return -g / (h + tb.params.Lambda) * tb.params.LearningRate
}

func (tb *treeBuilder) gainTerm(g, h float64) float64 {
	return g * g / (h + tb.params.Lambda)
}

// grow builds the subtree for idx and returns its node index.
func (tb *treeBuilder) grow(idx []int, depth int) int {
	self := len(tb.nodes)
	tb.nodes = append(tb.nodes, Node{Cover: float64(len(idx))})

	g, h := tb.sums(idx)
	var best splitCandidate
	found := false
	if depth < tb.params.MaxDepth && len(idx) >= 2*tb.params.MinChildSamples {
		best, found = tb.bestSplit(idx, g, h)
	}

	if !found {
		v := tb.leafValue(g, h)
		tb.nodes[self].Leaf = true
		tb.nodes[self].Value = v
		for _, i := range idx {
			tb.score[i] += v
		}
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	col := tb.bins[best.feature]
	for _, i := range idx {
		b := col[i]
		if b == missingBin {
			if best.defaultLeft {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
			continue
		}
		if int(b) <= best.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	tb.nodes[self].Feature = best.feature
	tb.nodes[self].Threshold = tb.binner.thresholds[best.feature][best.bin]
	tb.nodes[self].DefaultLeft = best.defaultLeft
	tb.nodes[self].Gain = best.gain

	l := tb.grow(left, depth+1)
	r := tb.grow(right, depth+1)
	tb.nodes[self].Left = l
	tb.nodes[self].Right = r
	return self
}

func (tb *treeBuilder) bestSplit(idx []int, gTotal, hTotal float64) (splitCandidate, bool) {
	const minHess = 1e-3
	parent := tb.gainTerm(gTotal, hTotal)
	minChild := tb.params.MinChildSamples

	var best splitCandidate
	found := false

	for f := range tb.bins {
		nb := tb.binner.numBins(f)
		if nb < 2 {
			continue
		}

		hist := tb.hist[:nb]
		for b := range hist {
			hist[b] = histBin{}
		}
		var miss histBin
		col := tb.bins[f]
		for _, i := range idx {
			b := col[i]
			if b == missingBin {
				miss.g += tb.grad[i]
				miss.h += tb.hess[i]
				miss.count++
				continue
			}
			hist[b].g += tb.grad[i]
			hist[b].h += tb.hess[i]
			hist[b].count++
		}

		var acc histBin
		for b := 0; b < nb-1; b++ {
			acc.g += hist[b].g
			acc.h += hist[b].h
			acc.count += hist[b].count

			for _, missLeft := range []bool{true, false} {
				if miss.count == 0 && !missLeft {
					continue
				}
				lg, lh, lc := acc.g, acc.h, acc.count
				if missLeft {
					lg += miss.g
					lh += miss.h
					lc += miss.count
				}
				rg, rh, rc := gTotal-lg, hTotal-lh, len(idx)-lc
				if lc < minChild || rc < minChild || lh < minHess || rh < minHess {
					continue
				}

				gain := tb.gainTerm(lg, lh) + tb.gainTerm(rg, rh) - parent
				if gain <= tb.params.MinSplitGain || gain <= 1e-12 {
					continue
				}
				if !found || gain > best.gain {
					defaultLeft := missLeft
					if miss.count == 0 {
						// Unseen missing values follow the heavier child.
						defaultLeft = lc >= rc
					}
					best = splitCandidate{feature: f, bin: b, gain: gain, defaultLeft: defaultLeft}
					found = true
				}
			}
		}
	}

	return best, found
}

// fit trains an ensemble on X, y (0/1) with positive rows weighted by
// scalePosWeight.
func fit(X [][]float64, y []float64, scalePosWeight float64, params Params, names []string) (*Model, error) {
	params = params.withDefaults()
	n := len(X)
	if n == 0 {
		return nil, fmt.Errorf("%w: no training rows", ErrDegenerateTrainingSet)
	}
	if len(y) != n {
		return nil, fmt.Errorf("feature rows (%d) and targets (%d) differ", n, len(y))
	}
	nFeatures := len(X[0])
	for i, x := range X {
		if len(x) != nFeatures {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(x), nFeatures)
		}
	}
	if len(names) != nFeatures {
		return nil, fmt.Errorf("%d feature names for %d features", len(names), nFeatures)
	}

	weights := make([]float64, n)
	var wPos, wAll float64
	for i, t := range y {
		w := 1.0
		if t == 1 {
			w = scalePosWeight
			wPos += w
		}
		weights[i] = w
		wAll += w
	}
	if wPos <= 0 || wPos >= wAll {
		return nil, fmt.Errorf("%w: weighted positive share is %.3f", ErrDegenerateTrainingSet, wPos/wAll)
	}
	p0 := wPos / wAll
	base := math.Log(p0 / (1 - p0))

	bn := newBinner(X, nFeatures, params.MaxBins)
	bins := make([][]uint16, nFeatures)
	maxNB := 1
	for f := 0; f < nFeatures; f++ {
		col := make([]uint16, n)
		for i, x := range X {
			col[i] = bn.bin(f, x[f])
		}
		bins[f] = col
		maxNB = max(maxNB, bn.numBins(f))
	}

	score := make([]float64, n)
	for i := range score {
		score[i] = base
	}
	tb := &treeBuilder{
		params: params,
		binner: bn,
		bins:   bins,
		grad:   make([]float64, n),
		hess:   make([]float64, n),
		score:  score,
		hist:   make([]histBin, maxNB),
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	m := &Model{
		FeatureNames:    append([]string(nil), names...),
		BaseScore:       base,
		Params:          params,
		ScalePosWeight:  scalePosWeight,
		TrainingSamples: n,
		TrainedAt:       time.Now().UTC(),
	}

	for it := 0; it < params.NEstimators; it++ {
		for i := range score {
			p := sigmoid(score[i])
			tb.grad[i] = weights[i] * (p - y[i])
			tb.hess[i] = weights[i] * p * (1 - p)
		}
		tb.nodes = nil
		tb.grow(all, 0)
		m.Trees = append(m.Trees, Tree{Nodes: tb.nodes})
	}

	log.Debug().
		Int("trees", len(m.Trees)).
		Int("rows", n).
		Float64("base_score", base).
		Msg("Boosting finished")

	return m, nil
}
