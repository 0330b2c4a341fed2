package ml

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/YuminosukeSato/scigo/sklearn/lightgbm"
	"gonum.org/v1/gonum/mat"
)

// LightGBM decision_type bits.
const (
	decisionDefaultLeft = 1 << 1
	decisionMissingNaN  = 2 << 2
)

// BoosterPath returns where the LightGBM text model for a model lives.
func BoosterPath(modelPath string) string {
	return strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".lgbm.txt"
}

// lgbTree is one tree in LightGBM's array layout: internal nodes and leaves
// are numbered separately and a negative child c points at leaf ^c.
type lgbTree struct {
	splitFeature   []int
	splitGain      []float64
	threshold      []float64
	decisionType   []int
	leftChild      []int
	rightChild     []int
	leafValue      []float64
	leafWeight     []float64
	leafCount      []int
	internalValue  []float64
	internalWeight []float64
	internalCount  []int
}

// lightGBM converts t, adding offset to every leaf.
func (t *Tree) lightGBM(offset float64) lgbTree {
	var out lgbTree

	root := &t.Nodes[0]
	if root.Leaf {
		// A single leaf is written as a stump whose two leaves agree.
		v := root.Value + offset
		return lgbTree{
			splitFeature:   []int{0},
			splitGain:      []float64{0},
			threshold:      []float64{0},
			decisionType:   []int{decisionMissingNaN | decisionDefaultLeft},
			leftChild:      []int{^0},
			rightChild:     []int{^1},
			leafValue:      []float64{v, v},
			leafWeight:     []float64{root.Cover, 0},
			leafCount:      []int{int(root.Cover), 0},
			internalValue:  []float64{v},
			internalWeight: []float64{root.Cover},
			internalCount:  []int{int(root.Cover)},
		}
	}

	var walk func(i int) (child int, sum, cover float64)
	walk = func(i int) (int, float64, float64) {
		n := &t.Nodes[i]
		if n.Leaf {
			leaf := len(out.leafValue)
			v := n.Value + offset
			out.leafValue = append(out.leafValue, v)
			out.leafWeight = append(out.leafWeight, n.Cover)
			out.leafCount = append(out.leafCount, int(n.Cover))
			return ^leaf, v * n.Cover, n.Cover
		}

		self := len(out.splitFeature)
		dt := decisionMissingNaN
		if n.DefaultLeft {
			dt |= decisionDefaultLeft
		}
		out.splitFeature = append(out.splitFeature, n.Feature)
		out.splitGain = append(out.splitGain, n.Gain)
		out.threshold = append(out.threshold, n.Threshold)
		out.decisionType = append(out.decisionType, dt)
		out.leftChild = append(out.leftChild, 0)
		out.rightChild = append(out.rightChild, 0)
		out.internalValue = append(out.internalValue, 0)
		out.internalWeight = append(out.internalWeight, 0)
		out.internalCount = append(out.internalCount, 0)

		l, ls, lc := walk(n.Left)
		r, rs, rc := walk(n.Right)
		sum, cover := ls+rs, lc+rc

		out.leftChild[self] = l
		out.rightChild[self] = r
		if cover > 0 {
			out.internalValue[self] = sum / cover
		}
		out.internalWeight[self] = cover
		out.internalCount[self] = int(cover)
		return self, sum, cover
	}
	walk(0)
	return out
}

func (lt lgbTree) text(index int, shrinkage float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tree=%d\n", index)
	fmt.Fprintf(&b, "num_leaves=%d\n", len(lt.leafValue))
	b.WriteString("num_cat=0\n")
	fmt.Fprintf(&b, "split_feature=%s\n", joinInts(lt.splitFeature))
	fmt.Fprintf(&b, "split_gain=%s\n", joinFloats(lt.splitGain))
	fmt.Fprintf(&b, "threshold=%s\n", joinFloats(lt.threshold))
	fmt.Fprintf(&b, "decision_type=%s\n", joinInts(lt.decisionType))
	fmt.Fprintf(&b, "left_child=%s\n", joinInts(lt.leftChild))
	fmt.Fprintf(&b, "right_child=%s\n", joinInts(lt.rightChild))
	fmt.Fprintf(&b, "leaf_value=%s\n", joinFloats(lt.leafValue))
	fmt.Fprintf(&b, "leaf_weight=%s\n", joinFloats(lt.leafWeight))
	fmt.Fprintf(&b, "leaf_count=%s\n", joinInts(lt.leafCount))
	fmt.Fprintf(&b, "internal_value=%s\n", joinFloats(lt.internalValue))
	fmt.Fprintf(&b, "internal_weight=%s\n", joinFloats(lt.internalWeight))
	fmt.Fprintf(&b, "internal_count=%s\n", joinInts(lt.internalCount))
	b.WriteString("is_linear=0\n")
	fmt.Fprintf(&b, "shrinkage=%s\n\n\n", formatFloat(shrinkage))
	return b.String()
}

// WriteBooster writes m in LightGBM's text model format. The base score is
// folded into the first tree so the file scores identically to m.
func (m *Model) WriteBooster(w io.Writer) error {
	if len(m.Trees) == 0 {
		return errors.New("model has no trees")
	}

	trees := make([]string, len(m.Trees))
	sizes := make([]int, len(m.Trees))
	used := make(map[int][2]float64)
	splits := make([]int, len(m.FeatureNames))
	for i := range m.Trees {
		offset := 0.0
		if i == 0 {
			offset = m.BaseScore
		}
		lt := m.Trees[i].lightGBM(offset)
		for j, f := range lt.splitFeature {
			if m.Trees[i].Nodes[0].Leaf {
				break
			}
			splits[f]++
			th := lt.threshold[j]
			r, ok := used[f]
			if !ok {
				r = [2]float64{th, th}
			}
			used[f] = [2]float64{math.Min(r[0], th), math.Max(r[1], th)}
		}
		trees[i] = lt.text(i, m.Params.LearningRate)
		sizes[i] = len(trees[i])
	}

	infos := make([]string, len(m.FeatureNames))
	for f := range infos {
		r, ok := used[f]
		if !ok {
			infos[f] = "none"
			continue
		}
		infos[f] = "[" + formatFloat(r[0]) + ":" + formatFloat(r[1]) + "]"
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("tree\nversion=v3\nnum_class=1\nnum_tree_per_iteration=1\nlabel_index=0\n")
	fmt.Fprintf(bw, "max_feature_idx=%d\n", len(m.FeatureNames)-1)
	bw.WriteString("objective=binary sigmoid:1\n")
	fmt.Fprintf(bw, "feature_names=%s\n", strings.Join(m.FeatureNames, " "))
	fmt.Fprintf(bw, "feature_infos=%s\n", strings.Join(infos, " "))
	fmt.Fprintf(bw, "tree_sizes=%s\n\n", joinInts(sizes))
	for _, t := range trees {
		bw.WriteString(t)
	}
	bw.WriteString("end of trees\n")

	order := make([]int, 0, len(splits))
	for f, n := range splits {
		if n > 0 {
			order = append(order, f)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return splits[order[a]] > splits[order[b]] })
	bw.WriteString("\nfeature_importances:\n")
	for _, f := range order {
		fmt.Fprintf(bw, "%s=%d\n", m.FeatureNames[f], splits[f])
	}

	p := m.Params
	bw.WriteString("\nparameters:\n[boosting: gbdt]\n[objective: binary]\n")
	fmt.Fprintf(bw, "[num_iterations: %d]\n", len(m.Trees))
	fmt.Fprintf(bw, "[learning_rate: %s]\n", formatFloat(p.LearningRate))
	fmt.Fprintf(bw, "[max_depth: %d]\n", p.MaxDepth)
	fmt.Fprintf(bw, "[min_data_in_leaf: %d]\n", p.MinChildSamples)
	fmt.Fprintf(bw, "[lambda_l2: %s]\n", formatFloat(p.Lambda))
	fmt.Fprintf(bw, "[min_gain_to_split: %s]\n", formatFloat(p.MinSplitGain))
	fmt.Fprintf(bw, "[max_bin: %d]\n", p.MaxBins)
	fmt.Fprintf(bw, "[scale_pos_weight: %s]\n", formatFloat(m.ScalePosWeight))
	bw.WriteString("end of parameters\n\npandas_categorical:null\n")
	return bw.Flush()
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}

func joinFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = formatFloat(x)
	}
	return strings.Join(parts, " ")
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// booster scores encoded rows with the LightGBM runtime.
type booster struct {
	mu      sync.Mutex
	predict func(X *mat.Dense) ([]float64, error)
}

// loadBooster reads a LightGBM text model written by WriteBooster.
func loadBooster(path string) (*booster, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s: run `blitzwatch train` first", ErrModelNotFound, path)
	}

	lgbm, err := lightgbm.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load booster %s: %w", path, err)
	}
	pred := lightgbm.NewPredictor(lgbm)
	pred.SetDeterministic(true)

	return &booster{predict: func(X *mat.Dense) ([]float64, error) {
		out, err := pred.Predict(X)
		if err != nil {
			return nil, err
		}
		rows, _ := X.Dims()
		probs := make([]float64, rows)
		for i := range probs {
			probs[i] = out.At(i, 0)
		}
		return probs, nil
	}}, nil
}

// score returns the positive-class probability for each row.
func (b *booster) score(X [][]float64) ([]float64, error) {
	if len(X) == 0 {
		return nil, nil
	}
	cols := len(X[0])
	data := make([]float64, 0, len(X)*cols)
	for i, x := range X {
		if len(x) != cols {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(x), cols)
		}
		data = append(data, x...)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.predict(mat.NewDense(len(X), cols, data))
}
