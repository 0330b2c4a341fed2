package ml

import "fmt"

// Explanation is the per-feature attribution of one prediction in log-odds
// space. Expected plus the sum of Values equals the model's raw score.
type Explanation struct {
	Values   []float64 `json:"values"`
	Expected float64   `json:"expected"`
}

// ExpectedValue returns the model's mean raw score over the training data.
func (m *Model) ExpectedValue() float64 {
	ev := m.BaseScore
	for i := range m.Trees {
		ev += m.Trees[i].expectedValue()
	}
	return ev
}

// SHAP computes exact path-dependent TreeSHAP values for x.
func (m *Model) SHAP(x []float64) (Explanation, error) {
	if len(x) != m.NumFeatures() {
		return Explanation{}, fmt.Errorf("got %d features, model expects %d", len(x), m.NumFeatures())
	}

	phi := make([]float64, len(x))
	for i := range m.Trees {
		m.Trees[i].shap(x, phi)
	}
	return Explanation{Values: phi, Expected: m.ExpectedValue()}, nil
}

// SHAPBatch explains every row of X.
func (m *Model) SHAPBatch(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, x := range X {
		e, err := m.SHAP(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = e.Values
	}
	return out, nil
}

// pathElem is one entry of the unique feature path walked by TreeSHAP.
type pathElem struct {
	feature int
	zero    float64 // fraction of cover flowing this way when the feature is unknown
	one     float64 // 1 if x follows this branch, else 0
	weight  float64
}

// shap adds this tree's contributions for x into phi.
func (t *Tree) shap(x []float64, phi []float64) {
	if t.Nodes[0].Leaf {
		return
	}
	t.shapRecurse(x, phi, 0, nil, 0, 1, 1, -1)
}

func (t *Tree) shapRecurse(x, phi []float64, node int, parent []pathElem, depth int, zero, one float64, feature int) {
	path := make([]pathElem, depth+1)
	copy(path, parent)
	extendPath(path, depth, zero, one, feature)

	n := &t.Nodes[node]
	if n.Leaf {
		for i := 1; i <= depth; i++ {
			w := unwoundPathSum(path, depth, i)
			el := path[i]
			phi[el.feature] += w * (el.one - el.zero) * n.Value
		}
		return
	}

	hot := n.next(x)
	cold := n.Right
	if hot == n.Right {
		cold = n.Left
	}
	hotZero := t.Nodes[hot].Cover / n.Cover
	coldZero := t.Nodes[cold].Cover / n.Cover

	incomingZero, incomingOne := 1.0, 1.0
	k := 0
	for ; k <= depth; k++ {
		if path[k].feature == n.Feature {
			break
		}
	}
	if k <= depth {
		incomingZero = path[k].zero
		incomingOne = path[k].one
		unwindPath(path, depth, k)
		depth--
	}

	t.shapRecurse(x, phi, hot, path[:depth+1], depth+1, hotZero*incomingZero, incomingOne, n.Feature)
	t.shapRecurse(x, phi, cold, path[:depth+1], depth+1, coldZero*incomingZero, 0, n.Feature)
}

func extendPath(path []pathElem, depth int, zero, one float64, feature int) {
	path[depth] = pathElem{feature: feature, zero: zero, one: one}
	if depth == 0 {
		path[depth].weight = 1
	}
	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / d
		path[i].weight = zero * path[i].weight * float64(depth-i) / d
	}
}

func unwindPath(path []pathElem, depth, k int) {
	one, zero := path[k].one, path[k].zero
	d := float64(depth + 1)
	next := path[depth].weight
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := path[i].weight
			path[i].weight = next * d / (float64(i+1) * one)
			next = tmp - path[i].weight*zero*float64(depth-i)/d
		} else {
			path[i].weight = path[i].weight * d / (zero * float64(depth-i))
		}
	}
	for i := k; i < depth; i++ {
		path[i].feature = path[i+1].feature
		path[i].zero = path[i+1].zero
		path[i].one = path[i+1].one
	}
}

func unwoundPathSum(path []pathElem, depth, k int) float64 {
	one, zero := path[k].one, path[k].zero
	d := float64(depth + 1)
	next := path[depth].weight
	var total float64
	for i := depth - 1; i >= 0; i-- {
		switch {
		case one != 0:
			tmp := next * d / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(depth-i)/d
		case zero != 0:
			total += path[i].weight / zero / (float64(depth-i) / d)
		}
	}
	return total
}
