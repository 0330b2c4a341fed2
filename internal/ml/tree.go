package ml

import "math"

// Node is one node of a regression tree stored in a flat slice. Internal
// nodes send x[Feature] <= Threshold left; a NaN follows DefaultLeft.
type Node struct {
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"threshold"`
	DefaultLeft bool    `json:"default_left"`
	Left        int     `json:"left"`
	Right       int     `json:"right"`
	Leaf        bool    `json:"leaf"`
	Value       float64 `json:"value"`
	Cover       float64 `json:"cover"`
	Gain        float64 `json:"gain"`
}

// Tree is a single boosted regression tree. Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// next returns the child index x follows from an internal node.
func (n *Node) next(x []float64) int {
	v := x[n.Feature]
	if math.IsNaN(v) {
		if n.DefaultLeft {
			return n.Left
		}
		return n.Right
	}
	if v <= n.Threshold {
		return n.Left
	}
	return n.Right
}

// Predict returns the leaf value x lands in.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for !t.Nodes[i].Leaf {
		i = t.Nodes[i].next(x)
	}
	return t.Nodes[i].Value
}

// expectedValue is the cover-weighted mean leaf value.
func (t *Tree) expectedValue() float64 {
	root := t.Nodes[0].Cover
	if root == 0 {
		return 0
	}
	var sum float64
	for _, n := range t.Nodes {
		if n.Leaf {
			sum += n.Value * n.Cover
		}
	}
	return sum / root
}

func (t *Tree) depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := &t.Nodes[i]
		if n.Leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}
