package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets with the
// same class proportions in each. Both outputs are sorted ascending so the
// original row order is preserved within each split. The same y, testSize
// and seed always produce the same split.
func StratifiedSplit(y []float64, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size %.3f must be in (0, 1)", testSize)
	}

	var neg, pos []int
	for i, t := range y {
		if t == 1 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	for _, class := range [][]int{neg, pos} {
		rng.Shuffle(len(class), func(i, j int) { class[i], class[j] = class[j], class[i] })

		nTest := int(math.Round(testSize * float64(len(class))))
		test = append(test, class[:nTest]...)
		train = append(train, class[nTest:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// ScalePosWeight returns count(negatives) / count(positives). A split
// without positives or without negatives is degenerate.
func ScalePosWeight(y []float64) (float64, error) {
	var pos, neg int
	for _, t := range y {
		if t == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 {
		return 0, fmt.Errorf("%w: no positive examples among %d training rows", ErrDegenerateTrainingSet, len(y))
	}
	if neg == 0 {
		return 0, fmt.Errorf("%w: no negative examples among %d training rows", ErrDegenerateTrainingSet, len(y))
	}
	return float64(neg) / float64(pos), nil
}

// HoldoutSet returns the test rows of StratifiedSplit, the same rows Train
// evaluates on for a given testSize and seed.
func HoldoutSet(X [][]float64, y []float64, testSize float64, seed int64) ([][]float64, []float64, error) {
	if len(X) != len(y) {
		return nil, nil, fmt.Errorf("feature rows (%d) and targets (%d) differ", len(X), len(y))
	}
	_, testIdx, err := StratifiedSplit(y, testSize, seed)
	if err != nil {
		return nil, nil, err
	}
	return subsetRows(X, testIdx), subsetTargets(y, testIdx), nil
}

func subsetRows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func subsetTargets(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
