package ml

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Class indices used by Evaluation.
const (
	ClassNoBlitz = 0
	ClassBlitz   = 1
)

var classNames = [2]string{ClassNoBlitz: "no blitz", ClassBlitz: "blitz"}

// ClassReport holds per-class precision, recall and F1.
type ClassReport struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation summarises held-out performance at one decision threshold.
// Confusion is indexed [actual][predicted].
type Evaluation struct {
	Threshold   float64        `json:"threshold"`
	Samples     int            `json:"samples"`
	Accuracy    float64        `json:"accuracy"`
	Classes     [2]ClassReport `json:"classes"`
	MacroAvg    ClassReport    `json:"macro_avg"`
	WeightedAvg ClassReport    `json:"weighted_avg"`
	Confusion   [2][2]int      `json:"confusion"`
	AUC         float64        `json:"auc"`
	MaxProba    float64        `json:"max_proba"`
	TopProba    []float64      `json:"top_proba"`
}

// Evaluate scores probabilities against 0/1 targets. A probability above
// threshold counts as a predicted blitz.
func Evaluate(y, proba []float64, threshold float64) *Evaluation {
	e := &Evaluation{Threshold: threshold, Samples: len(y)}
	if len(y) == 0 {
		return e
	}

	correct := 0
	for i, t := range y {
		actual := ClassNoBlitz
		if t == 1 {
			actual = ClassBlitz
		}
		pred := ClassNoBlitz
		if proba[i] > threshold {
			pred = ClassBlitz
		}
		e.Confusion[actual][pred]++
		if actual == pred {
			correct++
		}
	}
	e.Accuracy = float64(correct) / float64(len(y))

	for c := range e.Classes {
		tp := e.Confusion[c][c]
		predicted := e.Confusion[0][c] + e.Confusion[1][c]
		support := e.Confusion[c][0] + e.Confusion[c][1]

		r := ClassReport{Support: support}
		if predicted > 0 {
			r.Precision = float64(tp) / float64(predicted)
		}
		if support > 0 {
			r.Recall = float64(tp) / float64(support)
		}
		if r.Precision+r.Recall > 0 {
			r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
		}
		e.Classes[c] = r
	}

	total := float64(len(y))
	e.MacroAvg.Support = len(y)
	e.WeightedAvg.Support = len(y)
	for _, r := range e.Classes {
		e.MacroAvg.Precision += r.Precision / 2
		e.MacroAvg.Recall += r.Recall / 2
		e.MacroAvg.F1 += r.F1 / 2

		w := float64(r.Support) / total
		e.WeightedAvg.Precision += r.Precision * w
		e.WeightedAvg.Recall += r.Recall * w
		e.WeightedAvg.F1 += r.F1 * w
	}

	sorted := append([]float64(nil), proba...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	e.MaxProba = sorted[0]
	e.TopProba = sorted[:min(5, len(sorted))]

	e.AUC = rocAUC(y, proba)
	return e
}

// rocAUC returns the area under the ROC curve, or 0 when only one class is
// present.
func rocAUC(y, proba []float64) float64 {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return proba[idx[a]] < proba[idx[b]] })

	scores := make([]float64, len(y))
	classes := make([]bool, len(y))
	var pos int
	for i, j := range idx {
		scores[i] = proba[j]
		classes[i] = y[j] == 1
		if classes[i] {
			pos++
		}
	}
	if pos == 0 || pos == len(y) {
		return 0
	}

	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// Report renders the evaluation in a fixed-width text layout.
func (e *Evaluation) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Threshold: %.2f\n", e.Threshold)
	fmt.Fprintf(&b, "Accuracy: %.4f\n", e.Accuracy)
	if e.AUC > 0 {
		fmt.Fprintf(&b, "ROC AUC: %.4f\n", e.AUC)
	}
	b.WriteString("\nClassification Report:\n")
	fmt.Fprintf(&b, "%14s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	for c, r := range e.Classes {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", classNames[c], r.Precision, r.Recall, r.F1, r.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%14s %10s %10s %10.2f %10d\n", "accuracy", "", "", e.Accuracy, e.Samples)
	fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", "macro avg", e.MacroAvg.Precision, e.MacroAvg.Recall, e.MacroAvg.F1, e.MacroAvg.Support)
	fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", "weighted avg", e.WeightedAvg.Precision, e.WeightedAvg.Recall, e.WeightedAvg.F1, e.WeightedAvg.Support)

	b.WriteString("\nConfusion Matrix (rows actual, columns predicted):\n")
	fmt.Fprintf(&b, "[[%d %d]\n [%d %d]]\n", e.Confusion[0][0], e.Confusion[0][1], e.Confusion[1][0], e.Confusion[1][1])

	fmt.Fprintf(&b, "\nMax predicted blitz probability: %.4f\n", e.MaxProba)
	top := make([]string, len(e.TopProba))
	for i, p := range e.TopProba {
		top[i] = fmt.Sprintf("%.4f", p)
	}
	fmt.Fprintf(&b, "Top %d probabilities: [%s]\n", len(top), strings.Join(top, " "))
	return b.String()
}
