// Package insights renders the diagnostic plots of a trained blitz model:
// feature importance, a SHAP summary and the held-out confusion matrix.
package insights

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var ErrNoData = errors.New("no data to plot")

var (
	barColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	lowColor  = color.RGBA{R: 0, G: 138, B: 230, A: 255}
	highColor = color.RGBA{R: 255, G: 0, B: 82, A: 255}
	nanColor  = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	zeroColor = color.RGBA{R: 100, G: 100, B: 100, A: 255}
)

// Renderer draws PNG images of a fixed size.
type Renderer struct {
	Width  vg.Length
	Height vg.Length
}

func NewRenderer() *Renderer {
	return &Renderer{Width: 8 * vg.Inch, Height: 6 * vg.Inch}
}

func (r *Renderer) png(p *plot.Plot) ([]byte, error) {
	wt, err := p.WriterTo(r.Width, r.Height, "png")
	if err != nil {
		return nil, fmt.Errorf("prepare png: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// FeatureImportance draws a horizontal bar chart with the most important
// feature at the top.
func (r *Renderer) FeatureImportance(names []string, values []float64, kind string) ([]byte, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("%d feature names for %d importance values", len(names), len(values))
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	sorted := make(plotter.Values, len(order))
	labels := make([]string, len(order))
	for i, f := range order {
		sorted[i] = values[f]
		labels[i] = names[f]
	}

	bars, err := plotter.NewBarChart(sorted, vg.Points(14))
	if err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	bars.Horizontal = true
	bars.Color = barColor
	bars.LineStyle.Width = 0

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Feature importance (%s)", kind)
	p.X.Label.Text = "Importance"
	p.X.Min = 0
	p.Add(bars)
	p.NominalY(labels...)

	return r.png(p)
}

// SHAPSummary draws one horizontal strip of per-row SHAP values for each
// feature, sorted by mean absolute SHAP with the strongest at the top.
// Points are coloured from blue (low feature value) to red (high); missing
// feature values are grey.
func (r *Renderer) SHAPSummary(names []string, shap, X [][]float64) ([]byte, error) {
	if len(shap) == 0 {
		return nil, ErrNoData
	}
	if len(shap) != len(X) {
		return nil, fmt.Errorf("%d SHAP rows for %d feature rows", len(shap), len(X))
	}
	nf := len(names)
	for i := range shap {
		if len(shap[i]) != nf || len(X[i]) != nf {
			return nil, fmt.Errorf("row %d: expected %d features", i, nf)
		}
	}

	meanAbs := make([]float64, nf)
	for _, row := range shap {
		for f, v := range row {
			meanAbs[f] += math.Abs(v)
		}
	}
	order := make([]int, nf)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return meanAbs[order[a]] < meanAbs[order[b]] })

	// Fixed seed keeps the jitter, and so the image, reproducible.
	rng := rand.New(rand.NewSource(1))
	xys := make(plotter.XYs, 0, len(shap)*nf)
	colors := make([]color.Color, 0, len(shap)*nf)
	labels := make([]string, nf)
	for rank, f := range order {
		labels[rank] = names[f]
		lo, hi := columnRange(X, f)
		for i := range shap {
			xys = append(xys, plotter.XY{X: shap[i][f], Y: float64(rank) + (rng.Float64()-0.5)*0.6})
			colors = append(colors, valueColor(X[i][f], lo, hi))
		}
	}

	points, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	points.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: colors[i], Radius: vg.Points(1.5), Shape: draw.CircleGlyph{}}
	}

	zero, err := plotter.NewLine(plotter.XYs{{X: 0, Y: -0.5}, {X: 0, Y: float64(nf) - 0.5}})
	if err != nil {
		return nil, fmt.Errorf("zero line: %w", err)
	}
	zero.LineStyle.Color = zeroColor
	zero.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p := plot.New()
	p.Title.Text = "SHAP summary"
	p.X.Label.Text = "SHAP value (impact on blitz log-odds)"
	p.Add(zero, points)
	p.NominalY(labels...)

	return r.png(p)
}

func columnRange(X [][]float64, f int) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range X {
		v := row[f]
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func valueColor(v, lo, hi float64) color.Color {
	if math.IsNaN(v) {
		return nanColor
	}
	t := 0.5
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + t*(float64(b)-float64(a))))
	}
	return color.RGBA{
		R: lerp(lowColor.R, highColor.R),
		G: lerp(lowColor.G, highColor.G),
		B: lerp(lowColor.B, highColor.B),
		A: 255,
	}
}

// confusionGrid lays the matrix out with actual classes on the Y axis
// (first class at the top) and predicted classes on the X axis.
type confusionGrid struct {
	cm [2][2]int
}

func (g confusionGrid) Dims() (c, r int) { return 2, 2 }

func (g confusionGrid) Z(c, r int) float64 { return float64(g.cm[1-r][c]) }

func (g confusionGrid) X(c int) float64 { return float64(c) }

func (g confusionGrid) Y(r int) float64 { return float64(r) }

// ConfusionMatrix draws an annotated heatmap of cm, indexed
// [actual][predicted].
func (r *Renderer) ConfusionMatrix(cm [2][2]int, classes [2]string) ([]byte, error) {
	grid := confusionGrid{cm: cm}

	pal := palette.Heat(12, 1)
	heat := plotter.NewHeatMap(grid, pal)
	maxCell := 0
	for _, row := range cm {
		for _, v := range row {
			maxCell = max(maxCell, v)
		}
	}
	heat.Min = 0
	heat.Max = math.Max(float64(maxCell), 1)

	var xys plotter.XYs
	var text []string
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			xys = append(xys, plotter.XY{X: grid.X(col), Y: grid.Y(row)})
			text = append(text, fmt.Sprintf("%d", int(grid.Z(col, row))))
		}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: text})
	if err != nil {
		return nil, fmt.Errorf("cell labels: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = draw.XCenter
		labels.TextStyle[i].YAlign = draw.YCenter
		labels.TextStyle[i].Font.Size = vg.Points(18)
		labels.TextStyle[i].Color = color.White
		if grid.Z(i%2, i/2) > heat.Max/2 {
			labels.TextStyle[i].Color = color.Black
		}
	}

	p := plot.New()
	p.Title.Text = "Confusion matrix"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Actual"
	p.Add(heat, labels)
	p.NominalX(classes[0], classes[1])
	p.NominalY(classes[1], classes[0])

	return r.png(p)
}
