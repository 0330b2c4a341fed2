package features

import "math"

// Vector is one encoded play. Field order is fixed and shared by training,
// inference, model artifacts and every plot.
type Vector [NumFeatures]float64

const (
	IdxDown = iota
	IdxYdsToGo
	IdxYardLine100
	IdxQtr
	IdxGameSecondsRemaining
	IdxScoreDifferential
	IdxPassLocation
	IdxPassLength
	IdxShotgun
	IdxNoHuddle

	NumFeatures
)

// Names holds the column name for each Vector index.
var Names = [NumFeatures]string{
	IdxDown:                 "down",
	IdxYdsToGo:              "ydstogo",
	IdxYardLine100:          "yardline_100",
	IdxQtr:                  "qtr",
	IdxGameSecondsRemaining: "game_seconds_remaining",
	IdxScoreDifferential:    "score_differential",
	IdxPassLocation:         "pass_location",
	IdxPassLength:           "pass_length",
	IdxShotgun:              "shotgun",
	IdxNoHuddle:             "no_huddle",
}

// PassLengthUnknown encodes any pass length other than short or deep.
const PassLengthUnknown = -1

var passLocationCodes = map[string]float64{
	"left":   0,
	"middle": 1,
	"right":  2,
}

var passLengthCodes = map[string]float64{
	"short": 0,
	"deep":  1,
}

// EncodePassLocation returns NaN for anything outside left/middle/right.
func EncodePassLocation(v string) float64 {
	if c, ok := passLocationCodes[v]; ok {
		return c
	}
	return math.NaN()
}

// EncodePassLength never returns NaN: unknown and missing lengths share the
// PassLengthUnknown sentinel.
func EncodePassLength(v string) float64 {
	if c, ok := passLengthCodes[v]; ok {
		return c
	}
	return PassLengthUnknown
}

// Slice returns the vector as a slice backed by a copy.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// HasMissing reports whether any slot is undefined.
func (v Vector) HasMissing() bool {
	for _, f := range v {
		if math.IsNaN(f) {
			return true
		}
	}
	return false
}

// Rows converts vectors into the row-major matrix the classifier consumes.
func Rows(X []Vector) [][]float64 {
	rows := make([][]float64, len(X))
	for i := range X {
		rows[i] = X[i].Slice()
	}
	return rows
}

// row is the typed intermediate both entry points lower to before encoding.
type row struct {
	down, ydsToGo, yardLine100, qtr float64
	secondsRemaining                float64
	posteamScore, defteamScore      float64
	passLocation, passLength        string
	shotgun, noHuddle               float64
	target                          float64
}

func encode(r row) Vector {
	return Vector{
		IdxDown:                 r.down,
		IdxYdsToGo:              r.ydsToGo,
		IdxYardLine100:          r.yardLine100,
		IdxQtr:                  r.qtr,
		IdxGameSecondsRemaining: r.secondsRemaining,
		IdxScoreDifferential:    r.posteamScore - r.defteamScore,
		IdxPassLocation:         EncodePassLocation(r.passLocation),
		IdxPassLength:           EncodePassLength(r.passLength),
		IdxShotgun:              r.shotgun,
		IdxNoHuddle:             r.noHuddle,
	}
}

// transform is the single encoding path. With dropMissing set, rows with an
// undefined feature or target are removed from both outputs together.
func transform(rows []row, dropMissing bool) ([]Vector, []float64) {
	X := make([]Vector, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for _, r := range rows {
		v := encode(r)
		if dropMissing && (v.HasMissing() || math.IsNaN(r.target)) {
			continue
		}
		X = append(X, v)
		y = append(y, r.target)
	}
	return X, y
}

// Engineer encodes labeled plays for training. Rows with any undefined
// feature are dropped; X[i] and y[i] always describe the same play.
func Engineer(rows []Labeled) ([]Vector, []float64) {
	in := make([]row, len(rows))
	for i, l := range rows {
		in[i] = fromLabeled(l)
	}
	return transform(in, true)
}

// EngineerSingle encodes one play for inference. Nothing is dropped: an
// unmapped pass location yields NaN in its slot.
func EngineerSingle(p Play) Vector {
	X, _ := transform([]row{fromPlay(p)}, false)
	return X[0]
}

func fromLabeled(l Labeled) row {
	target := 0.0
	if l.Blitz {
		target = 1
	}
	return row{
		down:             l.Down,
		ydsToGo:          l.YdsToGo,
		yardLine100:      l.YardLine100,
		qtr:              l.Qtr,
		secondsRemaining: l.GameSecondsRemaining,
		posteamScore:     l.PosteamScore,
		defteamScore:     l.DefteamScore,
		passLocation:     l.PassLocation,
		passLength:       l.PassLength,
		shotgun:          l.Shotgun,
		noHuddle:         l.NoHuddle,
		target:           target,
	}
}

func fromPlay(p Play) row {
	return row{
		down:             float64(p.Down),
		ydsToGo:          float64(p.YdsToGo),
		yardLine100:      float64(p.YardLine100),
		qtr:              float64(p.Qtr),
		secondsRemaining: float64(p.GameSecondsRemaining),
		posteamScore:     float64(p.PosteamScore),
		defteamScore:     float64(p.DefteamScore),
		passLocation:     p.PassLocation,
		passLength:       p.PassLength,
		shotgun:          boolToFloat(p.Shotgun),
		noHuddle:         boolToFloat(p.NoHuddle),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
