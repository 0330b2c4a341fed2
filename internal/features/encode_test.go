package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blitzwatch/internal/plays"
)

func record(mut func(r *plays.Record)) plays.Record {
	r := plays.Record{
		Down:                 1,
		YdsToGo:              10,
		YardLine100:          75,
		Qtr:                  1,
		GameSecondsRemaining: 3600,
		PosteamScore:         0,
		DefteamScore:         0,
		PassLocation:         "left",
		PassLength:           "short",
		Shotgun:              1,
		NoHuddle:             0,
		QBHit:                0,
		Pressure:             math.NaN(),
	}
	if mut != nil {
		mut(&r)
	}
	return r
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name        string
		qbHit       float64
		pressure    float64
		hasPressure bool
		want        bool
	}{
		{"qb hit", 1, 0, true, true},
		{"pressure only", 0, 1, true, true},
		{"neither", 0, 0, true, false},
		{"both", 1, 1, true, true},
		{"pressure column absent", 0, math.NaN(), false, false},
		{"pressure column absent with hit", 1, math.NaN(), false, true},
		{"missing qb hit", math.NaN(), 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := plays.Dataset{
				Records: []plays.Record{record(func(r *plays.Record) {
					r.QBHit = tt.qbHit
					r.Pressure = tt.pressure
				})},
				HasPressure: tt.hasPressure,
			}
			got := Label(ds)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Blitz)
		})
	}
}

func TestLabel_AbsentPressureMatchesZero(t *testing.T) {
	base := []plays.Record{
		record(func(r *plays.Record) { r.QBHit = 1 }),
		record(func(r *plays.Record) { r.QBHit = 0 }),
	}

	absent := Label(plays.Dataset{Records: base})

	zeroed := make([]plays.Record, len(base))
	copy(zeroed, base)
	for i := range zeroed {
		zeroed[i].Pressure = 0
	}
	present := Label(plays.Dataset{Records: zeroed, HasPressure: true})

	for i := range absent {
		assert.Equal(t, present[i].Blitz, absent[i].Blitz, "row %d", i)
	}
}

func TestEncodePassLength(t *testing.T) {
	assert.Equal(t, 0.0, EncodePassLength("short"))
	assert.Equal(t, 1.0, EncodePassLength("deep"))
	assert.Equal(t, -1.0, EncodePassLength("none"))
	assert.Equal(t, -1.0, EncodePassLength(""))
	assert.Equal(t, -1.0, EncodePassLength("medium"))
}

func TestEncodePassLocation(t *testing.T) {
	assert.Equal(t, 0.0, EncodePassLocation("left"))
	assert.Equal(t, 1.0, EncodePassLocation("middle"))
	assert.Equal(t, 2.0, EncodePassLocation("right"))
	assert.True(t, math.IsNaN(EncodePassLocation("unknown")))
	assert.True(t, math.IsNaN(EncodePassLocation("")))
}

func TestEngineer_DropsUndefinedRowsAndKeepsAlignment(t *testing.T) {
	unknownLocation := record(func(r *plays.Record) { r.PassLocation = "unknown" })
	unknownLocation.Down = 2
	noLength := record(func(r *plays.Record) { r.PassLength = "" })
	noLength.Down = 3
	noShotgun := record(func(r *plays.Record) { r.Shotgun = math.NaN() })
	noShotgun.Down = 4

	rows := []Labeled{
		{Record: record(nil), Blitz: false},
		{Record: unknownLocation, Blitz: true},
		{Record: noLength, Blitz: true},
		{Record: record(func(r *plays.Record) { r.Down = math.NaN() }), Blitz: false},
		{Record: noShotgun, Blitz: true},
		{Record: record(func(r *plays.Record) { r.Down = 4 }), Blitz: true},
	}

	X, y := Engineer(rows)
	require.Len(t, X, 3)
	require.Len(t, y, len(X))

	assert.Equal(t, 1.0, X[0][IdxDown])
	assert.Equal(t, 0.0, y[0])

	// The missing pass length is a sentinel, not a drop.
	assert.Equal(t, 3.0, X[1][IdxDown])
	assert.Equal(t, float64(PassLengthUnknown), X[1][IdxPassLength])
	assert.Equal(t, 1.0, y[1])

	assert.Equal(t, 4.0, X[2][IdxDown])
	assert.Equal(t, 1.0, y[2])

	for _, v := range X {
		assert.False(t, v.HasMissing())
	}
}

func TestEngineer_MatchesEngineerSingle(t *testing.T) {
	p := Play{
		Down:                 1,
		YdsToGo:              10,
		YardLine100:          75,
		Qtr:                  1,
		GameSecondsRemaining: 3600,
		PassLocation:         "left",
		PassLength:           "short",
		Shotgun:              true,
	}

	X, _ := Engineer([]Labeled{{Record: record(nil)}})
	require.Len(t, X, 1)

	single := EngineerSingle(p)
	assert.Equal(t, X[0], single)
	assert.Equal(t, []float64{0, 0, 1, 0}, single.Slice()[IdxPassLocation:])
}

func TestEngineerSingle_UnknownLocationIsUndefined(t *testing.T) {
	p := Play{Down: 2, YdsToGo: 5, YardLine100: 50, Qtr: 3, PassLocation: "unknown"}

	var v Vector
	assert.NotPanics(t, func() { v = EngineerSingle(p) })
	assert.True(t, math.IsNaN(v[IdxPassLocation]))
	assert.Equal(t, 2.0, v[IdxDown])

	X, y := Engineer([]Labeled{{Record: record(func(r *plays.Record) { r.PassLocation = "unknown" })}})
	assert.Empty(t, X)
	assert.Empty(t, y)
}

func TestEngineerSingle_ExactVector(t *testing.T) {
	p := Play{
		Down:                 3,
		YdsToGo:              7,
		YardLine100:          40,
		Qtr:                  2,
		GameSecondsRemaining: GameSecondsRemaining(1, 30),
		PosteamScore:         14,
		DefteamScore:         17,
		PassLocation:         "right",
		PassLength:           "deep",
		Shotgun:              true,
		NoHuddle:             false,
	}

	assert.Equal(t, Vector{3, 7, 40, 2, 90, -3, 2, 1, 1, 0}, EngineerSingle(p))
}

func TestRows(t *testing.T) {
	X := []Vector{{1, 2, 3}, {4}}
	rows := Rows(X)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], NumFeatures)

	rows[0][0] = 99
	assert.Equal(t, 1.0, X[0][0], "rows must not alias the input vectors")
}
