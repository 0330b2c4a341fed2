// Package plays loads historical pass plays, either from the nflverse
// play-by-play release or from a cached flat CSV file, and restricts them to
// the columns the blitz model consumes.
//
// Numeric columns are float64 with NaN marking a value the source left
// empty; categorical columns are strings with "" marking a missing value.
package plays

import "math"

// Column names, as they appear in nflverse play-by-play files.
const (
	ColGameID               = "game_id"
	ColPlayID               = "play_id"
	ColPosteam              = "posteam"
	ColDefteam              = "defteam"
	ColQtr                  = "qtr"
	ColDown                 = "down"
	ColYdsToGo              = "ydstogo"
	ColYardLine100          = "yardline_100"
	ColGameSecondsRemaining = "game_seconds_remaining"
	ColPosteamScore         = "posteam_score"
	ColDefteamScore         = "defteam_score"
	ColPassLocation         = "pass_location"
	ColPassLength           = "pass_length"
	ColShotgun              = "shotgun"
	ColNoHuddle             = "no_huddle"
	ColQBHit                = "qb_hit"
	ColPressure             = "pressure"
	ColPlayType             = "play_type"
)

// WantedColumns is the best-effort column set kept from the source, in
// output order. Pressure is appended only when the source provides it.
var WantedColumns = []string{
	ColGameID,
	ColPlayID,
	ColPosteam,
	ColDefteam,
	ColQtr,
	ColDown,
	ColYdsToGo,
	ColYardLine100,
	ColGameSecondsRemaining,
	ColPosteamScore,
	ColDefteamScore,
	ColPassLocation,
	ColPassLength,
	ColShotgun,
	ColNoHuddle,
	ColQBHit,
}

// RequiredColumns must be present for a file to be usable for training.
var RequiredColumns = []string{
	ColQtr,
	ColDown,
	ColYdsToGo,
	ColYardLine100,
	ColGameSecondsRemaining,
	ColPosteamScore,
	ColDefteamScore,
	ColPassLocation,
	ColPassLength,
	ColShotgun,
	ColNoHuddle,
	ColQBHit,
}

// Record is one observed pass play. Records are never mutated after load.
type Record struct {
	GameID  string
	PlayID  string
	Posteam string
	Defteam string

	Down                 float64
	YdsToGo              float64
	YardLine100          float64
	Qtr                  float64
	GameSecondsRemaining float64
	PosteamScore         float64
	DefteamScore         float64
	PassLocation         string
	PassLength           string
	Shotgun              float64
	NoHuddle             float64
	QBHit                float64
	Pressure             float64
}

// Dataset is a loaded set of records. HasPressure reports whether the
// source carried a pressure column at all; when false every Record's
// Pressure is NaN.
type Dataset struct {
	Records     []Record
	HasPressure bool
}

// Len returns the number of records.
func (d Dataset) Len() int {
	return len(d.Records)
}

// Columns returns the column set written for this dataset.
func (d Dataset) Columns() []string {
	cols := make([]string, len(WantedColumns), len(WantedColumns)+1)
	copy(cols, WantedColumns)
	if d.HasPressure {
		cols = append(cols, ColPressure)
	}
	return cols
}

// newRecord returns a Record with every numeric field missing.
func newRecord() Record {
	nan := math.NaN()
	return Record{
		Down:                 nan,
		YdsToGo:              nan,
		YardLine100:          nan,
		Qtr:                  nan,
		GameSecondsRemaining: nan,
		PosteamScore:         nan,
		DefteamScore:         nan,
		Shotgun:              nan,
		NoHuddle:             nan,
		QBHit:                nan,
		Pressure:             nan,
	}
}
