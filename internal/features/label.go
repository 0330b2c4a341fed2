// Package features derives the blitz target and the ten-column feature
// vector from play records. Training and inference share one transform, so
// a play encodes identically whether it arrives from the historical dataset
// or from a single prediction request.
package features

import "blitzwatch/internal/plays"

// Labeled is a play record with its derived target.
type Labeled struct {
	plays.Record
	Blitz bool
}

// Label marks a play as a blitz when the quarterback was hit or pressured.
// A dataset without a pressure column counts pressure as false everywhere.
func Label(ds plays.Dataset) []Labeled {
	out := make([]Labeled, len(ds.Records))
	for i, r := range ds.Records {
		blitz := r.QBHit == 1
		if ds.HasPressure && r.Pressure == 1 {
			blitz = true
		}
		out[i] = Labeled{Record: r, Blitz: blitz}
	}
	return out
}

// Play is one play described by already-typed fields, as collected by the
// HTTP handler or the interactive prompt. PassLength may be empty.
type Play struct {
	Down                 int    `json:"down" validate:"min=1,max=4"`
	YdsToGo              int    `json:"ydstogo" validate:"min=1,max=99"`
	YardLine100          int    `json:"yardline_100" validate:"min=1,max=99"`
	Qtr                  int    `json:"qtr" validate:"min=1,max=5"`
	GameSecondsRemaining int    `json:"game_seconds_remaining" validate:"min=0,max=3600"`
	PosteamScore         int    `json:"posteam_score" validate:"min=0"`
	DefteamScore         int    `json:"defteam_score" validate:"min=0"`
	PassLocation         string `json:"pass_location" validate:"required,oneof=left middle right"`
	PassLength           string `json:"pass_length" validate:"omitempty,oneof=short deep none"`
	Shotgun              bool   `json:"shotgun"`
	NoHuddle             bool   `json:"no_huddle"`
}

// GameSecondsRemaining converts a game clock reading into the seconds
// column the model was trained on.
func GameSecondsRemaining(minLeft, secLeft int) int {
	return minLeft*60 + secLeft
}
