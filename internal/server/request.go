package server

import (
	"bytes"
	"encoding/json"
	"reflect"

	"blitzwatch/internal/features"
	"blitzwatch/internal/ml"
)

// PredictRequest is the /predict payload. Numeric fields are pointers so a
// missing or null value is reported instead of silently becoming zero.
type PredictRequest struct {
	Down         *int      `json:"down" validate:"required,min=1,max=4"`
	YdsToGo      *int      `json:"ydstogo" validate:"required,min=1,max=99"`
	YardLine100  *int      `json:"yardline_100" validate:"required,min=1,max=99"`
	Qtr          *int      `json:"qtr" validate:"required,min=1,max=5"`
	MinLeft      *int      `json:"min_left" validate:"required,min=0,max=15"`
	SecLeft      *int      `json:"sec_left" validate:"required,min=0,max=59"`
	PosteamScore *int      `json:"posteam_score" validate:"required,min=0"`
	DefteamScore *int      `json:"defteam_score" validate:"required,min=0"`
	PassLocation string    `json:"pass_location" validate:"required,oneof=left middle right"`
	PassLength   *string   `json:"pass_length" validate:"omitempty,oneof=short deep none"`
	Shotgun      *flexBool `json:"shotgun" validate:"required"`
	NoHuddle     *flexBool `json:"no_huddle" validate:"required"`
}

// Play converts a validated request into the model input.
func (r PredictRequest) Play() features.Play {
	p := features.Play{
		Down:                 *r.Down,
		YdsToGo:              *r.YdsToGo,
		YardLine100:          *r.YardLine100,
		Qtr:                  *r.Qtr,
		GameSecondsRemaining: features.GameSecondsRemaining(*r.MinLeft, *r.SecLeft),
		PosteamScore:         *r.PosteamScore,
		DefteamScore:         *r.DefteamScore,
		PassLocation:         r.PassLocation,
		Shotgun:              bool(*r.Shotgun),
		NoHuddle:             bool(*r.NoHuddle),
	}
	if r.PassLength != nil {
		p.PassLength = *r.PassLength
	}
	return p
}

// flexBool accepts a JSON boolean or the integers 0 and 1.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0":
		*b = false
	default:
		return &json.UnmarshalTypeError{Value: string(data), Type: reflect.TypeOf(true)}
	}
	return nil
}

// PredictResponse is the /predict result.
type PredictResponse struct {
	Proba          float64 `json:"proba"`
	Recommendation string  `json:"recommendation"`
	Threshold      float64 `json:"threshold"`
}

// ErrorResponse is returned with every 4xx and 5xx status.
type ErrorResponse struct {
	Error  string          `json:"error"`
	Fields []ml.FieldError `json:"fields,omitempty"`
}
