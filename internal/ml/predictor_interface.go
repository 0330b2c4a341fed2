// Package ml provides the blitz classifier: a gradient-boosted tree ensemble
// trained from engineered play features, the predictor that scores single
// plays against a persisted model, and the explanation tooling (feature
// importance and TreeSHAP) consumed by the insight plots.
//
// Models are trained offline, saved as JSON beside a LightGBM text model,
// and loaded once per process. A loaded model is read-only, so one
// Predictor can serve concurrent requests.
package ml

import (
	"time"

	"blitzwatch/internal/features"
)

// PredictorInterface defines what the HTTP layer and the interactive prompt
// need from a predictor.
type PredictorInterface interface {
	// Predict validates one play and returns its blitz probability in [0, 1].
	Predict(play features.Play) (float64, error)

	// Model returns the loaded model for inspection.
	Model() *Model

	// LoadedAt reports when the model was loaded into this process.
	LoadedAt() time.Time
}

var _ PredictorInterface = (*Predictor)(nil)
