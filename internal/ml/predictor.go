package ml

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"blitzwatch/internal/common"
	"blitzwatch/internal/features"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLInvalidInputsInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLPredictionScoresObserve(float64)
}

// Predictor scores single plays against a loaded model. It holds no
// mutable state after construction and is safe for concurrent use.
type Predictor struct {
	model    *Model
	booster  *booster
	metrics  MetricsInterface
	loadedAt time.Time
}

// NewPredictor wraps an already loaded model and scores it by walking its
// trees. metrics may be nil.
func NewPredictor(model *Model, metrics MetricsInterface) *Predictor {
	p := &Predictor{
		model:    model,
		metrics:  metrics,
		loadedAt: time.Now(),
	}
	if metrics != nil && !model.TrainedAt.IsZero() {
		metrics.MLModelAgeSet(time.Since(model.TrainedAt).Seconds())
	}
	return p
}

// OpenPredictor loads the model at path and the LightGBM text model saved
// beside it, which scores every prediction. A missing artifact is reported
// as ErrModelNotFound.
func OpenPredictor(path string, metrics MetricsInterface) (*Predictor, error) {
	model, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	if model.NumFeatures() != features.NumFeatures {
		return nil, fmt.Errorf("model %s expects %d features, have %d", path, model.NumFeatures(), features.NumFeatures)
	}

	b, err := loadBooster(BoosterPath(path))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("model_path", path).
		Int("trees", len(model.Trees)).
		Time("trained_at", model.TrainedAt).
		Msg("Blitz model loaded")

	p := NewPredictor(model, metrics)
	p.booster = b
	return p, nil
}

// Predict validates the play, encodes it and returns the blitz probability.
func (p *Predictor) Predict(play features.Play) (float64, error) {
	start := time.Now()

	if err := ValidatePlay(play); err != nil {
		if p.metrics != nil {
			p.metrics.MLInvalidInputsInc()
		}
		return 0, err
	}

	proba, err := p.PredictVector(features.EngineerSingle(play))
	if err == nil && math.IsNaN(proba) {
		err = errors.New("model produced an undefined score")
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.MLFailuresInc()
		}
		return 0, err
	}

	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		p.metrics.MLPredictionScoresObserve(proba)
	}

	log.Debug().
		Int("down", play.Down).
		Int("ydstogo", play.YdsToGo).
		Str("pass_location", play.PassLocation).
		Float64("proba", proba).
		Msg("Blitz prediction")

	return proba, nil
}

// PredictVector scores an encoded play without validation. Undefined slots
// follow each split's default branch.
func (p *Predictor) PredictVector(v features.Vector) (float64, error) {
	if p.booster == nil {
		return p.model.PredictProba(v[:]), nil
	}
	probs, err := p.booster.score([][]float64{v[:]})
	if err != nil {
		return 0, fmt.Errorf("booster: %w", err)
	}
	return probs[0], nil
}

// Model returns the underlying model. Callers must not modify it.
func (p *Predictor) Model() *Model {
	return p.model
}

// LoadedAt reports when the predictor was constructed.
func (p *Predictor) LoadedAt() time.Time {
	return p.loadedAt
}

// Recommend maps a probability to BLITZ when it is strictly above threshold.
func Recommend(proba, threshold float64) string {
	if proba > threshold {
		return common.RecommendBlitz
	}
	return common.RecommendNoBlitz
}
