package ml

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"blitzwatch/internal/features"
)

// TrainConfig controls one training run.
type TrainConfig struct {
	TestSize  float64
	Seed      int64
	Threshold float64
	Params    Params
	// ModelPath, when set, is where the fitted model is saved.
	ModelPath string
}

// DefaultTrainConfig mirrors the defaults in internal/common.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TestSize:  0.2,
		Seed:      42,
		Threshold: 0.5,
		Params:    DefaultParams(),
	}
}

// Train splits X/y with a stratified split, fits a classifier weighted by
// the training split's negative/positive ratio, evaluates it on the held-out
// rows and saves it when cfg.ModelPath is set.
func Train(X [][]float64, y []float64, cfg TrainConfig) (*Model, *Evaluation, error) {
	if len(X) != len(y) {
		return nil, nil, fmt.Errorf("feature rows (%d) and targets (%d) differ", len(X), len(y))
	}
	start := time.Now()

	trainIdx, testIdx, err := StratifiedSplit(y, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}
	Xtr, ytr := subsetRows(X, trainIdx), subsetTargets(y, trainIdx)
	Xte, yte := subsetRows(X, testIdx), subsetTargets(y, testIdx)

	scale, err := ScalePosWeight(ytr)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Int("train_rows", len(Xtr)).
		Int("test_rows", len(Xte)).
		Float64("scale_pos_weight", scale).
		Msg("Training blitz classifier")

	model, err := fit(Xtr, ytr, scale, cfg.Params, features.Names[:])
	if err != nil {
		return nil, nil, err
	}

	eval := Evaluate(yte, model.PredictProbaBatch(Xte), cfg.Threshold)

	log.Info().
		Float64("accuracy", eval.Accuracy).
		Float64("auc", eval.AUC).
		Float64("threshold", cfg.Threshold).
		Dur("elapsed", time.Since(start)).
		Msg("Training complete")

	if cfg.ModelPath != "" {
		if err := model.Save(cfg.ModelPath); err != nil {
			return nil, nil, err
		}
	}

	return model, eval, nil
}
