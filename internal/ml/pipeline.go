package ml

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"blitzwatch/internal/features"
	"blitzwatch/internal/plays"
	"blitzwatch/internal/storage"
)

// Registry records trained model versions.
type Registry interface {
	AddVersion(path string, metrics storage.ModelMetrics, activate bool) (storage.ModelVersion, error)
}

// TrainingMetrics receives the outcome of a training run.
type TrainingMetrics interface {
	TrainingRunsInc()
	TrainingAccuracySet(float64)
}

// TrainOptions configures TrainAndEvaluate.
type TrainOptions struct {
	DataPath string
	Config   TrainConfig
	// Registry and Metrics are optional.
	Registry Registry
	Metrics  TrainingMetrics
	// ImportanceSamples caps the held-out rows used for SHAP and
	// permutation importance. Zero skips the importance report.
	ImportanceSamples int
}

// TrainingRun is the result of TrainAndEvaluate.
type TrainingRun struct {
	Model      *Model
	Evaluation *Evaluation
	Importance *ImportanceReport
	Version    *storage.ModelVersion
	Rows       int
	Dropped    int
}

// TrainAndEvaluate runs the offline pipeline: load the cached plays, label
// them, engineer features, train and evaluate, then save and register the
// model. With a registry the model is also saved under a per-version path,
// and that path is what the registry records.
func TrainAndEvaluate(ctx context.Context, opts TrainOptions) (*TrainingRun, error) {
	ds, err := plays.LoadCSV(opts.DataPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	labeled := features.Label(ds)
	X, y := features.Engineer(labeled)
	run := &TrainingRun{Rows: len(X), Dropped: len(labeled) - len(X)}

	log.Info().
		Int("plays", len(labeled)).
		Int("rows", run.Rows).
		Int("dropped", run.Dropped).
		Msg("Engineered training features")

	rows := features.Rows(X)
	model, eval, err := Train(rows, y, opts.Config)
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}
	run.Model, run.Evaluation = model, eval

	if opts.Metrics != nil {
		opts.Metrics.TrainingRunsInc()
		opts.Metrics.TrainingAccuracySet(eval.Accuracy)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A registered run gets its own artifact so older versions stay
	// loadable after the canonical path is overwritten.
	artifact := opts.Config.ModelPath
	if opts.Registry != nil && artifact != "" {
		artifact = versionedPath(artifact, model.TrainedAt)
		if err := model.Save(artifact); err != nil {
			return nil, err
		}
	}

	if opts.ImportanceSamples > 0 {
		Xte, yte, err := HoldoutSet(rows, y, opts.Config.TestSize, opts.Config.Seed)
		if err != nil {
			return nil, err
		}
		Xs, ys := SampleRows(Xte, yte, opts.ImportanceSamples, opts.Config.Seed)
		run.Importance, err = ComputeImportance(model, Xs, ys, opts.Config.Threshold, opts.Config.Seed)
		if err != nil {
			return nil, fmt.Errorf("feature importance: %w", err)
		}
		for _, p := range uniquePaths(opts.Config.ModelPath, artifact) {
			if err := run.Importance.Save(ImportancePath(p)); err != nil {
				log.Warn().Err(err).Msg("Failed to save feature importance report")
			}
		}
	}

	if opts.Registry != nil && artifact != "" {
		cls := eval.Classes[ClassBlitz]
		v, err := opts.Registry.AddVersion(artifact, storage.ModelMetrics{
			AUCScore:        eval.AUC,
			Accuracy:        eval.Accuracy,
			F1Score:         cls.F1,
			Precision:       cls.Precision,
			Recall:          cls.Recall,
			Threshold:       eval.Threshold,
			ScalePosWeight:  model.ScalePosWeight,
			TrainingSamples: model.TrainingSamples,
			TestSamples:     eval.Samples,
		}, true)
		if err != nil {
			return nil, fmt.Errorf("register model version: %w", err)
		}
		run.Version = &v
		log.Info().Str("version", v.Version).Str("model_path", v.Path).Msg("Model version registered")
	}

	return run, nil
}

// versionedPath returns a sibling of modelPath unique to one training run,
// e.g. models/gbdt_blitz-20240102-150405-1a2b3c4d.json.
func versionedPath(modelPath string, trainedAt time.Time) string {
	ext := filepath.Ext(modelPath)
	return fmt.Sprintf("%s-%s-%s%s",
		strings.TrimSuffix(modelPath, ext), trainedAt.UTC().Format("20060102-150405"), uuid.NewString()[:8], ext)
}

func uniquePaths(paths ...string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// SampleRows returns at most n rows chosen with a seeded shuffle, kept in
// their original order.
func SampleRows(X [][]float64, y []float64, n int, seed int64) ([][]float64, []float64) {
	if n <= 0 || n >= len(X) {
		return X, y
	}
	idx := rand.New(rand.NewSource(seed)).Perm(len(X))[:n]
	sort.Ints(idx)
	return subsetRows(X, idx), subsetTargets(y, idx)
}
