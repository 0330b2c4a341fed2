package insights

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"blitzwatch/internal/features"
	"blitzwatch/internal/ml"
	"blitzwatch/internal/plays"
)

// Kind names one diagnostic plot.
type Kind string

const (
	KindFeatureImportance Kind = "feature_importance"
	KindSHAPSummary       Kind = "shap_summary"
	KindConfusionMatrix   Kind = "confusion_matrix"
)

// Kinds lists every plot in the order the CLI writes them.
var Kinds = []Kind{KindFeatureImportance, KindSHAPSummary, KindConfusionMatrix}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown insight %q", s)
}

// Metrics receives rendering statistics.
type Metrics interface {
	InsightRenderObserve(kind string, seconds float64)
	InsightCacheHitInc()
}

// Holdout is the model together with the held-out rows it is diagnosed on.
type Holdout struct {
	Model *ml.Model
	X     [][]float64
	Y     []float64
}

// LoadHoldout rebuilds the evaluation split of a training run from the
// cached play data. The same testSize and seed select the same rows the
// trainer evaluated on.
func LoadHoldout(model *ml.Model, dataPath string, testSize float64, seed int64) (Holdout, error) {
	ds, err := plays.LoadCSV(dataPath)
	if err != nil {
		return Holdout{}, err
	}
	X, y := features.Engineer(features.Label(ds))
	Xte, yte, err := ml.HoldoutSet(features.Rows(X), y, testSize, seed)
	if err != nil {
		return Holdout{}, err
	}
	return Holdout{Model: model, X: Xte, Y: yte}, nil
}

type Config struct {
	Threshold      float64
	SHAPSamples    int
	Seed           int64
	ImportanceType ml.ImportanceType
	CacheTTL       time.Duration
}

// Service renders insight plots on demand and keeps the PNG bytes in an
// in-process cache. Its inputs are read-only after construction, so a
// cached image stays valid until it expires.
type Service struct {
	holdout  Holdout
	cfg      Config
	renderer *Renderer
	cache    *cache.Cache
	metrics  Metrics
}

// NewService creates a Service. metrics may be nil.
func NewService(h Holdout, cfg Config, renderer *Renderer, metrics Metrics) *Service {
	if renderer == nil {
		renderer = NewRenderer()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Service{
		holdout:  h,
		cfg:      cfg,
		renderer: renderer,
		cache:    cache.New(ttl, 10*time.Minute),
		metrics:  metrics,
	}
}

// Render returns the PNG bytes of the requested plot.
func (s *Service) Render(kind Kind) ([]byte, error) {
	if v, ok := s.cache.Get(string(kind)); ok {
		if s.metrics != nil {
			s.metrics.InsightCacheHitInc()
		}
		return v.([]byte), nil
	}

	start := time.Now()
	var img []byte
	var err error
	switch kind {
	case KindFeatureImportance:
		img, err = s.featureImportance()
	case KindSHAPSummary:
		img, err = s.shapSummary()
	case KindConfusionMatrix:
		img, err = s.confusionMatrix()
	default:
		return nil, fmt.Errorf("unknown insight %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.InsightRenderObserve(string(kind), elapsed.Seconds())
	}
	log.Debug().Str("kind", string(kind)).Dur("elapsed", elapsed).Int("bytes", len(img)).Msg("Rendered insight")

	s.cache.Set(string(kind), img, cache.DefaultExpiration)
	return img, nil
}

func (s *Service) featureImportance() ([]byte, error) {
	m := s.holdout.Model
	return s.renderer.FeatureImportance(m.FeatureNames, m.FeatureImportance(s.cfg.ImportanceType), s.cfg.ImportanceType.String())
}

func (s *Service) shapSummary() ([]byte, error) {
	X, _ := ml.SampleRows(s.holdout.X, s.holdout.Y, s.cfg.SHAPSamples, s.cfg.Seed)
	values, err := s.holdout.Model.SHAPBatch(X)
	if err != nil {
		return nil, err
	}
	return s.renderer.SHAPSummary(s.holdout.Model.FeatureNames, values, X)
}

func (s *Service) confusionMatrix() ([]byte, error) {
	if len(s.holdout.X) == 0 {
		return nil, ErrNoData
	}
	eval := ml.Evaluate(s.holdout.Y, s.holdout.Model.PredictProbaBatch(s.holdout.X), s.cfg.Threshold)
	return s.renderer.ConfusionMatrix(eval.Confusion, [2]string{"No Blitz", "Blitz"})
}

// WriteAll renders every plot into dir as <kind>.png and returns the
// written paths.
func (s *Service) WriteAll(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot directory: %w", err)
	}
	paths := make([]string, 0, len(Kinds))
	for _, kind := range Kinds {
		img, err := s.Render(kind)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, string(kind)+".png")
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
