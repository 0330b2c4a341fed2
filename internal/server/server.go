// Package server exposes the blitz predictor and the insight plots over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"blitzwatch/internal/common"
	"blitzwatch/internal/insights"
	"blitzwatch/internal/ml"
)

const maxBodyBytes = 1 << 20

// InsightRenderer produces PNG plots.
type InsightRenderer interface {
	Render(kind insights.Kind) ([]byte, error)
}

// RequestMetrics counts served requests and server-side failures.
type RequestMetrics interface {
	HTTPRequestInc(route string, code int)
	ErrorsInc()
}

type Options struct {
	Port         int
	Threshold    float64
	CORSOrigins  []string
	ModelVersion string
	// Metrics and MetricsHandler are optional. MetricsHandler defaults to
	// the Prometheus default registry.
	Metrics        RequestMetrics
	MetricsHandler http.Handler
}

// ModelServer provides the HTTP API for blitz predictions.
type ModelServer struct {
	predictor ml.PredictorInterface
	insights  InsightRenderer
	opts      Options
	started   time.Time
	handler   http.Handler
	server    *http.Server
}

// NewModelServer creates a new HTTP server. renderer may be nil, in which
// case the plot routes answer 503.
func NewModelServer(predictor ml.PredictorInterface, renderer InsightRenderer, opts Options) *ModelServer {
	if opts.Threshold == 0 {
		opts.Threshold = common.DefaultProbThreshold
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = promhttp.Handler()
	}

	ms := &ModelServer{
		predictor: predictor,
		insights:  renderer,
		opts:      opts,
		started:   time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", ms.handlePredict)
	mux.HandleFunc("GET /insights/{kind}", ms.handleInsight)
	mux.HandleFunc("GET /health", ms.handleHealth)
	mux.HandleFunc("GET /model/info", ms.handleModelInfo)
	mux.Handle("GET /metrics", opts.MetricsHandler)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	ms.handler = c.Handler(ms.instrument(mux))

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      ms.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return ms
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (ms *ModelServer) Handler() http.Handler {
	return ms.handler
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("Starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (ms *ModelServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if ms.opts.Metrics != nil {
			ms.opts.Metrics.HTTPRequestInc(route, rec.status)
		}
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := ml.ValidateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	proba, err := ms.predictor.Predict(req.Play())
	if err != nil {
		if errors.Is(err, ml.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		log.Error().Err(err).Msg("Prediction failed")
		writeError(w, http.StatusInternalServerError, errors.New("prediction failed"))
		return
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		Proba:          proba,
		Recommendation: ml.Recommend(proba, ms.opts.Threshold),
		Threshold:      ms.opts.Threshold,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(dst)
	if err == nil {
		return nil
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var sizeErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return errors.New("request body is empty")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return errors.New("malformed JSON")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return ml.NewValidationError(ml.FieldError{
			Field:   field,
			Message: "must be a " + typeErr.Type.String(),
		})
	case errors.As(err, &sizeErr):
		return fmt.Errorf("request body exceeds %d bytes", sizeErr.Limit)
	}
	return fmt.Errorf("invalid request: %w", err)
}

func (ms *ModelServer) handleInsight(w http.ResponseWriter, r *http.Request) {
	kind, err := insights.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if ms.insights == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("insights are not available"))
		return
	}

	img, err := ms.insights.Render(kind)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("Insight rendering failed")
		if ms.opts.Metrics != nil {
			ms.opts.Metrics.ErrorsInc()
		}
		writeError(w, http.StatusInternalServerError, errors.New("rendering failed"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprint(len(img)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		log.Warn().Err(err).Msg("Failed to write insight image")
	}
}

type healthResponse struct {
	Status      string  `json:"status"`
	ModelLoaded bool    `json:"model_loaded"`
	Insights    bool    `json:"insights"`
	Uptime      float64 `json:"uptime_seconds"`
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := healthResponse{
		Status:      "ok",
		ModelLoaded: ms.predictor != nil && ms.predictor.Model() != nil,
		Insights:    ms.insights != nil,
		Uptime:      time.Since(ms.started).Seconds(),
	}

	status := http.StatusOK
	if !health.ModelLoaded {
		health.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

type modelInfo struct {
	Version         string    `json:"version,omitempty"`
	TrainedAt       time.Time `json:"trained_at"`
	LoadedAt        time.Time `json:"loaded_at"`
	Features        []string  `json:"features"`
	Trees           int       `json:"trees"`
	BaseScore       float64   `json:"base_score"`
	ScalePosWeight  float64   `json:"scale_pos_weight"`
	TrainingSamples int       `json:"training_samples"`
	Params          ml.Params `json:"params"`
	Threshold       float64   `json:"threshold"`
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	m := ms.predictor.Model()
	writeJSON(w, http.StatusOK, modelInfo{
		Version:         ms.opts.ModelVersion,
		TrainedAt:       m.TrainedAt,
		LoadedAt:        ms.predictor.LoadedAt(),
		Features:        m.FeatureNames,
		Trees:           len(m.Trees),
		BaseScore:       m.BaseScore,
		ScalePosWeight:  m.ScalePosWeight,
		TrainingSamples: m.TrainingSamples,
		Params:          m.Params,
		Threshold:       ms.opts.Threshold,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var verr *ml.ValidationError
	if errors.As(err, &verr) {
		resp.Error = ml.ErrInvalidInput.Error()
		resp.Fields = verr.Fields
	}
	writeJSON(w, status, resp)
}
