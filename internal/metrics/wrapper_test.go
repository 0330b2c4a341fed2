package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_PredictionCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if v := testutil.ToFloat64(metrics.MLPredictions); v != 0 {
		t.Errorf("Expected initial counter value 0, got %f", v)
	}

	wrapper.MLPredictionsInc()
	wrapper.MLPredictionsInc()
	if v := testutil.ToFloat64(metrics.MLPredictions); v != 2 {
		t.Errorf("Expected predictions 2, got %f", v)
	}

	wrapper.MLInvalidInputsInc()
	if v := testutil.ToFloat64(metrics.MLInvalidInputs); v != 1 {
		t.Errorf("Expected invalid inputs 1, got %f", v)
	}

	wrapper.MLFailuresInc()
	if v := testutil.ToFloat64(metrics.MLFailures); v != 1 {
		t.Errorf("Expected failures 1, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ErrorsTotal); v != 1 {
		t.Errorf("Expected failures to count as errors, got %f", v)
	}
}

func TestMetricsWrapper_Gauges(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.MLModelAgeSet(3600)
	if v := testutil.ToFloat64(metrics.MLModelAge); v != 3600 {
		t.Errorf("Expected model age 3600, got %f", v)
	}

	wrapper.TrainingAccuracySet(0.71)
	if v := testutil.ToFloat64(metrics.TrainingAccuracy); v != 0.71 {
		t.Errorf("Expected training accuracy 0.71, got %f", v)
	}

	wrapper.TrainingRunsInc()
	if v := testutil.ToFloat64(metrics.TrainingRuns); v != 1 {
		t.Errorf("Expected one training run, got %f", v)
	}
}

func TestMetricsWrapper_Histograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.MLLatencyObserve(0.0002)
	wrapper.MLPredictionScoresObserve(0.42)
	wrapper.InsightRenderObserve("shap_summary", 0.3)

	if n := testutil.CollectAndCount(metrics.MLLatency); n != 1 {
		t.Errorf("Expected latency histogram to be collected, got %d", n)
	}
	if v := testutil.ToFloat64(metrics.InsightRenders.WithLabelValues("shap_summary")); v != 1 {
		t.Errorf("Expected one shap_summary render, got %f", v)
	}
}

func TestMetricsWrapper_LabelledCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.HTTPRequestInc("/predict", 200)
	wrapper.HTTPRequestInc("/predict", 200)
	wrapper.HTTPRequestInc("/predict", 400)
	wrapper.InsightCacheHitInc()
	wrapper.ErrorsInc()

	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/predict", "200")); v != 2 {
		t.Errorf("Expected 2 successful predict requests, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/predict", "400")); v != 1 {
		t.Errorf("Expected 1 rejected predict request, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.InsightCacheHits); v != 1 {
		t.Errorf("Expected 1 cache hit, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ErrorsTotal); v != 1 {
		t.Errorf("Expected 1 error, got %f", v)
	}
}

func TestNewWithRegistry_RegistersEverything(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	NewWrapper(metrics).InsightRenderObserve("feature_importance", 0.1)
	NewWrapper(metrics).HTTPRequestInc("/health", 200)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{"ml_predictions_total", "insight_renders_total", "http_requests_total", "training_accuracy"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}
