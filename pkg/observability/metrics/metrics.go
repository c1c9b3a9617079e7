package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var (
	predictionsTotal    atomic.Int64
	predictionsFailed   atomic.Int64
	predictionsCached   atomic.Int64
	validationRejected  atomic.Int64
	unknownCategories   atomic.Int64
	latencyMicrosTotal  atomic.Int64
	artifactLoadFailure atomic.Int64

	labelsMu sync.Mutex
	byLabel  = map[string]int64{}
)

// ObservePrediction records a successful prediction.
func ObservePrediction(label string, cached bool, latency time.Duration) {
	predictionsTotal.Add(1)
	if cached {
		predictionsCached.Add(1)
	}
	latencyMicrosTotal.Add(latency.Microseconds())

	labelsMu.Lock()
	byLabel[label]++
	labelsMu.Unlock()
}

func ObserveFailure() {
	predictionsFailed.Add(1)
}

func ObserveValidationRejected() {
	validationRejected.Add(1)
}

func ObserveUnknownCategory() {
	unknownCategories.Add(1)
}

func ObserveArtifactLoadFailure() {
	artifactLoadFailure.Add(1)
}

// Reset zeroes every counter; used by tests.
func Reset() {
	predictionsTotal.Store(0)
	predictionsFailed.Store(0)
	predictionsCached.Store(0)
	validationRejected.Store(0)
	unknownCategories.Store(0)
	latencyMicrosTotal.Store(0)
	artifactLoadFailure.Store(0)
	labelsMu.Lock()
	byLabel = map[string]int64{}
	labelsMu.Unlock()
}

func PredictionsFailed() int64 {
	return predictionsFailed.Load()
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeMetrics(w)
}

func writeMetrics(w io.Writer) {
	counter := func(name, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n", name, value)
	}

	counter("obesity_predictions_total", "Number of predictions served.", predictionsTotal.Load())
	counter("obesity_predictions_failed_total", "Number of prediction requests that failed.", predictionsFailed.Load())
	counter("obesity_predictions_cached_total", "Number of predictions served from the cache.", predictionsCached.Load())
	counter("obesity_validation_rejected_total", "Number of observations rejected by bounds validation.", validationRejected.Load())
	counter("obesity_unknown_category_total", "Number of observations with a category unseen at fit time.", unknownCategories.Load())
	counter("obesity_artifact_load_failures_total", "Number of failed artifact loads.", artifactLoadFailure.Load())
	counter("obesity_prediction_latency_microseconds_total", "Cumulative prediction latency in microseconds.", latencyMicrosTotal.Load())

	labelsMu.Lock()
	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	fmt.Fprintf(w, "# HELP obesity_predictions_by_label_total Number of predictions per predicted label.\n")
	fmt.Fprintf(w, "# TYPE obesity_predictions_by_label_total counter\n")
	for _, label := range labels {
		fmt.Fprintf(w, "obesity_predictions_by_label_total{label=%q} %d\n", label, byLabel[label])
	}
	labelsMu.Unlock()
}
