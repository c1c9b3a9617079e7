package serving

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/common/models"
	"github.com/vitalis-health/obesity-risk/pkg/ml/preprocess"
	"github.com/vitalis-health/obesity-risk/pkg/observability/metrics"
	"github.com/vitalis-health/obesity-risk/pkg/observation"
	"github.com/vitalis-health/obesity-risk/pkg/serving/form"
	"github.com/vitalis-health/obesity-risk/pkg/serving/predictor"
)

// Predictions is the prediction request handler behind the HTTP surface.
type Predictions interface {
	Predict(ctx context.Context, obs observation.Observation) (models.PredictionResult, error)
	Schema() (models.SchemaInfo, error)
}

// HistoryReader lists stored predictions.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]PredictionLog, error)
}

type HTTPHandler struct {
	predictions Predictions
	history     HistoryReader
	definition  form.Definition
	renderer    *form.Renderer
}

// NewHTTPHandler wires the form and API routes. history may be nil when no
// prediction storage is configured.
func NewHTTPHandler(predictions Predictions, history HistoryReader, definition form.Definition) *HTTPHandler {
	return &HTTPHandler{
		predictions: predictions,
		history:     history,
		definition:  definition,
		renderer:    form.NewRenderer(),
	}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/", h.handleForm).Methods(http.MethodGet)
	router.HandleFunc("/", h.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/metrics", handleMetrics).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/predict", h.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/schema", h.handleSchema).Methods(http.MethodGet)
	api.HandleFunc("/predictions", h.handleRecent).Methods(http.MethodGet)
}

// StatusFor maps prediction errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case observation.IsValidationError(err):
		return http.StatusBadRequest
	case preprocess.IsUnknownCategory(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, predictor.ErrArtifactsUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// bodyErrorStatus is 413 when the body hit the configured size limit.
func bodyErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (h *HTTPHandler) handleForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, form.Page{Definition: h.definition})
}

func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, bodyErrorStatus(err), form.Page{Definition: h.definition, Error: err.Error()})
		return
	}
	page := form.Page{Definition: h.definition, Values: r.PostForm}

	obs, err := observation.FromForm(r.PostForm)
	if err != nil {
		page.Error = err.Error()
		h.render(w, http.StatusBadRequest, page)
		return
	}

	result, err := h.predictions.Predict(r.Context(), obs)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Log.WithError(err).Error("prediction failed")
		}
		page.Error = err.Error()
		h.render(w, status, page)
		return
	}
	page.Result = &result
	h.render(w, http.StatusOK, page)
}

func (h *HTTPHandler) render(w http.ResponseWriter, status int, page form.Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.renderer.Render(w, page); err != nil {
		logger.Log.WithError(err).Error("failed to render form")
	}
}

func (h *HTTPHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var obs observation.Observation
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&obs); err != nil {
		logger.Log.WithError(err).Warn("invalid prediction payload")
		writeError(w, bodyErrorStatus(err), "invalid request body: "+err.Error())
		return
	}

	result, err := h.predictions.Predict(r.Context(), obs)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Log.WithError(err).Error("prediction failed")
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleSchema(w http.ResponseWriter, r *http.Request) {
	info, err := h.predictions.Schema()
	if err != nil {
		writeError(w, StatusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction history is not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > 500 {
		limit = 500
	}
	logs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list predictions")
		writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.predictions.Schema(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
