package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/peoplesignal/attrition-api/internal/models"
	"github.com/peoplesignal/attrition-api/internal/reports"
)

// Predictor runs the prediction flow for one decoded request body.
type Predictor interface {
	Predict(ctx context.Context, req models.PredictionRequest) (models.PredictionOutcome, error)
}

// ModelStatus reports whether the estimator is ready.
type ModelStatus interface {
	Loaded() bool
}

// ResultsReader is the read side of the training results document.
type ResultsReader interface {
	Loaded() bool
	All() (*models.TrainingResults, error)
	Summary() (models.ResultsSummary, error)
	Model(variant models.Variant) (models.ModelResults, error)
	Accuracy(variant models.Variant) (float64, bool)
}

// ReportCatalog resolves pre-rendered images.
type ReportCatalog interface {
	List() (map[string][]string, error)
	ImagePath(category, filename string) (string, error)
}

// Dependencies bundles everything the HTTP handlers need.
type Dependencies struct {
	Logger      *slog.Logger
	Predictor   Predictor
	Model       ModelStatus
	Results     ResultsReader
	Reports     ReportCatalog
	ModelType   string
	Variant     models.Variant
	CORSOrigins []string

	// HealthFailureStatus is the /health status while not ready; 0 means 503.
	HealthFailureStatus int
}

// Handler serves the attrition HTTP API.
type Handler struct {
	logger    *slog.Logger
	predictor Predictor
	model     ModelStatus
	results   ResultsReader
	reports   ReportCatalog
	modelType string
	variant   models.Variant

	healthFailureStatus int
}

// NewRouter registers the HTTP routes and middleware stack.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:    logger,
		predictor: deps.Predictor,
		model:     deps.Model,
		results:   deps.Results,
		reports:   deps.Reports,
		modelType: deps.ModelType,
		variant:   deps.Variant,

		healthFailureStatus: deps.HealthFailureStatus,
	}
	if h.modelType == "" {
		h.modelType = "ultra_minimal"
	}
	if h.variant == "" {
		h.variant = models.VariantMinimal
	}
	if h.healthFailureStatus == 0 {
		h.healthFailureStatus = http.StatusServiceUnavailable
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverer(logger))
	r.Use(accessLog(logger))
	// an empty origin list would make the CORS handler allow every origin
	if len(deps.CORSOrigins) > 0 {
		r.Use(corsMiddleware(deps.CORSOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/health", h.health)
	r.Get("/features", h.features)
	r.Post("/predict", h.predict)

	r.Route("/api", func(r chi.Router) {
		r.Get("/results", h.allResults)
		r.Get("/results/summary", h.resultsSummary)
		r.Get("/results/model/{type}", h.modelResults)
		r.Get("/visualizations/list", h.listVisualizations)
		r.Get("/visualizations/{category}/{filename}", h.visualization)
	})

	return r
}

var _ ReportCatalog = (*reports.Catalog)(nil)
