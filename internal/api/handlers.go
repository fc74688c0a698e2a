package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/peoplesignal/attrition-api/internal/features"
	"github.com/peoplesignal/attrition-api/internal/models"
	"github.com/peoplesignal/attrition-api/internal/reports"
)

// MaxBodyBytes bounds the size of a prediction request body.
const MaxBodyBytes = 1 << 20

type healthModel struct {
	Loaded           bool   `json:"loaded"`
	Type             string `json:"type"`
	FeaturesRequired int    `json:"features_required"`
	Accuracy         string `json:"accuracy"`
}

type healthResponse struct {
	Status string      `json:"status"`
	Model  healthModel `json:"model"`
}

type featuresResponse struct {
	RequiredFeatures []string                         `json:"required_features"`
	Count            int                              `json:"count"`
	Categories       map[models.FeatureGroup][]string `json:"categories"`
	Description      string                           `json:"description"`
	Accuracy         string                           `json:"accuracy"`
}

type modelInfo struct {
	Type         string `json:"type"`
	FeaturesUsed int    `json:"features_used"`
	Accuracy     string `json:"accuracy"`
}

type predictResponse struct {
	models.PredictionOutcome
	ModelInfo modelInfo `json:"model_info"`
}

type visualizationList struct {
	Status         string              `json:"status"`
	Visualizations map[string][]string `json:"visualizations"`
	BaseURL        string              `json:"base_url"`
}

func (h *Handler) accuracy() string {
	if h.results == nil {
		return "N/A"
	}
	acc, ok := h.results.Accuracy(h.variant)
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", acc)
}

func (h *Handler) ready() bool {
	return h.model != nil && h.model.Loaded() && h.results != nil && h.results.Loaded()
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "healthy",
		Model: healthModel{
			Loaded:           h.model != nil && h.model.Loaded(),
			Type:             h.modelType,
			FeaturesRequired: features.Count,
			Accuracy:         h.accuracy(),
		},
	}
	status := http.StatusOK
	if !h.ready() {
		resp.Status = "error"
		status = h.healthFailureStatus
	}
	writeJSON(w, status, resp)
}

func (h *Handler) features(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, featuresResponse{
		RequiredFeatures: features.Names(),
		Count:            features.Count,
		Categories:       features.Groups(),
		Description:      features.Description,
		Accuracy:         h.accuracy(),
	})
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var req models.PredictionRequest
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
			return
		}
		writeMessage(w, http.StatusBadRequest, "Invalid JSON payload", nil)
		return
	}
	if dec.More() {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON payload", nil)
		return
	}

	outcome, err := h.predictor.Predict(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		PredictionOutcome: outcome,
		ModelInfo: modelInfo{
			Type:         h.modelType,
			FeaturesUsed: features.Count,
			Accuracy:     h.accuracy(),
		},
	})
}

func (h *Handler) allResults(w http.ResponseWriter, r *http.Request) {
	doc, err := h.results.All()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) resultsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.results.Summary()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) modelResults(w http.ResponseWriter, r *http.Request) {
	detail, err := h.results.Model(models.Variant(chi.URLParam(r, "type")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) listVisualizations(w http.ResponseWriter, r *http.Request) {
	listing, err := h.reports.List()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, visualizationList{
		Status:         "success",
		Visualizations: listing,
		BaseURL:        reports.BaseURL,
	})
}

func (h *Handler) visualization(w http.ResponseWriter, r *http.Request) {
	path, err := h.reports.ImagePath(chi.URLParam(r, "category"), chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}
