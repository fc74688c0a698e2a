package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplesignal/attrition-api/internal/estimator"
	"github.com/peoplesignal/attrition-api/internal/features"
	"github.com/peoplesignal/attrition-api/internal/models"
	"github.com/peoplesignal/attrition-api/internal/reports"
	"github.com/peoplesignal/attrition-api/internal/results"
	"github.com/peoplesignal/attrition-api/internal/services"
)

type fixture struct {
	modelPath   string
	resultsPath string
	reportsDir  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		modelPath:   filepath.Join(dir, "model", "attrition_pipeline_minimal.json"),
		resultsPath: filepath.Join(dir, "model", "hasil.json"),
		reportsDir:  filepath.Join(dir, "model", "img"),
	}
	require.NoError(t, estimator.SampleArtifact().Save(f.modelPath))
	require.NoError(t, results.WriteDocument(f.resultsPath, results.SampleDocument()))
	png := filepath.Join(f.reportsDir, "minimal", "confusion_matrix.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(png), 0o755))
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n"), 0o644))
	return f
}

// router loads whatever the fixture provides and ignores load errors, the
// way the process behaves with fail-fast disabled.
func (f fixture) router(t *testing.T, opts ...func(*Dependencies)) http.Handler {
	t.Helper()
	gw := estimator.NewGateway(f.modelPath, features.Names())
	_ = gw.Load(context.Background())
	store := results.NewStore(f.resultsPath)
	_ = store.Load(context.Background())

	deps := Dependencies{
		Predictor:   services.NewPredictionService(nil, gw, services.Options{}),
		Model:       gw,
		Results:     store,
		Reports:     reports.NewCatalog(f.reportsDir),
		CORSOrigins: []string{"http://localhost:3000"},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewRouter(deps)
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	}
	return rec, payload
}

const exampleBody = `{"OverTime":"Yes","MonthlyIncome":5000,"Age":30,"TotalWorkingYears":5,"DistanceFromHome":10,"StockOptionLevel":0,"EnvironmentSatisfaction":3}`

func TestHealth(t *testing.T) {
	rec, body := do(t, newFixture(t).router(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	model := body["model"].(map[string]any)
	assert.Equal(t, true, model["loaded"])
	assert.Equal(t, "ultra_minimal", model["type"])
	assert.EqualValues(t, 7, model["features_required"])
	assert.Equal(t, "86.05%", model["accuracy"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestHealthReportsErrorWhenModelMissing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.modelPath))
	h := f.router(t)

	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, false, body["model"].(map[string]any)["loaded"])

	rec, body = do(t, h, http.MethodPost, "/predict", exampleBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Model not loaded", body["message"])
}

func TestHealthFailureStatusIsConfigurable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.modelPath))
	h := f.router(t, func(d *Dependencies) { d.HealthFailureStatus = http.StatusOK })

	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, false, body["model"].(map[string]any)["loaded"])
}

func TestHealthReportsErrorWhenResultsMissing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.resultsPath))
	h := f.router(t)

	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "N/A", body["model"].(map[string]any)["accuracy"])

	rec, body = do(t, h, http.MethodGet, "/api/results/summary", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Results not loaded", body["message"])
	assert.Equal(t, "error", body["status"])
}

func TestFeatures(t *testing.T) {
	rec, body := do(t, newFixture(t).router(t), http.MethodGet, "/features", "")
	require.Equal(t, http.StatusOK, rec.Code)

	names := make([]string, 0, 7)
	for _, v := range body["required_features"].([]any) {
		names = append(names, v.(string))
	}
	assert.Equal(t, features.Names(), names)
	assert.EqualValues(t, 7, body["count"])
	assert.Equal(t, "Only these 7 features are required and used", body["description"])
	assert.Equal(t, "86.05%", body["accuracy"])

	categories := body["categories"].(map[string]any)
	assert.Equal(t, []any{"OverTime", "DistanceFromHome"}, categories["work_life"])
	assert.Equal(t, []any{"EnvironmentSatisfaction"}, categories["satisfaction"])
}

func TestPredict(t *testing.T) {
	h := newFixture(t).router(t)

	rec, body := do(t, h, http.MethodPost, "/predict", exampleBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "No", body["prediction"])
	assert.Equal(t, 66.74, body["confidence"])
	probs := body["probabilities"].(map[string]any)
	assert.Equal(t, 66.74, probs["No"])
	assert.Equal(t, 33.26, probs["Yes"])
	info := body["model_info"].(map[string]any)
	assert.Equal(t, "ultra_minimal", info["type"])
	assert.EqualValues(t, 7, info["features_used"])
	assert.Equal(t, "86.05%", info["accuracy"])

	// key order in the body is irrelevant
	reordered := `{"EnvironmentSatisfaction":1,"StockOptionLevel":0,"DistanceFromHome":20,"TotalWorkingYears":2,"Age":25,"MonthlyIncome":2000,"OverTime":"Yes"}`
	rec, body = do(t, h, http.MethodPost, "/predict", reordered)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Yes", body["prediction"])
	assert.Equal(t, 66.47, body["confidence"])
}

func TestPredictOutcomeInvariants(t *testing.T) {
	h := newFixture(t).router(t)

	rows := []string{
		exampleBody,
		`{"OverTime":"Yes","MonthlyIncome":2000,"Age":25,"TotalWorkingYears":2,"DistanceFromHome":20,"StockOptionLevel":0,"EnvironmentSatisfaction":1}`,
		`{"OverTime":"No","MonthlyIncome":15000,"Age":52,"TotalWorkingYears":30,"DistanceFromHome":1,"StockOptionLevel":3,"EnvironmentSatisfaction":4}`,
		`{"OverTime":"No","MonthlyIncome":0,"Age":17,"TotalWorkingYears":0,"DistanceFromHome":0,"StockOptionLevel":1,"EnvironmentSatisfaction":2}`,
		`{"OverTime":"Yes","MonthlyIncome":99999.5,"Age":70,"TotalWorkingYears":61,"DistanceFromHome":29,"StockOptionLevel":2,"EnvironmentSatisfaction":3}`,
		`{"OverTime":"No","MonthlyIncome":4100,"Age":38.5,"TotalWorkingYears":12,"DistanceFromHome":7,"StockOptionLevel":0,"EnvironmentSatisfaction":1}`,
	}
	for i, row := range rows {
		rec, body := do(t, h, http.MethodPost, "/predict", row)
		require.Equal(t, http.StatusOK, rec.Code, "row %d: %s", i, rec.Body.String())

		probs := body["probabilities"].(map[string]any)
		no, yes := probs["No"].(float64), probs["Yes"].(float64)
		assert.InDelta(t, 100, no+yes, 0.1, "row %d", i)
		assert.Equal(t, math.Max(no, yes), body["confidence"], "row %d", i)
		switch {
		case no > yes:
			assert.Equal(t, "No", body["prediction"], "row %d", i)
		case yes > no:
			assert.Equal(t, "Yes", body["prediction"], "row %d", i)
		}

		again, _ := do(t, h, http.MethodPost, "/predict", row)
		require.Equal(t, http.StatusOK, again.Code)
		if !bytes.Equal(rec.Body.Bytes(), again.Body.Bytes()) {
			t.Fatalf("row %d: repeated request gave a different body:\n%s\n%s", i, rec.Body.String(), again.Body.String())
		}
	}
}

func TestPredictContractErrors(t *testing.T) {
	h := newFixture(t).router(t)

	cases := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"empty object", `{}`, http.StatusBadRequest, "No input data provided"},
		{"null", `null`, http.StatusBadRequest, "No input data provided"},
		{"no body", "", http.StatusBadRequest, "No input data provided"},
		{"missing", `{"OverTime":"Yes","MonthlyIncome":5000}`, http.StatusBadRequest, "Missing required features"},
		{"extra", strings.TrimSuffix(exampleBody, "}") + `,"JobLevel":2}`, http.StatusBadRequest, "Extra features not allowed"},
		{"invalid value", strings.Replace(exampleBody, `"Yes"`, `"Sometimes"`, 1), http.StatusBadRequest, "Invalid feature values"},
		{"malformed", `{"OverTime":`, http.StatusBadRequest, "Invalid JSON payload"},
		{"array", `[1,2]`, http.StatusBadRequest, "Invalid JSON payload"},
		{"trailing data", exampleBody + `{}`, http.StatusBadRequest, "Invalid JSON payload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodPost, "/predict", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tc.message, body["message"])
		})
	}

	_, body := do(t, h, http.MethodPost, "/predict", `{"OverTime":"Yes","MonthlyIncome":5000,"Age":30,"TotalWorkingYears":5,"DistanceFromHome":10,"StockOptionLevel":0}`)
	details := body["details"].(map[string]any)
	assert.Equal(t, []any{"EnvironmentSatisfaction"}, details["missing"])
	assert.Equal(t, "All 7 features are required", details["hint"])
}

func TestPredictBodyTooLarge(t *testing.T) {
	h := newFixture(t).router(t)
	big := `{"OverTime":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	rec, body := do(t, h, http.MethodPost, "/predict", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request body too large", body["message"])
}

func TestResults(t *testing.T) {
	h := newFixture(t).router(t)

	rec, body := do(t, h, http.MethodGet, "/api/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "models")
	assert.Contains(t, body, "dataset_info")

	rec, body = do(t, h, http.MethodGet, "/api/results/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := body["models_summary"].(map[string]any)
	assert.Len(t, summary, 3)
	assert.Equal(t, 86.05, summary["minimal"].(map[string]any)["test_accuracy"])

	for _, variant := range models.Variants() {
		rec, body = do(t, h, http.MethodGet, "/api/results/model/"+string(variant), "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, body["name"])
	}

	rec, body = do(t, h, http.MethodGet, "/api/results/model/tiny", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid model type. Use: full, reduced, or minimal", body["message"])
}

func TestVisualizations(t *testing.T) {
	h := newFixture(t).router(t)

	rec, body := do(t, h, http.MethodGet, "/api/visualizations/list", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "/api/visualizations", body["base_url"])
	listing := body["visualizations"].(map[string]any)
	assert.Equal(t, []any{"confusion_matrix.png"}, listing["minimal"])
	assert.Equal(t, []any{}, listing["comparison"])

	rec, _ = do(t, h, http.MethodGet, "/api/visualizations/minimal/confusion_matrix.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec, body = do(t, h, http.MethodGet, "/api/visualizations/bogus/confusion_matrix.png", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid category. Use: comparison, full, reduced, or minimal", body["message"])

	rec, body = do(t, h, http.MethodGet, "/api/visualizations/full/roc.png", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Visualization not found: full/roc.png", body["message"])
}

func TestRoutingErrorsAreJSON(t *testing.T) {
	h := newFixture(t).router(t)

	rec, body := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error", body["status"])

	rec, body = do(t, h, http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", body["message"])
}

func TestRequestIDPropagation(t *testing.T) {
	h := newFixture(t).router(t)
	req := httptest.NewRequest(http.MethodGet, "/features", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	h := newFixture(t).router(t)

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/features", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/features", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, RequestIDHeader, rec.Header().Get("Access-Control-Expose-Headers"))

	req = httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSOriginLists(t *testing.T) {
	f := newFixture(t)

	wildcard := f.router(t, func(d *Dependencies) { d.CORSOrigins = []string{"*"} })
	req := httptest.NewRequest(http.MethodGet, "/features", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	rec := httptest.NewRecorder()
	wildcard.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	none := f.router(t, func(d *Dependencies) { d.CORSOrigins = nil })
	req = httptest.NewRequest(http.MethodGet, "/features", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	rec = httptest.NewRecorder()
	none.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
