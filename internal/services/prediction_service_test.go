package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplesignal/attrition-api/internal/cache"
	"github.com/peoplesignal/attrition-api/internal/estimator"
	"github.com/peoplesignal/attrition-api/internal/features"
	"github.com/peoplesignal/attrition-api/internal/models"
	"github.com/peoplesignal/attrition-api/internal/utils"
)

type fakeEstimator struct {
	mu       sync.Mutex
	calls    []models.Row
	raw      models.RawPrediction
	err      error
	unloaded bool
}

func (f *fakeEstimator) Loaded() bool { return !f.unloaded }

func (f *fakeEstimator) Predict(_ context.Context, row models.Row) (models.RawPrediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, row)
	return f.raw, f.err
}

func (f *fakeEstimator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func validRequest() models.PredictionRequest {
	// deliberately not in estimator order
	return models.PredictionRequest{
		"EnvironmentSatisfaction": float64(3),
		"Age":                     float64(30),
		"OverTime":                "Yes",
		"StockOptionLevel":        float64(0),
		"MonthlyIncome":           float64(5000),
		"DistanceFromHome":        float64(10),
		"TotalWorkingYears":       float64(5),
	}
}

func TestPredictReordersAndFormats(t *testing.T) {
	est := &fakeEstimator{raw: models.RawPrediction{Class: 0, ProbNo: 0.667421, ProbYes: 0.332579}}
	svc := NewPredictionService(nil, est, Options{})

	outcome, err := svc.Predict(context.Background(), validRequest())
	require.NoError(t, err)

	require.Equal(t, 1, est.callCount())
	assert.Equal(t, features.Names(), est.calls[0].Names())
	assert.Equal(t, "Yes", est.calls[0][0].Category)
	assert.Equal(t, 5000.0, est.calls[0][1].Number)

	assert.Equal(t, models.LabelNo, outcome.Label)
	assert.Equal(t, 66.74, outcome.Confidence)
	assert.Equal(t, 66.74, outcome.Probabilities.No)
	assert.Equal(t, 33.26, outcome.Probabilities.Yes)
}

func TestPredictRejectionSkipsEstimator(t *testing.T) {
	est := &fakeEstimator{}
	svc := NewPredictionService(nil, est, Options{})

	cases := map[string]models.PredictionRequest{
		"empty": {},
		"missing": func() models.PredictionRequest {
			req := validRequest()
			delete(req, "Age")
			return req
		}(),
		"extra": func() models.PredictionRequest {
			req := validRequest()
			req["JobLevel"] = float64(2)
			return req
		}(),
		"invalid": func() models.PredictionRequest {
			req := validRequest()
			req["OverTime"] = "Maybe"
			return req
		}(),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Predict(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, utils.KindClientContract, utils.KindOf(err))
		})
	}
	assert.Zero(t, est.callCount())
}

func TestPredictErrorMapping(t *testing.T) {
	notLoaded := NewPredictionService(nil, &fakeEstimator{err: estimator.ErrNotLoaded}, Options{})
	_, err := notLoaded.Predict(context.Background(), validRequest())
	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.KindDependencyNotLoaded, appErr.Kind)
	assert.Equal(t, "Model not loaded", appErr.Msg)

	failing := NewPredictionService(nil, &fakeEstimator{err: errors.New("tree exploded")}, Options{})
	_, err = failing.Predict(context.Background(), validRequest())
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.KindPredictionFailed, appErr.Kind)
	assert.Equal(t, "Prediction failed", appErr.Msg)
	assert.Equal(t, "tree exploded", appErr.Details)

	noModel := NewPredictionService(nil, nil, Options{})
	_, err = noModel.Predict(context.Background(), validRequest())
	assert.Equal(t, utils.KindDependencyNotLoaded, utils.KindOf(err))
}

func TestFormat(t *testing.T) {
	yes := Format(models.RawPrediction{Class: 1, ProbNo: 0.33529, ProbYes: 0.66471})
	assert.Equal(t, models.LabelYes, yes.Label)
	assert.Equal(t, 66.47, yes.Confidence)
	assert.InDelta(t, 100, yes.Probabilities.No+yes.Probabilities.Yes, 0.011)

	tie := Format(models.RawPrediction{Class: 0, ProbNo: 0.5, ProbYes: 0.5})
	assert.Equal(t, models.LabelNo, tie.Label)
	assert.Equal(t, 50.0, tie.Confidence)
}

func TestPredictUsesCache(t *testing.T) {
	provider, err := cache.NewLRUProvider(8, time.Minute)
	require.NoError(t, err)
	est := &fakeEstimator{raw: models.RawPrediction{Class: 1, ProbNo: 0.2, ProbYes: 0.8}}
	svc := NewPredictionService(nil, est, Options{Cache: provider, CacheTTL: time.Minute})

	first, err := svc.Predict(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := svc.Predict(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, est.callCount())
	assert.Equal(t, 1, provider.Len())

	other := validRequest()
	other["Age"] = float64(31)
	_, err = svc.Predict(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 2, est.callCount())
}

func TestPredictFailuresAreNotCached(t *testing.T) {
	provider, err := cache.NewLRUProvider(8, time.Minute)
	require.NoError(t, err)
	est := &fakeEstimator{err: errors.New("boom")}
	svc := NewPredictionService(nil, est, Options{Cache: provider})

	_, err = svc.Predict(context.Background(), validRequest())
	require.Error(t, err)
	assert.Zero(t, provider.Len())
}

func TestLatencyTracked(t *testing.T) {
	est := &fakeEstimator{raw: models.RawPrediction{Class: 0, ProbNo: 0.9, ProbYes: 0.1}}
	svc := NewPredictionService(nil, est, Options{})
	for i := 0; i < 3; i++ {
		_, err := svc.Predict(context.Background(), validRequest())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, svc.Latency().Samples)
	assert.GreaterOrEqual(t, svc.LatencyP95(), time.Duration(0))
}

func TestPredictRefusesCachedOutcomeWhenModelUnloaded(t *testing.T) {
	provider, err := cache.NewLRUProvider(8, time.Minute)
	require.NoError(t, err)

	// a loaded peer fills the shared cache
	warm := NewPredictionService(nil, &fakeEstimator{raw: models.RawPrediction{Class: 1, ProbNo: 0.1, ProbYes: 0.9}}, Options{Cache: provider})
	_, err = warm.Predict(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, 1, provider.Len())

	est := &fakeEstimator{unloaded: true}
	cold := NewPredictionService(nil, est, Options{Cache: provider})
	_, err = cold.Predict(context.Background(), validRequest())

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.KindDependencyNotLoaded, appErr.Kind)
	assert.Equal(t, "Model not loaded", appErr.Msg)
	assert.Zero(t, est.callCount())
}

func TestPredictWithFailedGatewayIgnoresCache(t *testing.T) {
	gw := estimator.NewGateway(filepath.Join(t.TempDir(), "absent.json"), features.Names())
	require.Error(t, gw.Load(context.Background()))

	provider, err := cache.NewLRUProvider(8, time.Minute)
	require.NoError(t, err)
	svc := NewPredictionService(nil, gw, Options{Cache: provider})

	row, err := features.Project(validRequest())
	require.NoError(t, err)
	payload, err := json.Marshal(models.PredictionOutcome{Label: models.LabelYes, Confidence: 90})
	require.NoError(t, err)
	require.NoError(t, provider.Set(context.Background(), svc.cacheKey(row), payload, 0))

	_, err = svc.Predict(context.Background(), validRequest())
	assert.Equal(t, utils.KindDependencyNotLoaded, utils.KindOf(err))
}
