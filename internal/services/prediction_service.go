package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/peoplesignal/attrition-api/internal/cache"
	"github.com/peoplesignal/attrition-api/internal/estimator"
	"github.com/peoplesignal/attrition-api/internal/features"
	"github.com/peoplesignal/attrition-api/internal/metrics"
	"github.com/peoplesignal/attrition-api/internal/models"
	"github.com/peoplesignal/attrition-api/internal/utils"
)

// Estimator scores a single projected row.
type Estimator interface {
	Predict(ctx context.Context, row models.Row) (models.RawPrediction, error)
	Loaded() bool
}

// Options tunes the optional memo cache.
type Options struct {
	Cache     cache.Provider
	CacheTTL  time.Duration
	KeyPrefix string
}

// PredictionService validates inputs, invokes the estimator and formats outcomes.
type PredictionService struct {
	logger    *slog.Logger
	estimator Estimator
	cache     cache.Provider
	cacheTTL  time.Duration
	keyPrefix string
	latencies *utils.LatencyTracker
}

// NewPredictionService constructs the orchestrator. A nil cache disables memoisation.
func NewPredictionService(logger *slog.Logger, est Estimator, opts Options) *PredictionService {
	if logger == nil {
		logger = slog.Default()
	}
	provider := opts.Cache
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "attrition:predict:"
	}
	return &PredictionService{
		logger:    logger,
		estimator: est,
		cache:     provider,
		cacheTTL:  opts.CacheTTL,
		keyPrefix: prefix,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Predict runs the full prediction flow for one request.
func (s *PredictionService) Predict(ctx context.Context, req models.PredictionRequest) (models.PredictionOutcome, error) {
	const op = "services.Predict"
	start := time.Now()

	if err := features.Validate(req); err != nil {
		var rejection *features.Rejection
		if errors.As(err, &rejection) {
			metrics.ObserveRejection(rejection.Reason)
		}
		metrics.ObservePrediction(time.Since(start), metrics.OutcomeRejected)
		return models.PredictionOutcome{}, err
	}

	row, err := features.Project(req)
	if err != nil {
		metrics.ObservePrediction(time.Since(start), metrics.OutcomeError)
		return models.PredictionOutcome{}, utils.NewKindError(utils.KindPredictionFailed, op, "Prediction failed", err.Error(), err)
	}

	// cached outcomes are only served by a process whose own model is loaded
	if s.estimator == nil || !s.estimator.Loaded() {
		metrics.ObservePrediction(time.Since(start), metrics.OutcomeError)
		return models.PredictionOutcome{}, utils.NewKindError(utils.KindDependencyNotLoaded, op, "Model not loaded", nil, estimator.ErrNotLoaded)
	}

	key := s.cacheKey(row)
	if outcome, ok := s.lookup(ctx, key); ok {
		s.record(time.Since(start), outcome)
		return outcome, nil
	}

	raw, err := s.estimator.Predict(ctx, row)
	if err != nil {
		metrics.ObservePrediction(time.Since(start), metrics.OutcomeError)
		if errors.Is(err, estimator.ErrNotLoaded) {
			return models.PredictionOutcome{}, utils.NewKindError(utils.KindDependencyNotLoaded, op, "Model not loaded", nil, err)
		}
		s.logger.Error("estimator prediction failed", slog.Any("error", err))
		return models.PredictionOutcome{}, utils.NewKindError(utils.KindPredictionFailed, op, "Prediction failed", err.Error(), err)
	}

	outcome := Format(raw)
	s.store(ctx, key, outcome)
	s.record(time.Since(start), outcome)
	return outcome, nil
}

// Format converts a raw estimator result into the client-facing outcome.
func Format(raw models.RawPrediction) models.PredictionOutcome {
	label := models.LabelNo
	if raw.Class == 1 {
		label = models.LabelYes
	}
	return models.PredictionOutcome{
		Label:      label,
		Confidence: percent(math.Max(raw.ProbNo, raw.ProbYes)),
		Probabilities: models.ClassProbabilities{
			No:  percent(raw.ProbNo),
			Yes: percent(raw.ProbYes),
		},
	}
}

func percent(p float64) float64 {
	return math.Round(p*100*100) / 100
}

// LatencyP95 returns the current p95 prediction latency.
func (s *PredictionService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

// Latency returns a summary of recent prediction latencies.
func (s *PredictionService) Latency() utils.LatencySummary {
	return s.latencies.Summary()
}

func (s *PredictionService) record(duration time.Duration, outcome models.PredictionOutcome) {
	label := metrics.OutcomeNo
	if outcome.Label == models.LabelYes {
		label = metrics.OutcomeYes
	}
	metrics.ObservePrediction(duration, label)
	s.latencies.Observe(duration)
	if total := s.latencies.Total(); total >= 100 && total%100 == 0 {
		summary := s.latencies.Summary()
		s.logger.Info("prediction latency",
			slog.Duration("p50", summary.P50),
			slog.Duration("p95", summary.P95),
			slog.Int("samples", summary.Samples))
	}
}

func (s *PredictionService) cacheKey(row models.Row) string {
	var b strings.Builder
	for _, cell := range row {
		b.WriteString(cell.Name)
		b.WriteByte('=')
		if cell.Kind == models.FeatureCategorical {
			b.WriteString(cell.Category)
		} else {
			b.WriteString(strconv.FormatFloat(cell.Number, 'g', -1, 64))
		}
		b.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return s.keyPrefix + hex.EncodeToString(sum[:])
}

func (s *PredictionService) lookup(ctx context.Context, key string) (models.PredictionOutcome, bool) {
	if _, noop := s.cache.(cache.NoopProvider); noop {
		return models.PredictionOutcome{}, false
	}
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("prediction cache read failed", slog.Any("error", err))
		}
		metrics.ObserveCacheLookup(false)
		return models.PredictionOutcome{}, false
	}
	var outcome models.PredictionOutcome
	if err := json.Unmarshal(payload, &outcome); err != nil {
		s.logger.Warn("discarding malformed cached prediction", slog.Any("error", err))
		metrics.ObserveCacheLookup(false)
		return models.PredictionOutcome{}, false
	}
	metrics.ObserveCacheLookup(true)
	return outcome, true
}

func (s *PredictionService) store(ctx context.Context, key string, outcome models.PredictionOutcome) {
	if _, noop := s.cache.(cache.NoopProvider); noop {
		return
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		s.logger.Warn("prediction cache write failed", slog.Any("error", err))
	}
}
