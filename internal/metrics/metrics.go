package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "attrition"

const (
	// OutcomeYes labels predictions whose class is attrition.
	OutcomeYes = "yes"
	// OutcomeNo labels predictions whose class is retention.
	OutcomeNo = "no"
	// OutcomeRejected labels requests refused by input validation.
	OutcomeRejected = "rejected"
	// OutcomeError labels requests that failed downstream of validation.
	OutcomeError = "error"
)

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of prediction requests handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	predictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_seconds",
			Help:      "End-to-end prediction latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	validationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Prediction inputs rejected by the feature contract, partitioned by reason.",
		},
		[]string{"reason"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Prediction cache lookups, partitioned by result.",
		},
		[]string{"result"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, partitioned by route pattern, method and status code.",
		},
		[]string{"route", "method", "code"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	dependencyLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dependency_loaded",
			Help:      "1 when a startup dependency (model, results) loaded successfully.",
		},
		[]string{"dependency"},
	)
)

// Register attaches attrition collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		predictionsTotal,
		predictionDurationSeconds,
		validationRejectionsTotal,
		cacheLookupsTotal,
		httpRequestsTotal,
		httpRequestDurationSeconds,
		dependencyLoaded,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePrediction records a prediction duration and outcome label.
func ObservePrediction(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeYes, OutcomeNo, OutcomeRejected:
	default:
		outcome = OutcomeError
	}
	predictionsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	predictionDurationSeconds.Observe(duration.Seconds())
}

// ObserveRejection counts a contract rejection by reason.
func ObserveRejection(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	validationRejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveCacheLookup counts a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(route, method string, code int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	if duration < 0 {
		duration = 0
	}
	httpRequestDurationSeconds.WithLabelValues(route, method).Observe(duration.Seconds())
}

// SetDependencyLoaded publishes the load state of a startup dependency.
func SetDependencyLoaded(dependency string, loaded bool) {
	value := 0.0
	if loaded {
		value = 1
	}
	dependencyLoaded.WithLabelValues(dependency).Set(value)
}
