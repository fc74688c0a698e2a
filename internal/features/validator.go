package features

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/peoplesignal/attrition-api/internal/models"
	"github.com/peoplesignal/attrition-api/internal/utils"
)

// Rejection reasons, also used as metric labels.
const (
	ReasonEmptyInput         = "empty_input"
	ReasonMissingFeatures    = "missing_features"
	ReasonUnexpectedFeatures = "unexpected_features"
	ReasonInvalidValues      = "invalid_values"
)

const op = "features.Validate"

// Rejection carries the reason of a contract violation alongside the client error.
type Rejection struct {
	Reason string
	*utils.AppError
}

func (r *Rejection) Unwrap() error { return r.AppError }

// Validate checks that req carries exactly the required feature set with
// in-domain values. It returns nil or a *Rejection.
func Validate(req models.PredictionRequest) error {
	if len(req) == 0 {
		return reject(ReasonEmptyInput, "No input data provided", nil)
	}

	var missing []string
	for _, def := range required {
		if _, ok := req[def.Name]; !ok {
			missing = append(missing, def.Name)
		}
	}
	if len(missing) > 0 {
		return reject(ReasonMissingFeatures, "Missing required features", map[string]any{
			"missing":  missing,
			"required": Names(),
			"hint":     fmt.Sprintf("All %d features are required", Count),
		})
	}

	var extra []string
	for name := range req {
		if !IsRequired(name) {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return reject(ReasonUnexpectedFeatures, "Extra features not allowed", map[string]any{
			"extra_features":   extra,
			"allowed_features": Names(),
			"hint":             fmt.Sprintf("Only %d minimal features are accepted", Count),
		})
	}

	invalid := make(map[string]string)
	for _, def := range required {
		if problem := checkValue(def, req[def.Name]); problem != "" {
			invalid[def.Name] = problem
		}
	}
	if len(invalid) > 0 {
		return reject(ReasonInvalidValues, "Invalid feature values", map[string]any{
			"invalid": invalid,
		})
	}
	return nil
}

// Project re-orders a validated request into the estimator's positional row.
// Callers must run Validate first.
func Project(req models.PredictionRequest) (models.Row, error) {
	row := make(models.Row, len(required))
	for i, def := range required {
		value, ok := req[def.Name]
		if !ok {
			return nil, fmt.Errorf("project: feature %s absent", def.Name)
		}
		cell := models.Cell{Name: def.Name, Kind: def.Kind}
		switch def.Kind {
		case models.FeatureCategorical:
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("project: feature %s is not a string", def.Name)
			}
			cell.Category = s
		default:
			n, ok := toNumber(value)
			if !ok {
				return nil, fmt.Errorf("project: feature %s is not numeric", def.Name)
			}
			cell.Number = n
		}
		row[i] = cell
	}
	return row, nil
}

func reject(reason, msg string, details map[string]any) error {
	var payload any
	if details != nil {
		payload = details
	}
	return &Rejection{
		Reason:   reason,
		AppError: utils.NewKindError(utils.KindClientContract, op, msg, payload, nil),
	}
}

func checkValue(def models.FeatureDefinition, value any) string {
	if def.Kind == models.FeatureCategorical {
		s, ok := value.(string)
		if !ok {
			return "must be one of " + strings.Join(def.Allowed, ", ")
		}
		for _, allowed := range def.Allowed {
			if s == allowed {
				return ""
			}
		}
		return "must be one of " + strings.Join(def.Allowed, ", ")
	}

	n, ok := toNumber(value)
	if !ok {
		return "must be a number"
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "must be a finite number"
	}
	if def.Integer && n != math.Trunc(n) {
		return "must be an integer"
	}
	switch {
	case def.HasMin && def.HasMax && (n < def.Min || n > def.Max):
		return fmt.Sprintf("must be between %g and %g", def.Min, def.Max)
	case def.HasMin && n < def.Min:
		return fmt.Sprintf("must be at least %g", def.Min)
	case def.HasMax && n > def.Max:
		return fmt.Sprintf("must be at most %g", def.Max)
	}
	return ""
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}
