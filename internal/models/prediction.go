package models

// Label is the user-facing attrition decision.
type Label string

const (
	LabelYes Label = "Yes"
	LabelNo  Label = "No"
)

// RawPrediction is what the estimator returns for a single row.
type RawPrediction struct {
	Class   int
	ProbNo  float64
	ProbYes float64
}

// ClassProbabilities holds per-class percentages.
type ClassProbabilities struct {
	No  float64 `json:"No"`
	Yes float64 `json:"Yes"`
}

// PredictionOutcome is the formatted result of a successful prediction.
// Confidence and probabilities are percentages rounded to two decimals.
type PredictionOutcome struct {
	Label         Label              `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities ClassProbabilities `json:"probabilities"`
}
