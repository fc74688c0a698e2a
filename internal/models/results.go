package models

// Variant names one of the three trained model configurations.
type Variant string

const (
	VariantFull    Variant = "full"
	VariantReduced Variant = "reduced"
	VariantMinimal Variant = "minimal"
)

// Variants lists every known variant in feature-count order.
func Variants() []Variant {
	return []Variant{VariantFull, VariantReduced, VariantMinimal}
}

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantFull, VariantReduced, VariantMinimal:
		return true
	default:
		return false
	}
}

// TrainingResults is the pre-computed training metrics document.
type TrainingResults struct {
	TrainingDate string                   `json:"training_date"`
	DatasetInfo  map[string]any           `json:"dataset_info"`
	Models       map[Variant]ModelResults `json:"models"`
	Comparison   map[string]any           `json:"comparison,omitempty"`
	BestModel    string                   `json:"best_model,omitempty"`
	BestAccuracy float64                  `json:"best_accuracy,omitempty"`
	FeatureSets  map[string][]string      `json:"feature_sets,omitempty"`
}

// ModelResults holds the evaluation of one variant. Accuracies are percentages.
type ModelResults struct {
	Name                string                  `json:"name"`
	NumFeatures         int                     `json:"num_features"`
	FeatureList         []string                `json:"feature_list,omitempty"`
	CategoricalFeatures []string                `json:"categorical_features,omitempty"`
	NumericFeatures     []string                `json:"numeric_features,omitempty"`
	TrainAccuracy       float64                 `json:"train_accuracy"`
	TestAccuracy        float64                 `json:"test_accuracy"`
	Overfitting         float64                 `json:"overfitting"`
	TrainingTime        float64                 `json:"training_time"`
	Precision           float64                 `json:"precision"`
	Recall              float64                 `json:"recall"`
	F1Score             float64                 `json:"f1_score"`
	ClassMetrics        map[string]ClassMetrics `json:"class_metrics,omitempty"`
	ConfusionMatrix     ConfusionMatrix         `json:"confusion_matrix"`
	FeatureImportance   map[string]float64      `json:"feature_importance"`
}

// ClassMetrics is the per-class precision/recall/F1 of a classification report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

// ConfusionMatrix holds binary confusion-matrix counts.
type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// ResultsSummary is the cross-variant comparison view.
type ResultsSummary struct {
	TrainingDate  string                   `json:"training_date"`
	DatasetInfo   map[string]any           `json:"dataset_info"`
	ModelsSummary map[Variant]ModelSummary `json:"models_summary"`
	Comparison    map[string]any           `json:"comparison,omitempty"`
}

// ModelSummary is the per-variant slice of ResultsSummary.
type ModelSummary struct {
	Features     int     `json:"features"`
	TestAccuracy float64 `json:"test_accuracy"`
	TrainingTime float64 `json:"training_time"`
}
