package results

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/peoplesignal/attrition-api/internal/models"
)

// SampleDocument returns a results document with realistic figures for
// local development and tests.
func SampleDocument() *models.TrainingResults {
	minimal := []string{"OverTime", "MonthlyIncome", "Age", "TotalWorkingYears", "DistanceFromHome", "StockOptionLevel", "EnvironmentSatisfaction"}
	reduced := append(append([]string(nil), minimal...), "YearsAtCompany", "JobLevel", "YearsInCurrentRole", "YearsWithCurrManager")

	return &models.TrainingResults{
		TrainingDate: "2025-11-03 14:22:10",
		DatasetInfo: map[string]any{
			"total_samples":          1470,
			"attrition_count":        237,
			"attrition_rate":         "16.12%",
			"features_original":      35,
			"features_after_cleanup": 31,
			"train_samples":          1176,
			"test_samples":           294,
		},
		Models: map[models.Variant]models.ModelResults{
			models.VariantFull: {
				Name: "Full Model (31 Features)", NumFeatures: 31,
				TrainAccuracy: 93.37, TestAccuracy: 85.37, Overfitting: 8.00, TrainingTime: 1.4211,
				Precision: 0.7143, Recall: 0.1064, F1Score: 0.1852,
				ClassMetrics: map[string]models.ClassMetrics{
					"No":  {Precision: 0.8536, Recall: 0.9919, F1Score: 0.9176, Support: 247},
					"Yes": {Precision: 0.7143, Recall: 0.1064, F1Score: 0.1852, Support: 47},
				},
				ConfusionMatrix:   models.ConfusionMatrix{TN: 245, FP: 2, FN: 42, TP: 5},
				FeatureImportance: map[string]float64{"MonthlyIncome": 0.0921, "Age": 0.0712, "OverTime_Yes": 0.0705, "TotalWorkingYears": 0.0643},
			},
			models.VariantReduced: {
				Name: "Reduced Model (11 Features)", NumFeatures: 11, FeatureList: reduced,
				TrainAccuracy: 91.84, TestAccuracy: 85.71, Overfitting: 6.13, TrainingTime: 0.8734,
				Precision: 0.7000, Recall: 0.1489, F1Score: 0.2456,
				ClassMetrics: map[string]models.ClassMetrics{
					"No":  {Precision: 0.8601, Recall: 0.9879, F1Score: 0.9196, Support: 247},
					"Yes": {Precision: 0.7000, Recall: 0.1489, F1Score: 0.2456, Support: 47},
				},
				ConfusionMatrix:   models.ConfusionMatrix{TN: 244, FP: 3, FN: 40, TP: 7},
				FeatureImportance: map[string]float64{"MonthlyIncome": 0.1533, "OverTime_Yes": 0.1187, "Age": 0.1120},
			},
			models.VariantMinimal: {
				Name: "Minimal Model (7 Features)", NumFeatures: 7, FeatureList: minimal,
				CategoricalFeatures: []string{"OverTime"}, NumericFeatures: minimal[1:],
				TrainAccuracy: 90.14, TestAccuracy: 86.05, Overfitting: 4.09, TrainingTime: 0.6120,
				Precision: 0.7273, Recall: 0.1702, F1Score: 0.2759,
				ClassMetrics: map[string]models.ClassMetrics{
					"No":  {Precision: 0.8633, Recall: 0.9879, F1Score: 0.9214, Support: 247},
					"Yes": {Precision: 0.7273, Recall: 0.1702, F1Score: 0.2759, Support: 47},
				},
				ConfusionMatrix: models.ConfusionMatrix{TN: 244, FP: 3, FN: 39, TP: 8},
				FeatureImportance: map[string]float64{
					"OverTime_Yes": 0.1412, "MonthlyIncome": 0.2298, "Age": 0.1811, "TotalWorkingYears": 0.1534,
					"DistanceFromHome": 0.1297, "StockOptionLevel": 0.0912, "EnvironmentSatisfaction": 0.0736,
				},
			},
		},
		Comparison: map[string]any{
			"feature_reduction_percent":      77.42,
			"accuracy_delta_full_vs_minimal": 0.68,
		},
		BestModel:    string(models.VariantMinimal),
		BestAccuracy: 86.05,
		FeatureSets:  map[string][]string{"reduced": reduced, "minimal": minimal},
	}
}

// WriteDocument writes doc as indented JSON, creating parent directories.
func WriteDocument(path string, doc *models.TrainingResults) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}
