package estimator

import "github.com/peoplesignal/attrition-api/internal/models"

// SampleArtifact builds a small hand-tuned forest over the minimal feature
// set. It is used for local development and tests when the trained
// artifact is not available.
//
// Encoded columns: 0 OverTime_Yes, 1 MonthlyIncome, 2 Age,
// 3 TotalWorkingYears, 4 DistanceFromHome, 5 StockOptionLevel,
// 6 EnvironmentSatisfaction.
func SampleArtifact() *Artifact {
	return &Artifact{
		ModelType: ModelTypeRandomForest,
		Variant:   string(models.VariantMinimal),
		Classes:   []int{0, 1},
		Inputs: []Input{
			{Name: "OverTime", Kind: models.FeatureCategorical, Categories: []string{"No", "Yes"}, DropFirst: true},
			{Name: "MonthlyIncome", Kind: models.FeatureNumeric},
			{Name: "Age", Kind: models.FeatureNumeric},
			{Name: "TotalWorkingYears", Kind: models.FeatureNumeric},
			{Name: "DistanceFromHome", Kind: models.FeatureNumeric},
			{Name: "StockOptionLevel", Kind: models.FeatureNumeric},
			{Name: "EnvironmentSatisfaction", Kind: models.FeatureNumeric},
		},
		Trees: []Tree{
			{Nodes: []Node{
				{Feature: 0, Threshold: 0.5, Left: 1, Right: 4},
				{Feature: 1, Threshold: 2900, Left: 2, Right: 3},
				{Left: -1, Right: -1, Value: []float64{62, 18}},
				{Left: -1, Right: -1, Value: []float64{610, 40}},
				{Feature: 5, Threshold: 0.5, Left: 5, Right: 6},
				{Left: -1, Right: -1, Value: []float64{40, 88}},
				{Left: -1, Right: -1, Value: []float64{120, 28}},
			}},
			{Nodes: []Node{
				{Feature: 2, Threshold: 30.5, Left: 1, Right: 4},
				{Feature: 3, Threshold: 3.5, Left: 2, Right: 3},
				{Left: -1, Right: -1, Value: []float64{35, 65}},
				{Left: -1, Right: -1, Value: []float64{190, 42}},
				{Feature: 6, Threshold: 1.5, Left: 5, Right: 6},
				{Left: -1, Right: -1, Value: []float64{80, 22}},
				{Left: -1, Right: -1, Value: []float64{540, 60}},
			}},
			{Nodes: []Node{
				{Feature: 4, Threshold: 11.5, Left: 1, Right: 2},
				{Left: -1, Right: -1, Value: []float64{640, 95}},
				{Feature: 0, Threshold: 0.5, Left: 3, Right: 4},
				{Left: -1, Right: -1, Value: []float64{200, 30}},
				{Left: -1, Right: -1, Value: []float64{45, 86}},
			}},
		},
	}
}
