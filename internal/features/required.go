// Package features defines the fixed input contract of the attrition model
// and validates prediction requests against it.
package features

import "github.com/peoplesignal/attrition-api/internal/models"

var required = []models.FeatureDefinition{
	{Name: "OverTime", Kind: models.FeatureCategorical, Group: models.GroupWorkLife, Allowed: []string{"Yes", "No"}},
	{Name: "MonthlyIncome", Kind: models.FeatureNumeric, Group: models.GroupCompensation, HasMin: true, Min: 0},
	{Name: "Age", Kind: models.FeatureNumeric, Group: models.GroupExperience, HasMin: true, Min: 0},
	{Name: "TotalWorkingYears", Kind: models.FeatureNumeric, Group: models.GroupExperience, HasMin: true, Min: 0},
	{Name: "DistanceFromHome", Kind: models.FeatureNumeric, Group: models.GroupWorkLife, HasMin: true, Min: 0},
	{Name: "StockOptionLevel", Kind: models.FeatureNumeric, Group: models.GroupCompensation, HasMin: true, Min: 0, HasMax: true, Max: 3, Integer: true},
	{Name: "EnvironmentSatisfaction", Kind: models.FeatureNumeric, Group: models.GroupSatisfaction, HasMin: true, Min: 1, HasMax: true, Max: 4, Integer: true},
}

var requiredIndex = func() map[string]int {
	idx := make(map[string]int, len(required))
	for i, def := range required {
		idx[def.Name] = i
	}
	return idx
}()

// Count is the number of required features.
const Count = 7

// Description accompanies the schema returned to clients.
const Description = "Only these 7 features are required and used"

// Required returns the ordered feature definitions.
func Required() []models.FeatureDefinition {
	out := make([]models.FeatureDefinition, len(required))
	for i, def := range required {
		def.Allowed = append([]string(nil), def.Allowed...)
		out[i] = def
	}
	return out
}

// Names returns the required feature names in model input order.
func Names() []string {
	names := make([]string, len(required))
	for i, def := range required {
		names[i] = def.Name
	}
	return names
}

// Groups returns the feature names keyed by semantic group, each list in input order.
func Groups() map[models.FeatureGroup][]string {
	groups := make(map[models.FeatureGroup][]string)
	for _, def := range required {
		groups[def.Group] = append(groups[def.Group], def.Name)
	}
	return groups
}

// IsRequired reports whether name is part of the contract.
func IsRequired(name string) bool {
	_, ok := requiredIndex[name]
	return ok
}
