package models

// FeatureKind distinguishes numeric inputs from categorical ones.
type FeatureKind string

const (
	FeatureNumeric     FeatureKind = "numeric"
	FeatureCategorical FeatureKind = "categorical"
)

// FeatureGroup is the semantic category a feature belongs to.
type FeatureGroup string

const (
	GroupWorkLife     FeatureGroup = "work_life"
	GroupCompensation FeatureGroup = "compensation"
	GroupExperience   FeatureGroup = "experience"
	GroupSatisfaction FeatureGroup = "satisfaction"
)

// FeatureDefinition describes one required input and its value domain.
// Min/Max are inclusive and only apply when HasMin/HasMax are set.
type FeatureDefinition struct {
	Name    string
	Kind    FeatureKind
	Group   FeatureGroup
	Min     float64
	HasMin  bool
	Max     float64
	HasMax  bool
	Integer bool
	Allowed []string
}

// PredictionRequest is the decoded JSON body of a prediction call.
type PredictionRequest map[string]any

// Cell is a single positional model input.
type Cell struct {
	Name     string
	Kind     FeatureKind
	Number   float64
	Category string
}

// Row is a validated request re-projected into the estimator's input order.
type Row []Cell

// Names returns the column names of the row in order.
func (r Row) Names() []string {
	names := make([]string, len(r))
	for i, cell := range r {
		names[i] = cell.Name
	}
	return names
}
