package estimator

import (
	"errors"
	"fmt"

	"github.com/peoplesignal/attrition-api/internal/models"
)

// ErrMalformedRow is returned when a row does not match the artifact's inputs.
var ErrMalformedRow = errors.New("row does not match model inputs")

// Forest evaluates a validated Artifact. It is immutable and safe for
// concurrent use.
type Forest struct {
	artifact *Artifact
	width    int
}

// NewForest validates the artifact and wraps it for prediction.
func NewForest(artifact *Artifact, expected []string) (*Forest, error) {
	if artifact == nil {
		return nil, errors.New("nil artifact")
	}
	if err := artifact.Validate(expected); err != nil {
		return nil, err
	}
	return &Forest{artifact: artifact, width: artifact.EncodedWidth()}, nil
}

// Predict returns the class and class probabilities for a single row.
func (f *Forest) Predict(row models.Row) (models.RawPrediction, error) {
	encoded, err := f.encode(row)
	if err != nil {
		return models.RawPrediction{}, err
	}

	probs := make([]float64, len(f.artifact.Classes))
	for _, tree := range f.artifact.Trees {
		leaf := walk(tree, encoded)
		total := 0.0
		for _, w := range leaf.Value {
			total += w
		}
		for c, w := range leaf.Value {
			probs[c] += w / total
		}
	}
	n := float64(len(f.artifact.Trees))
	for c := range probs {
		probs[c] /= n
	}

	class := 0
	if probs[1] > probs[0] {
		class = 1
	}
	return models.RawPrediction{Class: class, ProbNo: probs[0], ProbYes: probs[1]}, nil
}

// encode lays out one-hot categorical columns first, then numeric
// passthrough columns, matching the training pipeline's column transformer.
func (f *Forest) encode(row models.Row) ([]float64, error) {
	inputs := f.artifact.Inputs
	if len(row) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d cells, want %d", ErrMalformedRow, len(row), len(inputs))
	}

	encoded := make([]float64, 0, f.width)
	for i, in := range inputs {
		cell := row[i]
		if cell.Name != in.Name || cell.Kind != in.Kind {
			return nil, fmt.Errorf("%w: cell %d is %s/%s, want %s/%s", ErrMalformedRow, i, cell.Name, cell.Kind, in.Name, in.Kind)
		}
		if in.Kind != models.FeatureCategorical {
			continue
		}
		pos := -1
		for c, category := range in.Categories {
			if category == cell.Category {
				pos = c
				break
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("%w: unknown category %q for %s", ErrMalformedRow, cell.Category, in.Name)
		}
		start := 0
		if in.DropFirst {
			start = 1
		}
		for c := start; c < len(in.Categories); c++ {
			if c == pos {
				encoded = append(encoded, 1)
			} else {
				encoded = append(encoded, 0)
			}
		}
	}
	for i, in := range inputs {
		if in.Kind == models.FeatureCategorical {
			continue
		}
		encoded = append(encoded, row[i].Number)
	}
	return encoded, nil
}

func walk(tree Tree, x []float64) Node {
	idx := 0
	for {
		node := tree.Nodes[idx]
		if node.IsLeaf() {
			return node
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}
