// Package estimator loads the trained attrition classifier and exposes a
// single-row prediction contract over it.
package estimator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peoplesignal/attrition-api/internal/models"
)

// ModelTypeRandomForest is the only artifact type this package understands.
const ModelTypeRandomForest = "random_forest"

// Artifact is the serialised form of a trained tree ensemble together with
// the column encoding it was trained on.
type Artifact struct {
	ModelType string  `json:"model_type"`
	Variant   string  `json:"variant"`
	Classes   []int   `json:"classes"`
	Inputs    []Input `json:"inputs"`
	Trees     []Tree  `json:"trees"`
}

// Input describes one raw model input column.
type Input struct {
	Name       string             `json:"name"`
	Kind       models.FeatureKind `json:"kind"`
	Categories []string           `json:"categories,omitempty"`
	DropFirst  bool               `json:"drop_first,omitempty"`
}

// Tree is a flattened decision tree. Node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split (Left/Right >= 0) or a leaf (Left == Right == -1).
// Value holds per-class weights at the node, in Classes order.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

// IsLeaf reports whether the node terminates traversal.
func (n Node) IsLeaf() bool {
	return n.Left < 0 && n.Right < 0
}

// ReadArtifact decodes an artifact file without validating it.
func ReadArtifact(path string) (*Artifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return &artifact, nil
}

// Save writes the artifact as JSON, creating parent directories.
func (a *Artifact) Save(path string) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// EncodedWidth is the number of columns after one-hot encoding.
func (a *Artifact) EncodedWidth() int {
	width := 0
	for _, in := range a.Inputs {
		switch in.Kind {
		case models.FeatureCategorical:
			n := len(in.Categories)
			if in.DropFirst {
				n--
			}
			width += n
		default:
			width++
		}
	}
	return width
}

// Validate checks structural integrity and, when expected is non-empty,
// that the inputs match the expected feature names in order.
func (a *Artifact) Validate(expected []string) error {
	if a.ModelType != ModelTypeRandomForest {
		return fmt.Errorf("unsupported model type %q", a.ModelType)
	}
	if len(a.Classes) != 2 || a.Classes[0] != 0 || a.Classes[1] != 1 {
		return fmt.Errorf("expected binary classes [0 1], got %v", a.Classes)
	}
	if len(a.Inputs) == 0 {
		return errors.New("artifact declares no inputs")
	}
	if len(expected) > 0 {
		if len(expected) != len(a.Inputs) {
			return fmt.Errorf("artifact has %d inputs, expected %d", len(a.Inputs), len(expected))
		}
		for i, name := range expected {
			if a.Inputs[i].Name != name {
				return fmt.Errorf("input %d is %q, expected %q", i, a.Inputs[i].Name, name)
			}
		}
	}
	for _, in := range a.Inputs {
		switch in.Kind {
		case models.FeatureNumeric:
		case models.FeatureCategorical:
			if len(in.Categories) < 2 {
				return fmt.Errorf("categorical input %s needs at least two categories", in.Name)
			}
		default:
			return fmt.Errorf("input %s has unknown kind %q", in.Name, in.Kind)
		}
	}
	if len(a.Trees) == 0 {
		return errors.New("artifact contains no trees")
	}

	width := a.EncodedWidth()
	for t, tree := range a.Trees {
		if err := validateTree(tree, width, len(a.Classes)); err != nil {
			return fmt.Errorf("tree %d: %w", t, err)
		}
	}
	return nil
}

func validateTree(tree Tree, width, classes int) error {
	if len(tree.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, node := range tree.Nodes {
		if node.IsLeaf() {
			if len(node.Value) != classes {
				return fmt.Errorf("leaf %d has %d class weights, expected %d", i, len(node.Value), classes)
			}
			total := 0.0
			for _, w := range node.Value {
				if w < 0 {
					return fmt.Errorf("leaf %d has negative weight", i)
				}
				total += w
			}
			if total == 0 {
				return fmt.Errorf("leaf %d has no weight", i)
			}
			continue
		}
		if node.Feature < 0 || node.Feature >= width {
			return fmt.Errorf("node %d splits on column %d outside [0,%d)", i, node.Feature, width)
		}
		// children must point forward so traversal always terminates
		if node.Left <= i || node.Left >= len(tree.Nodes) || node.Right <= i || node.Right >= len(tree.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, node.Left, node.Right)
		}
	}
	return nil
}
