// Package results serves the pre-computed training metrics document.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/peoplesignal/attrition-api/internal/models"
	"github.com/peoplesignal/attrition-api/internal/utils"
)

// Store is a read-only accessor over the training results document. The
// document is loaded once and never mutated afterwards.
type Store struct {
	path string

	once    sync.Once
	loadErr error
	doc     atomic.Pointer[models.TrainingResults]
}

// NewStore constructs an unloaded store for the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads and validates the document. Only the first call does work.
func (s *Store) Load(ctx context.Context) error {
	s.once.Do(func() {
		s.loadErr = s.load(ctx)
	})
	return s.loadErr
}

func (s *Store) load(ctx context.Context) error {
	const op = "results.Load"
	if err := ctx.Err(); err != nil {
		return utils.NewKindError(utils.KindLoadError, op, "results load cancelled", nil, err)
	}
	if s.path == "" {
		return utils.NewKindError(utils.KindLoadError, op, "results path not configured", nil, nil)
	}
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return utils.NewKindError(utils.KindLoadError, op, "failed to read results document", nil, err)
	}
	var doc models.TrainingResults
	if err := json.Unmarshal(payload, &doc); err != nil {
		return utils.NewKindError(utils.KindLoadError, op, "malformed results document", nil, err)
	}
	if err := validate(&doc); err != nil {
		return utils.NewKindError(utils.KindLoadError, op, "malformed results document", nil, err)
	}
	s.doc.Store(&doc)
	return nil
}

func validate(doc *models.TrainingResults) error {
	if len(doc.Models) == 0 {
		return errors.New("document has no models")
	}
	for _, variant := range models.Variants() {
		m, ok := doc.Models[variant]
		if !ok {
			return fmt.Errorf("model %q missing", variant)
		}
		if m.NumFeatures <= 0 {
			return fmt.Errorf("model %q has no features", variant)
		}
		if m.TestAccuracy < 0 || m.TestAccuracy > 100 {
			return fmt.Errorf("model %q test accuracy %.2f outside [0,100]", variant, m.TestAccuracy)
		}
	}
	return nil
}

// Loaded reports whether the document is available.
func (s *Store) Loaded() bool {
	return s.doc.Load() != nil
}

func (s *Store) current(op string) (*models.TrainingResults, error) {
	doc := s.doc.Load()
	if doc == nil {
		return nil, utils.NewKindError(utils.KindDependencyNotLoaded, op, "Results not loaded", nil, nil)
	}
	return doc, nil
}

// All returns the complete document.
func (s *Store) All() (*models.TrainingResults, error) {
	return s.current("results.All")
}

// Summary returns the cross-variant comparison.
func (s *Store) Summary() (models.ResultsSummary, error) {
	doc, err := s.current("results.Summary")
	if err != nil {
		return models.ResultsSummary{}, err
	}
	summary := models.ResultsSummary{
		TrainingDate:  doc.TrainingDate,
		DatasetInfo:   doc.DatasetInfo,
		ModelsSummary: make(map[models.Variant]models.ModelSummary, len(doc.Models)),
		Comparison:    doc.Comparison,
	}
	for _, variant := range models.Variants() {
		m := doc.Models[variant]
		summary.ModelsSummary[variant] = models.ModelSummary{
			Features:     m.NumFeatures,
			TestAccuracy: m.TestAccuracy,
			TrainingTime: m.TrainingTime,
		}
	}
	return summary, nil
}

// Model returns the detail of one variant.
func (s *Store) Model(variant models.Variant) (models.ModelResults, error) {
	const op = "results.Model"
	if !variant.Valid() {
		return models.ModelResults{}, utils.NewKindError(utils.KindClientContract, op,
			"Invalid model type. Use: full, reduced, or minimal", nil, nil)
	}
	doc, err := s.current(op)
	if err != nil {
		return models.ModelResults{}, err
	}
	m, ok := doc.Models[variant]
	if !ok {
		return models.ModelResults{}, utils.NewKindError(utils.KindNotFound, op,
			fmt.Sprintf("Results for model %s not found", variant), nil, nil)
	}
	return m, nil
}

// Accuracy returns the test accuracy (percent) of a variant, or false when
// unknown or not loaded.
func (s *Store) Accuracy(variant models.Variant) (float64, bool) {
	doc := s.doc.Load()
	if doc == nil || !variant.Valid() {
		return 0, false
	}
	m, ok := doc.Models[variant]
	if !ok {
		return 0, false
	}
	return m.TestAccuracy, true
}

// DatasetInfo returns the dataset section, or nil before load.
func (s *Store) DatasetInfo() map[string]any {
	doc := s.doc.Load()
	if doc == nil {
		return nil
	}
	return doc.DatasetInfo
}
