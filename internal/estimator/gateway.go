package estimator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/peoplesignal/attrition-api/internal/models"
	"github.com/peoplesignal/attrition-api/internal/utils"
)

// ErrNotLoaded is returned by Predict until Load has succeeded.
var ErrNotLoaded = errors.New("model not loaded")

// ArtifactInfo describes the loaded model.
type ArtifactInfo struct {
	Path    string
	Variant string
	Trees   int
	Inputs  []string
}

// Gateway owns the trained estimator. Load is attempted exactly once; a
// failed load leaves the gateway permanently unloaded.
type Gateway struct {
	path     string
	expected []string

	once    sync.Once
	loadErr error
	forest  atomic.Pointer[Forest]
	info    atomic.Pointer[ArtifactInfo]
}

// NewGateway constructs an unloaded gateway for the artifact at path.
// expected lists the input names the artifact must declare, in order.
func NewGateway(path string, expected []string) *Gateway {
	return &Gateway{path: path, expected: append([]string(nil), expected...)}
}

// Load reads and validates the artifact. Subsequent calls return the
// outcome of the first attempt.
func (g *Gateway) Load(ctx context.Context) error {
	g.once.Do(func() {
		g.loadErr = g.load(ctx)
	})
	return g.loadErr
}

func (g *Gateway) load(ctx context.Context) error {
	const op = "estimator.Load"
	if err := ctx.Err(); err != nil {
		return utils.NewKindError(utils.KindLoadError, op, "model load cancelled", nil, err)
	}
	if g.path == "" {
		return utils.NewKindError(utils.KindLoadError, op, "model path not configured", nil, nil)
	}
	artifact, err := ReadArtifact(g.path)
	if err != nil {
		return utils.NewKindError(utils.KindLoadError, op, "failed to read model artifact", nil, err)
	}
	forest, err := NewForest(artifact, g.expected)
	if err != nil {
		return utils.NewKindError(utils.KindLoadError, op, "incompatible model artifact", nil, err)
	}

	inputs := make([]string, len(artifact.Inputs))
	for i, in := range artifact.Inputs {
		inputs[i] = in.Name
	}
	g.info.Store(&ArtifactInfo{Path: g.path, Variant: artifact.Variant, Trees: len(artifact.Trees), Inputs: inputs})
	g.forest.Store(forest)
	return nil
}

// Loaded reports whether a model is available for prediction.
func (g *Gateway) Loaded() bool {
	return g.forest.Load() != nil
}

// Info returns metadata of the loaded artifact, or false before load.
func (g *Gateway) Info() (ArtifactInfo, bool) {
	info := g.info.Load()
	if info == nil {
		return ArtifactInfo{}, false
	}
	return *info, true
}

// Predict evaluates a single row.
func (g *Gateway) Predict(ctx context.Context, row models.Row) (models.RawPrediction, error) {
	forest := g.forest.Load()
	if forest == nil {
		return models.RawPrediction{}, ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return models.RawPrediction{}, err
	}
	raw, err := forest.Predict(row)
	if err != nil {
		return models.RawPrediction{}, fmt.Errorf("estimator predict: %w", err)
	}
	return raw, nil
}
