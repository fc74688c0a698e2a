// Command sample-artifacts writes a model artifact, a results document and
// placeholder report images so the API can run without the training toolchain.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/peoplesignal/attrition-api/internal/estimator"
	"github.com/peoplesignal/attrition-api/internal/results"
	"github.com/peoplesignal/attrition-api/internal/utils"
)

var images = map[string][]string{
	"comparison": {
		"model_accuracy_comparison.png",
		"feature_efficiency.png",
		"training_time_comparison.png",
		"confusion_matrix_comparison.png",
		"metrics_overview.png",
		"summary_dashboard.png",
	},
	"full":    {"confusion_matrix.png", "classification_metrics.png", "feature_importance.png"},
	"reduced": {"confusion_matrix.png", "classification_metrics.png", "feature_importance.png"},
	"minimal": {"confusion_matrix.png", "classification_metrics.png", "feature_importance.png"},
}

var tints = map[string]color.RGBA{
	"comparison": {R: 0x4c, G: 0x72, B: 0xb0, A: 0xff},
	"full":       {R: 0xdd, G: 0x84, B: 0x52, A: 0xff},
	"reduced":    {R: 0x55, G: 0xa8, B: 0x68, A: 0xff},
	"minimal":    {R: 0xc4, G: 0x4e, B: 0x52, A: 0xff},
}

func main() {
	var dir string
	flag.StringVar(&dir, "out", "model", "Directory to write artifacts into")
	flag.Parse()

	logger := utils.NewLogger("info", false, utils.LogFile{})
	written, err := generate(dir)
	if err != nil {
		logger.Error("failed to write sample artifacts", slog.String("dir", dir), slog.Any("error", err))
		os.Exit(1)
	}
	for _, path := range written {
		logger.Info("wrote", slog.String("path", path))
	}
}

// generate writes the sample tree under dir and returns the written paths.
func generate(dir string) ([]string, error) {
	modelPath := filepath.Join(dir, "attrition_pipeline_minimal.json")
	if err := estimator.SampleArtifact().Save(modelPath); err != nil {
		return nil, fmt.Errorf("write model: %w", err)
	}
	resultsPath := filepath.Join(dir, "hasil.json")
	if err := results.WriteDocument(resultsPath, results.SampleDocument()); err != nil {
		return nil, fmt.Errorf("write results: %w", err)
	}
	written := []string{modelPath, resultsPath}

	for category, files := range images {
		for _, name := range files {
			path := filepath.Join(dir, "img", category, name)
			if err := writePlaceholder(path, tints[category]); err != nil {
				return nil, fmt.Errorf("write image %s: %w", path, err)
			}
			written = append(written, path)
		}
	}
	return written, nil
}

func writePlaceholder(path string, tint color.RGBA) error {
	const w, h = 320, 200
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 0xf5, G: 0xf5, B: 0xf5, A: 0xff}
			if x < 8 || y < 8 || x >= w-8 || y >= h-8 {
				c = tint
			}
			img.Set(x, y, c)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
