package inference

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/neurogo/metrics"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

func TestHeatmapWritesPNG(t *testing.T) {
	report := &metrics.ClassificationReport{
		ConfusionMatrix: [][]int{
			{12, 1, 0},
			{2, 9, 1},
			{0, 3, 8},
		},
		Labels: []float64{0, 1, 2},
	}

	path := filepath.Join(t.TempDir(), "confusion.png")
	if err := Heatmap(report, path); err != nil {
		t.Fatalf("Heatmap failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading the rendered file failed: %v", err)
	}
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Error("rendered file is not a PNG")
	}
}

func TestHeatmapValidation(t *testing.T) {
	var valErr *errors.ValidationError

	if err := Heatmap(nil, "out.png"); !errors.As(err, &valErr) {
		t.Errorf("expected ValidationError for a nil report, got %v", err)
	}

	empty := &metrics.ClassificationReport{}
	if err := Heatmap(empty, "out.png"); !errors.As(err, &valErr) {
		t.Errorf("expected ValidationError for an empty confusion matrix, got %v", err)
	}
}

func TestHeatmapBadPath(t *testing.T) {
	report := &metrics.ClassificationReport{
		ConfusionMatrix: [][]int{{1, 0}, {0, 1}},
		Labels:          []float64{0, 1},
	}

	err := Heatmap(report, filepath.Join(t.TempDir(), "missing", "confusion.png"))
	var persErr *errors.PersistenceError
	if !errors.As(err, &persErr) {
		t.Fatalf("expected PersistenceError for an unwritable path, got %v", err)
	}
}
