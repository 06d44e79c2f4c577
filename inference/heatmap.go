package inference

import (
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/neurogo/metrics"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

// Heatmap renders a confusion matrix as a PNG heat map at path. Rows are
// actual classes, columns predicted classes, in the ascending label order of
// the report.
func Heatmap(report *metrics.ClassificationReport, path string) error {
	if report == nil || len(report.ConfusionMatrix) == 0 {
		return errors.NewValidationError("report", "a confusion matrix is required", report)
	}

	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Actual"
	p.X.Tick.Marker = classTicks(report.Labels)
	p.Y.Tick.Marker = classTicks(report.Labels)

	grid := confusionGrid{cm: report.ConfusionMatrix}
	p.Add(plotter.NewHeatMap(grid, palette.Heat(12, 1)))

	if err := p.Save(14*vg.Centimeter, 12*vg.Centimeter, path); err != nil {
		return errors.NewPersistenceError("heatmap", path, err)
	}
	return nil
}

// confusionGrid adapts a confusion matrix to the plotter grid interface.
type confusionGrid struct {
	cm [][]int
}

func (g confusionGrid) Dims() (int, int) { return len(g.cm), len(g.cm) }

func (g confusionGrid) Z(c, r int) float64 { return float64(g.cm[r][c]) }

func (g confusionGrid) X(c int) float64 { return float64(c) }

func (g confusionGrid) Y(r int) float64 { return float64(r) }

// classTicks places one tick per class, labeled with the class value.
type classTicks []float64

func (t classTicks) Ticks(_, _ float64) []plot.Tick {
	ticks := make([]plot.Tick, len(t))
	for i, label := range t {
		ticks[i] = plot.Tick{
			Value: float64(i),
			Label: strconv.FormatFloat(label, 'g', -1, 64),
		}
	}
	return ticks
}
