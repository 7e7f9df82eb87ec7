package rgf

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// SaveLearningCurve draws one line per recorded metric and writes the figure
// to path. The image format follows the file extension (png, svg, pdf).
func SaveLearningCurve(history map[string][]float64, title, path string) error {
	if len(history) == 0 {
		return errors.NewValueError("SaveLearningCurve", "empty history")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "metric"
	p.Legend.Top = true

	lines := make([]interface{}, 0, 2*len(history))
	for _, name := range sortedHistoryKeys(history) {
		values := history[name]
		pts := make(plotter.XYs, len(values))
		for i, v := range values {
			pts[i].X = float64(i + 1)
			pts[i].Y = v
		}
		lines = append(lines, name, pts)
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return errors.Wrap(err, "adding learning curve lines")
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving learning curve to %s", path)
	}
	return nil
}

func sortedHistoryKeys(history map[string][]float64) []string {
	flat := make(map[string]float64, len(history))
	for k := range history {
		flat[k] = 0
	}
	return sortedKeys(flat)
}
