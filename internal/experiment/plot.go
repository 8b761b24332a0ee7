package experiment

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Curve is one named series of a plot
type Curve struct {
	Name string
	X, Y []float64
}

// PlotCurves draws every curve as a line and saves the plot to path. The image
// format follows the file extension (png, svg, pdf...).
func PlotCurves(path, title, xLabel, yLabel string, curves []Curve) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	for i, c := range curves {
		if len(c.X) != len(c.Y) {
			return fmt.Errorf("curve %s has %d x values and %d y values", c.Name, len(c.X), len(c.Y))
		}
		if len(c.X) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(c.X))
		for j := range c.X {
			pts[j].X = c.X[j]
			pts[j].Y = c.Y[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		p.Add(line)
		p.Legend.Add(c.Name, line)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return err
	}
	return nil
}
