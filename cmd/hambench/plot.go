package main

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// renderPlot draws cumulative insert latency per engine: workload
// progress on x, elapsed milliseconds on y.
func renderPlot(path string, results []phaseResult) error {
	p := plot.New()
	p.Title.Text = "bulk insert latency"
	p.X.Label.Text = "workload progress (%)"
	p.Y.Label.Text = "elapsed (ms)"

	var lines []interface{}
	for _, r := range results {
		if r.Operation != "insert" {
			continue
		}
		pts := make(plotter.XYs, len(r.Samples))
		for i, d := range r.Samples {
			pts[i].X = float64(i+1) / float64(len(r.Samples)) * 100
			pts[i].Y = float64(d.Milliseconds())
		}
		lines = append(lines, r.Engine, pts)
	}

	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
