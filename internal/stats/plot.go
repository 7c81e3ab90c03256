package stats

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"carvolve/internal/model"
)

// WriteFitnessPlot draws average and max fitness against generation index.
// The image format follows the file extension.
func WriteFitnessPlot(path, title string, stats []model.GenerationStats) error {
	if len(stats) == 0 {
		return fmt.Errorf("no generations to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"

	avgPts := make(plotter.XYs, len(stats))
	maxPts := make(plotter.XYs, len(stats))
	for i, s := range stats {
		avgPts[i].X = float64(s.Generation)
		avgPts[i].Y = s.AverageFitness
		maxPts[i].X = float64(s.Generation)
		maxPts[i].Y = s.MaxFitness
	}

	avgLine, err := plotter.NewLine(avgPts)
	if err != nil {
		return err
	}
	maxLine, err := plotter.NewLine(maxPts)
	if err != nil {
		return err
	}
	maxLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(plotter.NewGrid(), avgLine, maxLine)
	p.Legend.Add("Average fitness", avgLine)
	p.Legend.Add("Max fitness", maxLine)
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
