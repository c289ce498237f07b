package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/corvus-data/staralign/internal/match"
)

// SaveResidualPlot writes a PNG scatter of the per-pair residual vectors
// (projected minus reference position) for a fitted transform. Useful for
// spotting uncorrected field distortion: a clean fit scatters residuals
// isotropically around the origin.
func SaveResidualPlot(path string, pairs []match.Pair, t *match.Trans) error {
	if t == nil {
		return fmt.Errorf("report: nil transform")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	pts := make(plotter.XYs, 0, len(pairs))
	for _, pr := range pairs {
		px, py := t.Apply(pr.AX, pr.AY)
		pts = append(pts, plotter.XY{X: px - pr.BX, Y: py - pr.BY})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Residuals (n=%d, sigma=%.3f)", len(pts), t.Sig)
	p.X.Label.Text = "dx (px)"
	p.Y.Label.Text = "dy (px)"

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Radius = vg.Points(2)
	p.Add(sc)
	p.Add(plotter.NewGrid())

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save residual plot: %w", err)
	}
	return nil
}

// SaveQualityPlot writes a PNG line chart of per-frame quality for a run,
// mirroring the HTML bar chart for environments without a browser.
func SaveQualityPlot(path string, quality []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	pts := make(plotter.XYs, 0, len(quality))
	for i, q := range quality {
		pts = append(pts, plotter.XY{X: float64(i), Y: q})
	}

	p := plot.New()
	p.Title.Text = "Frame Quality"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Quality"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("quality", line)
	p.Legend.Top = true

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}
