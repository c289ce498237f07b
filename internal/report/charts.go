// Package report renders registration results as HTML charts and PNG plots
// for offline inspection of a sequence run.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/corvus-data/staralign/internal/register"
)

// WriteSequenceHTML renders an HTML page summarising a registration run:
// per-frame quality as a bar chart and the fitted shift of every accepted
// frame as a scatter coloured by residual sigma.
func WriteSequenceHTML(w io.Writer, seq *register.Sequence, res *register.SequenceResult) error {
	if seq == nil || res == nil {
		return fmt.Errorf("report: nil sequence or result")
	}

	page := components.NewPage()
	page.AddCharts(qualityBar(seq, res), shiftScatter(seq, res))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("report: render page: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// SaveSequenceHTML writes the sequence report to a file.
func SaveSequenceHTML(path string, seq *register.Sequence, res *register.SequenceResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteSequenceHTML(f, seq, res)
}

func qualityBar(seq *register.Sequence, res *register.SequenceResult) *charts.Bar {
	x := make([]string, 0, len(res.Frames))
	y := make([]opts.BarData, 0, len(res.Frames))
	for _, fr := range res.Frames {
		x = append(x, fmt.Sprintf("%d", fr.Index))
		q := 0.0
		if fr.Included {
			q = fr.Quality
		}
		y = append(y, opts.BarData{Value: q})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Registration " + seq.Name, Width: "1100px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Frame Quality",
			Subtitle: fmt.Sprintf("sequence=%s succeeded=%d failed=%d best=%d", seq.Name, res.Succeeded, res.Failed, res.BestFrame),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Quality"}),
	)
	bar.SetXAxis(x).
		AddSeries("quality", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)
	return bar
}

func shiftScatter(seq *register.Sequence, res *register.SequenceResult) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(res.Frames))
	maxAbs := 0.0
	maxSig := 0.0
	for _, fr := range res.Frames {
		if !fr.Included || fr.Trans == nil {
			continue
		}
		if abs(fr.ShiftX) > maxAbs {
			maxAbs = abs(fr.ShiftX)
		}
		if abs(fr.ShiftY) > maxAbs {
			maxAbs = abs(fr.ShiftY)
		}
		if fr.Trans.Sig > maxSig {
			maxSig = fr.Trans.Sig
		}
		data = append(data, opts.ScatterData{Value: []interface{}{fr.ShiftX, fr.ShiftY, fr.Trans.Sig}})
	}

	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	if maxSig == 0 {
		maxSig = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "700px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Frame Shifts", Subtitle: fmt.Sprintf("sequence=%s frames=%d", seq.Name, len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "Shift X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Shift Y (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSig),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("shift", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	return scatter
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
