package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corvus-data/staralign/internal/match"
	"github.com/corvus-data/staralign/internal/register"
)

func sampleResult() (*register.Sequence, *register.SequenceResult) {
	tr := &match.Trans{Order: match.OrderLinear, Nr: 20, Nm: 18, Sig: 0.3}
	tr.XC[0], tr.YC[0] = 4.5, -2.0
	tr.XC[1], tr.YC[2] = 1, 1
	seq := &register.Sequence{Name: "ngc7000"}
	res := &register.SequenceResult{
		Frames: []register.FrameResult{
			{Index: 0, Included: true, Trans: tr, ShiftX: 4.5, ShiftY: -2.0, Quality: 0.4},
			{Index: 1, Included: false},
		},
		Succeeded: 1, Failed: 1, BestFrame: 0, BestQuality: 0.4,
	}
	return seq, res
}

func TestWriteSequenceHTML(t *testing.T) {
	seq, res := sampleResult()
	var buf bytes.Buffer
	if err := WriteSequenceHTML(&buf, seq, res); err != nil {
		t.Fatalf("WriteSequenceHTML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Frame Quality", "Frame Shifts", "ngc7000", "echarts"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered HTML lacks %q", want)
		}
	}
}

func TestWriteSequenceHTMLNilArgs(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSequenceHTML(&buf, nil, nil); err == nil {
		t.Fatal("expected an error for nil inputs")
	}
}

func TestSaveResidualPlot(t *testing.T) {
	_, res := sampleResult()
	pairs := []match.Pair{
		{AX: 0, AY: 0, BX: 4.6, BY: -2.1},
		{AX: 100, AY: 50, BX: 104.4, BY: 48.2},
		{AX: 30, AY: 80, BX: 34.5, BY: 77.9},
	}
	path := filepath.Join(t.TempDir(), "residuals", "frame0.png")
	if err := SaveResidualPlot(path, pairs, res.Frames[0].Trans); err != nil {
		t.Fatalf("SaveResidualPlot: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat plot: %v", err)
	}
	if info.Size() == 0 {
		t.Error("plot file is empty")
	}
}

func TestSaveQualityPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quality.png")
	if err := SaveQualityPlot(path, []float64{0.1, 0.4, 0.35, 0.0}); err != nil {
		t.Fatalf("SaveQualityPlot: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("quality plot missing or empty: %v", err)
	}
}
