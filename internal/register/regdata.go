package register

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FrameRecord is the minimal per-frame alignment record persisted by the
// sequence-metadata writer, one line per frame per layer.
type FrameRecord struct {
	Layer     int
	ShiftX    float64
	ShiftY    float64
	FWHM      float64
	Roundness float64
	Quality   float64
}

// FormatFrameRecord renders one regdata line:
//
//	R<layer> shiftx shifty fwhm roundness quality
func FormatFrameRecord(rec FrameRecord) string {
	return fmt.Sprintf("R%d %g %g %g %g %g",
		rec.Layer, rec.ShiftX, rec.ShiftY, rec.FWHM, rec.Roundness, rec.Quality)
}

// ParseFrameRecord parses a regdata line produced by FormatFrameRecord.
func ParseFrameRecord(line string) (FrameRecord, error) {
	var rec FrameRecord
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 6 || !strings.HasPrefix(fields[0], "R") {
		return rec, fmt.Errorf("malformed regdata line %q", line)
	}
	layer, err := strconv.Atoi(fields[0][1:])
	if err != nil {
		return rec, fmt.Errorf("malformed layer in %q: %w", line, err)
	}
	rec.Layer = layer
	dst := [5]*float64{&rec.ShiftX, &rec.ShiftY, &rec.FWHM, &rec.Roundness, &rec.Quality}
	for i, p := range dst {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return rec, fmt.Errorf("malformed field %d in %q: %w", i+1, line, err)
		}
		*p = v
	}
	return rec, nil
}

// WriteRegData writes one record line per frame, in frame order. Excluded
// frames are written with zero shift and zero quality so line position
// keeps tracking frame position.
func WriteRegData(w io.Writer, layer int, frames []FrameResult) error {
	bw := bufio.NewWriter(w)
	for i := range frames {
		fr := &frames[i]
		rec := FrameRecord{Layer: layer, FWHM: fr.FWHM, Roundness: fr.Roundness}
		if fr.Included {
			rec.ShiftX = fr.ShiftX
			rec.ShiftY = fr.ShiftY
			rec.Quality = fr.Quality
		}
		if _, err := fmt.Fprintln(bw, FormatFrameRecord(rec)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadRegData parses all record lines from r, skipping blank lines.
func ReadRegData(r io.Reader) ([]FrameRecord, error) {
	var out []FrameRecord
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rec, err := ParseFrameRecord(line)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
