// Command staralign registers a sequence of star-list frames against a
// reference frame and writes the per-frame shifts, an optional sqlite run
// record, and an optional HTML report.
//
// Star lists are CSV files with one star per line: x,y,mag. Frames are
// matched to the reference in lexical filename order.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/corvus-data/staralign/internal/config"
	"github.com/corvus-data/staralign/internal/match"
	"github.com/corvus-data/staralign/internal/register"
	"github.com/corvus-data/staralign/internal/report"
	"github.com/corvus-data/staralign/internal/version"
)

func main() {
	refPath := flag.String("ref", "", "Reference frame star list (CSV: x,y,mag)")
	framesGlob := flag.String("frames", "", "Glob of frame star lists to register")
	configPath := flag.String("config", "", "Tuning config JSON (default: built-in defaults)")
	layer := flag.Int("layer", 0, "Layer number written to the regdata records")
	seqName := flag.String("name", "sequence", "Sequence name for reports and run records")
	outPath := flag.String("out", "", "Write regdata shift records to this file")
	dbPath := flag.String("db", "", "Record the run in this sqlite database")
	htmlPath := flag.String("report", "", "Write an HTML report to this file")
	residualPath := flag.String("residuals", "", "Write a residual scatter PNG for the best frame")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("staralign", version.String())
		return
	}

	if *refPath == "" || *framesGlob == "" {
		fmt.Fprintln(os.Stderr, "usage: staralign -ref ref.csv -frames 'frames/*.csv' [-out shifts.reg] [-db runs.db] [-report run.html]")
		os.Exit(2)
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	refStars, refMeta, err := readStarList(*refPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read reference: %v\n", err)
		os.Exit(1)
	}

	paths, err := filepath.Glob(*framesGlob)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad frames glob: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "no frames match %q\n", *framesGlob)
		os.Exit(1)
	}
	sort.Strings(paths)

	seq := &register.Sequence{
		Name:  *seqName,
		Layer: *layer,
		Ref: register.Frame{
			Index:     -1,
			Stars:     refStars,
			FWHM:      refMeta.fwhm,
			Roundness: refMeta.roundness,
		},
	}
	for i, p := range paths {
		stars, meta, err := readStarList(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read frame %s: %v\n", p, err)
			os.Exit(1)
		}
		seq.Frames = append(seq.Frames, register.Frame{
			Index:     i,
			Stars:     stars,
			FWHM:      meta.fwhm,
			Roundness: meta.roundness,
		})
	}

	reg := register.New(cfg)
	res, err := reg.RegisterSequence(context.Background(), seq)
	if err != nil {
		fmt.Fprintf(os.Stderr, "register: %v\n", err)
		os.Exit(1)
	}

	for _, fr := range res.Frames {
		if !fr.Included {
			fmt.Printf("frame %s: excluded (%v)\n", paths[fr.Index], fr.Err)
			continue
		}
		fmt.Printf("frame %s: shift=(%.3f, %.3f) pairs=%d quality=%.4f\n",
			paths[fr.Index], fr.ShiftX, fr.ShiftY, fr.PairsMatched, fr.Quality)
	}
	fmt.Printf("registered %d/%d frames, best frame %d (quality %.4f)\n",
		res.Succeeded, res.Succeeded+res.Failed, res.BestFrame, res.BestQuality)

	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create regdata: %v\n", err)
			os.Exit(1)
		}
		err = register.WriteRegData(f, *layer, res.Frames)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "write regdata: %v\n", err)
			os.Exit(1)
		}
	}

	if *dbPath != "" {
		if err := recordRun(*dbPath, seq, res); err != nil {
			fmt.Fprintf(os.Stderr, "record run: %v\n", err)
			os.Exit(1)
		}
	}

	if *htmlPath != "" {
		if err := report.SaveSequenceHTML(*htmlPath, seq, res); err != nil {
			fmt.Fprintf(os.Stderr, "write report: %v\n", err)
			os.Exit(1)
		}
	}

	if *residualPath != "" && res.BestFrame >= 0 {
		if err := saveBestResiduals(*residualPath, seq, res, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "write residual plot: %v\n", err)
			os.Exit(1)
		}
	}
}

func recordRun(path string, seq *register.Sequence, res *register.SequenceResult) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	store, err := register.NewStore(db)
	if err != nil {
		return err
	}
	runID, err := store.InsertRun("", seq, res)
	if err != nil {
		return err
	}
	fmt.Printf("recorded run %s in %s\n", runID, path)
	return nil
}

// saveBestResiduals re-matches the best frame's stars against the reference
// under its fitted transform and plots the residual vectors.
func saveBestResiduals(path string, seq *register.Sequence, res *register.SequenceResult, cfg *config.TuningConfig) error {
	fr := res.Frames[res.BestFrame]
	if fr.Trans == nil {
		return fmt.Errorf("best frame has no transform")
	}
	var pairs []match.Pair
	radius := cfg.GetStarMatchRadius()
	for _, s := range seq.Frames[res.BestFrame].Stars {
		if s.MatchID == match.UnmatchedID || s.MatchID >= len(seq.Ref.Stars) {
			continue
		}
		r := seq.Ref.Stars[s.MatchID]
		px, py := fr.Trans.Apply(s.X, s.Y)
		dx, dy := px-r.X, py-r.Y
		if dx*dx+dy*dy > radius*radius {
			continue
		}
		pairs = append(pairs, match.Pair{AX: s.X, AY: s.Y, BX: r.X, BY: r.Y})
	}
	return report.SaveResidualPlot(path, pairs, fr.Trans)
}

type frameMeta struct {
	fwhm      float64
	roundness float64
}

// readStarList parses a star-list CSV. Columns are x,y,mag with an optional
// header row. A comment line of the form "# fwhm=F roundness=R" carries the
// frame's measured image quality.
func readStarList(path string) ([]match.Star, frameMeta, error) {
	meta := frameMeta{fwhm: 1.0, roundness: 1.0}

	f, err := os.Open(path)
	if err != nil {
		return nil, meta, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var stars []match.Star
	id := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, meta, err
		}
		if len(rec) < 3 {
			return nil, meta, fmt.Errorf("%s: line needs x,y,mag columns", path)
		}
		x, errX := strconv.ParseFloat(rec[0], 64)
		y, errY := strconv.ParseFloat(rec[1], 64)
		mag, errM := strconv.ParseFloat(rec[2], 64)
		if errX != nil || errY != nil || errM != nil {
			if id == 0 && len(stars) == 0 {
				continue // header row
			}
			return nil, meta, fmt.Errorf("%s: bad numeric fields %v", path, rec)
		}
		stars = append(stars, match.NewStar(id, x, y, mag))
		id++
	}
	if meta2, ok := readMetaComment(path); ok {
		meta = meta2
	}
	return stars, meta, nil
}

// readMetaComment scans for a "# fwhm=F roundness=R" comment, which the CSV
// reader skips.
func readMetaComment(path string) (frameMeta, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return frameMeta{}, false
	}
	var fwhm, roundness float64
	n, err := fmt.Sscanf(string(firstCommentLine(b)), "# fwhm=%g roundness=%g", &fwhm, &roundness)
	if err != nil || n != 2 {
		return frameMeta{}, false
	}
	return frameMeta{fwhm: fwhm, roundness: roundness}, true
}

func firstCommentLine(b []byte) []byte {
	start := -1
	for i := 0; i < len(b); i++ {
		if b[i] == '#' && (i == 0 || b[i-1] == '\n') {
			start = i
		}
		if start >= 0 && b[i] == '\n' {
			return b[start:i]
		}
	}
	if start >= 0 {
		return b[start:]
	}
	return nil
}
