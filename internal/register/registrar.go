package register

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/corvus-data/staralign/internal/config"
	"github.com/corvus-data/staralign/internal/match"
	"github.com/corvus-data/staralign/internal/monitoring"
)

// ErrNoFramesAligned is returned when zero frames besides the reference
// achieve a successful match.
var ErrNoFramesAligned = errors.New("no frames aligned")

// Registrar aligns sequence frames against a reference star list. All
// tunable parameters come from the TuningConfig; a Registrar is stateless
// across RegisterSequence calls and safe for concurrent use.
type Registrar struct {
	cfg *config.TuningConfig
}

// New creates a Registrar. A nil config means all defaults.
func New(cfg *config.TuningConfig) *Registrar {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	return &Registrar{cfg: cfg}
}

// RegisterSequence matches every frame of the sequence against the
// reference and returns the per-frame results. Frames are processed by a
// worker pool; cancellation through ctx is cooperative and coarse: it is
// honoured between frames, never inside a matching attempt, so an
// in-flight frame always runs to completion or hard failure.
//
// Star lists are sorted brightest-first in place as a precondition of
// triangle building.
func (r *Registrar) RegisterSequence(ctx context.Context, seq *Sequence) (*SequenceResult, error) {
	match.SortByBrightness(seq.Ref.Stars)
	for i := range seq.Frames {
		match.SortByBrightness(seq.Frames[i].Stars)
	}

	// The reference triangle indices are immutable during the run and
	// shared read-only by every worker. One set per attempt size, since
	// later attempts widen the candidate pool.
	refSets, err := r.buildRefSets(seq.Ref.Stars)
	if err != nil {
		return nil, fmt.Errorf("reference frame: %w", err)
	}

	results := make([]FrameResult, len(seq.Frames))
	for i := range results {
		results[i].Index = seq.Frames[i].Index
	}

	workers := r.cfg.GetWorkers()
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(seq.Frames) {
		workers = len(seq.Frames)
	}
	if workers < 1 {
		workers = 1
	}

	var aborted atomic.Bool
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Abort flag checked once per frame, not inside the
				// matching loops.
				if aborted.Load() {
					results[i] = FrameResult{Index: seq.Frames[i].Index, Err: ctx.Err()}
					continue
				}
				results[i] = r.registerFrame(refSets, len(seq.Ref.Stars), &seq.Frames[i])
			}
		}()
	}

feed:
	for i := range seq.Frames {
		select {
		case <-ctx.Done():
			aborted.Store(true)
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if aborted.Load() {
		for i := range results {
			if !results[i].Included && results[i].Err == nil {
				results[i].Err = ctx.Err()
			}
		}
	}

	res := &SequenceResult{Frames: results, BestFrame: -1, BestQuality: math.Inf(-1)}
	for i := range results {
		fr := &results[i]
		if fr.Included {
			res.Succeeded++
			if fr.Quality > res.BestQuality {
				res.BestQuality = fr.Quality
				res.BestFrame = fr.Index
			}
		} else {
			res.Failed++
			monitoring.Logf("register: frame %d excluded after %d attempts: %v",
				fr.Index, fr.Attempts, fr.Err)
		}
	}
	monitoring.Logf("register: sequence %q: %d aligned, %d excluded, best frame %d",
		seq.Name, res.Succeeded, res.Failed, res.BestFrame)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if res.Succeeded == 0 {
		return res, fmt.Errorf("sequence %q: %w", seq.Name, ErrNoFramesAligned)
	}
	return res, nil
}

// buildRefSets builds one reference triangle index per attempt size.
func (r *Registrar) buildRefSets(refStars []match.Star) ([]*match.TriangleSet, error) {
	attempts := r.cfg.GetMaxAttempts()
	sets := make([]*match.TriangleSet, attempts)
	for a := 0; a < attempts; a++ {
		ts, err := match.BuildTriangles(refStars, r.nbrightFor(a))
		if err != nil {
			return nil, err
		}
		sets[a] = ts
	}
	return sets, nil
}

func (r *Registrar) nbrightFor(attempt int) int {
	return r.cfg.GetNBright() + attempt*r.cfg.GetNBrightIncrement()
}

// registerFrame runs the bounded attempt loop for one frame. Each retry
// widens the candidate pool by a fixed increment; the first attempt runs
// with relaxed scale bounds since the true scale is not yet pinned down.
func (r *Registrar) registerFrame(refSets []*match.TriangleSet, refCount int, f *Frame) FrameResult {
	res := FrameResult{Index: f.Index, FWHM: f.FWHM, Roundness: f.Roundness}

	order := parseOrder(r.cfg.GetTransformOrder())
	scale := r.scaleConstraint()
	rot := r.rotationConstraint()

	var lastErr error
	for attempt := 0; attempt < r.cfg.GetMaxAttempts(); attempt++ {
		res.Attempts = attempt + 1

		sc := scale
		if attempt == 0 && scale != nil {
			relaxed := scale.Relaxed(2)
			sc = &relaxed
		}

		trans, matched, err := r.matchFrame(refSets[attempt], f, r.nbrightFor(attempt), order, sc, rot)
		if err != nil {
			lastErr = err
			continue
		}
		if trans.Nm < r.cfg.GetMinReqPairs() {
			lastErr = fmt.Errorf("%d matched pairs, need %d: %w",
				trans.Nm, r.cfg.GetMinReqPairs(), match.ErrInsufficientPairs)
			continue
		}

		match.ResetMatches(f.Stars)
		for _, mp := range matched {
			f.Stars[mp.AIndex].MatchID = mp.BIndex
		}

		res.Included = true
		res.Trans = trans
		res.ShiftX, res.ShiftY = trans.Shift()
		res.PairsMatched = trans.Nm
		res.Quality = QualityScore(trans.Nm, minInt(len(f.Stars), refCount), f.FWHM, f.Roundness)
		return res
	}

	res.Err = lastErr
	return res
}

// matchFrame runs one matching attempt through the configured entry path.
// The frame is the A side; the solved transform maps frame coordinates
// into reference space.
func (r *Registrar) matchFrame(refSet *match.TriangleSet, f *Frame, nbright int, order match.TransOrder, scale *match.ScaleRange, rot *match.RotationConstraint) (*match.Trans, []match.MatchedPair, error) {
	frameSet, err := match.BuildTriangles(f.Stars, nbright)
	if err != nil {
		return nil, nil, err
	}

	if r.cfg.GetMatcher() == "quick" {
		qp := match.QuickMatchParams{
			StarMatchRadius: r.cfg.GetStarMatchRadius(),
			Scale:           scale,
			Rotation:        rot,
			MinReqPairs:     r.cfg.GetMinReqPairs(),
			MaxSigma:        r.cfg.GetHaltSigma(),
			MaxIterations:   r.cfg.GetMaxIterations(),
		}
		return match.QuickMatch(frameSet, refSet, qp)
	}

	votes, err := match.MatchTriangles(frameSet, refSet, r.cfg.GetTriangleMatchRadius(), scale, rot)
	if err != nil {
		return nil, nil, err
	}
	top := votes.Top(nbright)
	pairs := make([]match.Pair, top.Len())
	for i := 0; i < top.Len(); i++ {
		a := f.Stars[top.AIdx[i]]
		b := refSet.Stars[top.BIdx[i]]
		pairs[i] = match.Pair{AX: a.X, AY: a.Y, BX: b.X, BY: b.Y}
	}

	params := match.RefineParams{
		Order:         order,
		MaxIterations: r.cfg.GetMaxIterations(),
		HaltSigma:     r.cfg.GetHaltSigma(),
		MaxDist:       r.cfg.GetMaxDist(),
	}
	trans, _, err := match.Refine(pairs, params)
	if err != nil {
		return nil, nil, err
	}
	if err := match.CheckConstraints(trans, scale, rot); err != nil {
		return nil, nil, err
	}

	matched := match.CountMatches(f.Stars, refSet.Stars, trans, r.cfg.GetStarMatchRadius())
	return trans, matched, nil
}

func (r *Registrar) scaleConstraint() *match.ScaleRange {
	min, max, ok := r.cfg.ScaleRange()
	if !ok {
		return nil
	}
	return &match.ScaleRange{Min: min, Max: max}
}

func (r *Registrar) rotationConstraint() *match.RotationConstraint {
	angle, tol, ok := r.cfg.Rotation()
	if !ok {
		return nil
	}
	return &match.RotationConstraint{Angle: angle, Tol: tol}
}

func parseOrder(s string) match.TransOrder {
	switch s {
	case "quadratic":
		return match.OrderQuadratic
	case "cubic":
		return match.OrderCubic
	default:
		return match.OrderLinear
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
