package match

import (
	"errors"
	"math"
	"testing"
)

func TestRefineCleanTranslation(t *testing.T) {
	const dx, dy = 12.5, -7.3
	a := syntheticField(30, 41, 1000, 1000)
	b := translateStars(a, dx, dy)
	pairs := truePairs(a, b)

	tr, kept, err := Refine(pairs, DefaultRefineParams(OrderLinear))
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if len(kept) != len(pairs) {
		t.Errorf("kept %d of %d clean pairs", len(kept), len(pairs))
	}
	gx, gy := tr.Shift()
	if relDiff(gx, dx) > 1e-6 || relDiff(gy, dy) > 1e-6 {
		t.Errorf("shift = (%g,%g), want (%g,%g)", gx, gy, dx, dy)
	}
	if tr.Sig > 1e-6 {
		t.Errorf("sigma = %g on a noiseless field", tr.Sig)
	}
	if tr.Nm != len(kept) {
		t.Errorf("Nm = %d, want %d", tr.Nm, len(kept))
	}
}

// With n true pairs and up to n/2 random outliers mixed in, the refiner
// must converge to roughly the true pair set and the true transform.
func TestRefineRejectsOutliers(t *testing.T) {
	const n = 40
	const dx, dy = 25.0, 13.0
	a := syntheticField(n, 53, 2000, 2000)
	b := translateStars(a, dx, dy)
	clean := truePairs(a, b)
	pairs := injectOutliers(clean, n/2, 77, 2000, 2000)

	tr, kept, err := Refine(pairs, DefaultRefineParams(OrderLinear))
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	gx, gy := tr.Shift()
	if math.Abs(gx-dx) > 0.5 || math.Abs(gy-dy) > 0.5 {
		t.Errorf("shift = (%g,%g), want near (%g,%g)", gx, gy, dx, dy)
	}
	if len(kept) < n-2 {
		t.Errorf("kept only %d pairs, expected close to the %d true ones", len(kept), n)
	}
	scale, rot := tr.ScaleRotation()
	if math.Abs(scale-1) > 0.01 || math.Abs(rot) > 0.5 {
		t.Errorf("scale=%g rot=%g after outlier rejection", scale, rot)
	}
}

// Each extra fit/prune round can only tighten the fit: with the early halt
// disabled, the robust sigma must never grow as the iteration budget rises.
func TestRefineSigmaNonIncreasing(t *testing.T) {
	const n = 40
	a := syntheticField(n, 53, 2000, 2000)
	b := translateStars(a, 25, 13)
	pairs := injectOutliers(truePairs(a, b), n/2, 77, 2000, 2000)

	prev := math.Inf(1)
	var tr *Trans
	for iters := 1; iters <= 5; iters++ {
		p := DefaultRefineParams(OrderLinear)
		p.MaxIterations = iters
		p.HaltSigma = 0

		var err error
		tr, _, err = Refine(pairs, p)
		if err != nil {
			t.Fatalf("Refine with %d iterations: %v", iters, err)
		}
		if tr.Sig > prev {
			t.Errorf("sigma rose from %g to %g at %d iterations", prev, tr.Sig, iters)
		}
		prev = tr.Sig
	}
	if tr.Nm != n {
		t.Errorf("Nm = %d after full refinement, want the %d true pairs", tr.Nm, n)
	}
}

func TestRefineNoisyField(t *testing.T) {
	a := syntheticField(50, 61, 2000, 2000)
	b := noisyStars(translateStars(a, 5, 5), 0.3, 62)
	pairs := truePairs(a, b)

	p := DefaultRefineParams(OrderLinear)
	tr, _, err := Refine(pairs, p)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if tr.Sig > p.HaltSigma*2 {
		t.Errorf("sigma = %g for 0.3px noise", tr.Sig)
	}
	gx, gy := tr.Shift()
	if math.Abs(gx-5) > 0.3 || math.Abs(gy-5) > 0.3 {
		t.Errorf("shift = (%g,%g), want near (5,5)", gx, gy)
	}
}

func TestRefineInsufficientAfterPruning(t *testing.T) {
	// All pairs beyond MaxDist of any consistent fit collapse the set.
	pairs := []Pair{
		{AX: 0, AY: 0, BX: 900, BY: 900},
		{AX: 10, AY: 0, BX: 0, BY: 500},
		{AX: 0, AY: 10, BX: 700, BY: 0},
		{AX: 10, AY: 10, BX: 100, BY: 100},
		{AX: 20, AY: 5, BX: 400, BY: 800},
		{AX: 5, AY: 20, BX: 300, BY: 200},
	}
	p := DefaultRefineParams(OrderLinear)
	p.MaxDist = 1.0
	_, _, err := Refine(pairs, p)
	if err == nil {
		t.Fatal("expected an error from a pure-outlier set")
	}
	if !errors.Is(err, ErrInsufficientPairs) && !errors.Is(err, ErrSingularSystem) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRefineDeterministic(t *testing.T) {
	a := syntheticField(30, 71, 1000, 1000)
	b := translateStars(a, 9, -4)
	pairs := injectOutliers(truePairs(a, b), 10, 72, 1000, 1000)

	t1, k1, err1 := Refine(pairs, DefaultRefineParams(OrderLinear))
	t2, k2, err2 := Refine(pairs, DefaultRefineParams(OrderLinear))
	if err1 != nil || err2 != nil {
		t.Fatalf("Refine: %v / %v", err1, err2)
	}
	if len(k1) != len(k2) {
		t.Fatalf("kept sets differ: %d vs %d", len(k1), len(k2))
	}
	if *t1 != *t2 {
		t.Error("repeated refinement produced different transforms")
	}
}
