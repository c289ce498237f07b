package match

import (
	"errors"
	"math"
	"testing"
)

func TestTransOrderCounts(t *testing.T) {
	cases := []struct {
		order    TransOrder
		terms    int
		coeffs   int
		required int
		start    int
	}{
		{OrderLinear, 3, 6, 3, 6},
		{OrderQuadratic, 6, 12, 6, 12},
		{OrderCubic, 8, 16, 8, 16},
	}
	for _, c := range cases {
		if got := c.order.terms(); got != c.terms {
			t.Errorf("%s terms = %d, want %d", c.order, got, c.terms)
		}
		if got := c.order.Coeffs(); got != c.coeffs {
			t.Errorf("%s coeffs = %d, want %d", c.order, got, c.coeffs)
		}
		if got := c.order.RequiredPairs(); got != c.required {
			t.Errorf("%s required = %d, want %d", c.order, got, c.required)
		}
		if got := c.order.StartPairs(); got != c.start {
			t.Errorf("%s start = %d, want %d", c.order, got, c.start)
		}
	}
}

func TestSolveTransIdentity(t *testing.T) {
	stars := syntheticField(10, 5, 1000, 1000)
	pairs := truePairs(stars, stars)

	tr, err := SolveTrans(pairs, OrderLinear)
	if err != nil {
		t.Fatalf("SolveTrans: %v", err)
	}
	for _, s := range stars {
		x, y := tr.Apply(s.X, s.Y)
		if math.Abs(x-s.X) > 1e-9 || math.Abs(y-s.Y) > 1e-9 {
			t.Errorf("identity fit moved (%g,%g) to (%g,%g)", s.X, s.Y, x, y)
		}
	}
	scale, rot := tr.ScaleRotation()
	if math.Abs(scale-1) > 1e-9 || math.Abs(rot) > 1e-9 {
		t.Errorf("identity fit: scale=%g rot=%g", scale, rot)
	}
}

func TestSolveTransPureTranslation(t *testing.T) {
	const dx, dy = 12.5, -7.3
	a := syntheticField(10, 17, 1000, 1000)
	b := translateStars(a, dx, dy)
	pairs := truePairs(a, b)

	for _, order := range []TransOrder{OrderLinear, OrderQuadratic, OrderCubic} {
		tr, err := SolveTrans(pairs, order)
		if err != nil {
			t.Fatalf("%s: SolveTrans: %v", order, err)
		}
		gx, gy := tr.Shift()
		if relDiff(gx, dx) > 1e-6 || relDiff(gy, dy) > 1e-6 {
			t.Errorf("%s: shift = (%g,%g), want (%g,%g)", order, gx, gy, dx, dy)
		}
		for _, s := range a {
			x, y := tr.Apply(s.X, s.Y)
			if math.Abs(x-(s.X+dx)) > 1e-6 || math.Abs(y-(s.Y+dy)) > 1e-6 {
				t.Errorf("%s: reprojection off at (%g,%g)", order, s.X, s.Y)
			}
		}
	}
}

func TestSolveTransRotationScale(t *testing.T) {
	const deg, scale = 30.0, 1.25
	a := syntheticField(12, 23, 1000, 1000)
	b := rotateStars(a, deg, 0, 0, scale)
	pairs := truePairs(a, b)

	tr, err := SolveTrans(pairs, OrderLinear)
	if err != nil {
		t.Fatalf("SolveTrans: %v", err)
	}
	gotScale, gotRot := tr.ScaleRotation()
	if math.Abs(gotScale-scale) > 1e-6 {
		t.Errorf("scale = %g, want %g", gotScale, scale)
	}
	if math.Abs(gotRot-deg) > 1e-6 {
		t.Errorf("rotation = %g, want %g", gotRot, deg)
	}
}

func TestSolveTransTooFewPairs(t *testing.T) {
	a := syntheticField(2, 2, 100, 100)
	pairs := truePairs(a, a)
	_, err := SolveTrans(pairs, OrderLinear)
	if !errors.Is(err, ErrInsufficientStars) {
		t.Fatalf("expected ErrInsufficientStars, got %v", err)
	}
}

func TestSolveTransSingular(t *testing.T) {
	// Collinear points cannot constrain a linear transform.
	pairs := []Pair{
		{AX: 0, AY: 0, BX: 0, BY: 0},
		{AX: 1, AY: 1, BX: 1, BY: 1},
		{AX: 2, AY: 2, BX: 2, BY: 2},
		{AX: 3, AY: 3, BX: 3, BY: 3},
	}
	_, err := SolveTrans(pairs, OrderLinear)
	if !errors.Is(err, ErrSingularSystem) {
		t.Fatalf("expected ErrSingularSystem, got %v", err)
	}
}

// A cubic fit over a radially distorted field should reproject far better
// than a linear one.
func TestSolveTransCubicRadial(t *testing.T) {
	a := syntheticField(40, 31, 1000, 1000)
	b := make([]Star, len(a))
	copy(b, a)
	for i := range b {
		r := b[i].X*b[i].X + b[i].Y*b[i].Y
		b[i].X += 1e-8 * b[i].X * r
		b[i].Y += 1e-8 * b[i].Y * r
	}
	pairs := truePairs(a, b)

	lin, err := SolveTrans(pairs, OrderLinear)
	if err != nil {
		t.Fatal(err)
	}
	cub, err := SolveTrans(pairs, OrderCubic)
	if err != nil {
		t.Fatal(err)
	}
	if rms(cub, pairs) >= rms(lin, pairs) {
		t.Errorf("cubic rms %g not better than linear %g", rms(cub, pairs), rms(lin, pairs))
	}
	if rms(cub, pairs) > 1e-3 {
		t.Errorf("cubic rms %g too large for exact radial field", rms(cub, pairs))
	}
}

func rms(tr *Trans, pairs []Pair) float64 {
	var sum float64
	for _, p := range pairs {
		x, y := tr.Apply(p.AX, p.AY)
		sum += (x-p.BX)*(x-p.BX) + (y-p.BY)*(y-p.BY)
	}
	return math.Sqrt(sum / float64(len(pairs)))
}

func relDiff(got, want float64) float64 {
	d := math.Abs(got - want)
	if m := math.Abs(want); m > 1 {
		return d / m
	}
	return d
}
