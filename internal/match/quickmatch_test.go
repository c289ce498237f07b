package match

import (
	"errors"
	"math"
	"testing"
)

func TestQuickMatchTranslatedField(t *testing.T) {
	const dx, dy = 33.0, -18.0
	ref := syntheticField(25, 201, 1500, 1500)
	frame := translateStars(ref, dx, dy)
	sa, sb := buildPairSets(t, frame, ref, 25)

	tr, matched, err := QuickMatch(sa, sb, DefaultQuickMatchParams())
	if err != nil {
		t.Fatalf("QuickMatch: %v", err)
	}
	// The transform maps frame coordinates onto the reference, so a frame
	// offset of (dx, dy) must come back as a shift of (-dx, -dy).
	gx, gy := tr.Shift()
	if math.Abs(gx+dx) > 0.1 || math.Abs(gy+dy) > 0.1 {
		t.Errorf("shift = (%g,%g), want (%g,%g)", gx, gy, -dx, -dy)
	}
	if len(matched) < 20 {
		t.Errorf("matched only %d of 25 stars", len(matched))
	}
	for _, m := range matched {
		if m.AIndex != m.BIndex {
			t.Errorf("false correspondence %d->%d", m.AIndex, m.BIndex)
		}
	}
}

func TestQuickMatchRotatedScaledField(t *testing.T) {
	ref := syntheticField(25, 203, 1500, 1500)
	frame := rotateStars(ref, -12, 750, 750, 0.97)
	sa, sb := buildPairSets(t, frame, ref, 25)

	tr, matched, err := QuickMatch(sa, sb, DefaultQuickMatchParams())
	if err != nil {
		t.Fatalf("QuickMatch: %v", err)
	}
	if len(matched) < 20 {
		t.Errorf("matched only %d of 25 stars", len(matched))
	}
	scale, rot := tr.ScaleRotation()
	// The fitted transform inverts the frame's distortion back onto the
	// reference, so the recovered rotation is +12 at scale ~1/0.97.
	if math.Abs(rot-12) > 0.5 {
		t.Errorf("rotation = %g, want near 12", rot)
	}
	if math.Abs(scale-1/0.97) > 0.01 {
		t.Errorf("scale = %g, want near %g", scale, 1/0.97)
	}
}

func TestQuickMatchNoOverlap(t *testing.T) {
	a := syntheticField(15, 205, 1000, 1000)
	b := syntheticField(15, 999, 1000, 1000)
	sa, sb := buildPairSets(t, a, b, 15)

	_, _, err := QuickMatch(sa, sb, DefaultQuickMatchParams())
	if !errors.Is(err, ErrNoTriangleMatch) {
		t.Fatalf("expected ErrNoTriangleMatch on unrelated fields, got %v", err)
	}
}

func TestQuickMatchHonoursConstraints(t *testing.T) {
	ref := syntheticField(20, 207, 1000, 1000)
	frame := rotateStars(ref, 45, 500, 500, 1.0)
	sa, sb := buildPairSets(t, frame, ref, 20)

	p := DefaultQuickMatchParams()
	p.Rotation = &RotationConstraint{Angle: 0, Tol: 5}
	if _, _, err := QuickMatch(sa, sb, p); !errors.Is(err, ErrNoTriangleMatch) {
		t.Fatalf("45 degree field should fail a 0±5 constraint, got %v", err)
	}

	p.Rotation = &RotationConstraint{Angle: -45, Tol: 5}
	if _, _, err := QuickMatch(sa, sb, p); err != nil {
		t.Fatalf("matching constraint still failed: %v", err)
	}
}

func TestCountMatches(t *testing.T) {
	ref := syntheticField(20, 209, 1000, 1000)
	frame := translateStars(ref, 7, 3)

	tr, err := SolveTrans(truePairs(frame, ref), OrderLinear)
	if err != nil {
		t.Fatal(err)
	}
	m := CountMatches(frame, ref, tr, 2.0)
	if len(m) != 20 {
		t.Errorf("CountMatches found %d of 20", len(m))
	}
	if tr.Nm != 20 {
		t.Errorf("Nm = %d, want 20", tr.Nm)
	}

	// An identity transform misprojects everything beyond the radius.
	ident := &Trans{Order: OrderLinear}
	ident.XC[1], ident.YC[2] = 1, 1
	if m := CountMatches(frame, ref, ident, 2.0); len(m) != 0 {
		t.Errorf("identity transform matched %d stars across a (7,3) shift", len(m))
	}
}
