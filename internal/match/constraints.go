package match

import (
	"fmt"
	"math"
)

// ScaleRange bounds the acceptable scale factor of a fitted A-to-B
// transform (B-side length per A-side length).
type ScaleRange struct {
	Min float64
	Max float64
}

// Contains reports whether ratio falls inside the range.
func (s ScaleRange) Contains(ratio float64) bool {
	return ratio >= s.Min && ratio <= s.Max
}

// Relaxed returns the range widened by factor on both ends, used on the
// first registration attempt when the true scale is only roughly known.
func (s ScaleRange) Relaxed(factor float64) ScaleRange {
	if factor <= 1 {
		return s
	}
	return ScaleRange{Min: s.Min / factor, Max: s.Max * factor}
}

// RotationConstraint bounds the acceptable rotation between two frames.
// Angle and Tol are degrees.
type RotationConstraint struct {
	Angle float64
	Tol   float64
}

// Accepts reports whether the measured angular difference (degrees)
// satisfies the constraint. Angles live on a circle, so the raw difference
// and both ±360° wrapped forms are tested: −179° and +181° are the same
// rotation and must both pass a 180°±5° constraint.
func (r RotationConstraint) Accepts(diffDeg float64) bool {
	lo, hi := r.Angle-r.Tol, r.Angle+r.Tol
	for _, d := range [3]float64{diffDeg, diffDeg + 360, diffDeg - 360} {
		if d >= lo && d <= hi {
			return true
		}
	}
	return false
}

// CheckConstraints verifies a solved transform's measured scale and
// rotation against optional caller bounds. A transform outside either
// bound is rejected with ErrConstraintViolation even when its residual
// statistics would otherwise qualify as a good match.
func CheckConstraints(t *Trans, scale *ScaleRange, rot *RotationConstraint) error {
	s, r := t.ScaleRotation()
	if scale != nil && !scale.Contains(s) {
		return fmt.Errorf("measured scale %.4f outside [%.4f, %.4f]: %w",
			s, scale.Min, scale.Max, ErrConstraintViolation)
	}
	if rot != nil && !rot.Accepts(r) {
		return fmt.Errorf("measured rotation %.2f° outside %.2f°±%.2f°: %w",
			r, rot.Angle, rot.Tol, ErrConstraintViolation)
	}
	return nil
}

func radToDeg(r float64) float64 { return r * 180 / math.Pi }
