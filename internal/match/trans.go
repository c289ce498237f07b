package match

import (
	"fmt"
	"math"
)

// TransOrder selects the polynomial model fitted between coordinate spaces.
type TransOrder int

const (
	// OrderLinear is an affine model: x' = a0 + a1·x + a2·y (6 coefficients).
	OrderLinear TransOrder = iota
	// OrderQuadratic adds the x², xy, y² terms (12 coefficients).
	OrderQuadratic
	// OrderCubic adds radial terms x·R and y·R with R = x²+y² (16 coefficients).
	OrderCubic
)

// maxTerms is the per-coordinate term count of the largest order.
const maxTerms = 8

func (o TransOrder) String() string {
	switch o {
	case OrderLinear:
		return "linear"
	case OrderQuadratic:
		return "quadratic"
	case OrderCubic:
		return "cubic"
	}
	return fmt.Sprintf("order(%d)", int(o))
}

// terms returns the number of basis terms per output coordinate.
func (o TransOrder) terms() int {
	switch o {
	case OrderQuadratic:
		return 6
	case OrderCubic:
		return 8
	default:
		return 3
	}
}

// Coeffs returns the total coefficient count of the model.
func (o TransOrder) Coeffs() int { return 2 * o.terms() }

// RequiredPairs is the minimum pair count that determines the model.
func (o TransOrder) RequiredPairs() int { return o.terms() }

// StartPairs is the pair count the refiner seeds its first fit with.
func (o TransOrder) StartPairs() int { return 2 * o.terms() }

// Trans is a fitted polynomial transform from A-space to B-space, plus the
// statistics of the fit it came from.
type Trans struct {
	Order TransOrder

	// XC and YC hold the coefficients producing the transformed x and y,
	// in basis order 1, x, y, x², xy, y², x·R, y·R. Entries beyond the
	// order's term count are zero.
	XC [maxTerms]float64
	YC [maxTerms]float64

	Nr  int     // pairs used in the fit
	Nm  int     // pairs still matching after the fit was applied
	Sig float64 // robust residual estimate of the accepted pair set
	Sx  float64 // per-axis residual standard deviation
	Sy  float64
}

// Pair is one candidate correspondence: a point in A-space and its claimed
// counterpart in B-space.
type Pair struct {
	AX, AY float64
	BX, BY float64
}

// basis fills dst with the polynomial basis terms of (x, y).
func basis(dst *[maxTerms]float64, x, y float64, n int) {
	dst[0] = 1
	dst[1] = x
	dst[2] = y
	if n > 3 {
		dst[3] = x * x
		dst[4] = x * y
		dst[5] = y * y
	}
	if n > 6 {
		r := x*x + y*y
		dst[6] = x * r
		dst[7] = y * r
	}
}

// Apply maps an A-space point into B-space.
func (t *Trans) Apply(x, y float64) (float64, float64) {
	n := t.Order.terms()
	var b [maxTerms]float64
	basis(&b, x, y, n)
	var tx, ty float64
	for i := 0; i < n; i++ {
		tx += t.XC[i] * b[i]
		ty += t.YC[i] * b[i]
	}
	return tx, ty
}

// ScaleRotation derives the transform's measured scale factor and rotation
// (degrees) from its linear part. Scale is the square root of the absolute
// Jacobian determinant; rotation is the orientation of the transformed
// x axis.
func (t *Trans) ScaleRotation() (scale, rotDeg float64) {
	det := t.XC[1]*t.YC[2] - t.XC[2]*t.YC[1]
	scale = math.Sqrt(math.Abs(det))
	rotDeg = radToDeg(math.Atan2(t.YC[1], t.XC[1]))
	return scale, rotDeg
}

// Shift returns the pure translation terms of the transform.
func (t *Trans) Shift() (dx, dy float64) { return t.XC[0], t.YC[0] }

// pivotTol is the relative tolerance below which a normalised pivot marks
// the normal-equations system as singular.
const pivotTol = 1e-12

// SolveTrans fits a transform of the given order to the candidate pairs by
// building one normal-equations system per output coordinate and solving
// both with Gaussian elimination. Accumulation and elimination are double
// precision throughout.
func SolveTrans(pairs []Pair, order TransOrder) (*Trans, error) {
	n := order.terms()
	if len(pairs) < order.RequiredPairs() {
		return nil, fmt.Errorf("%s fit needs %d pairs, have %d: %w",
			order, order.RequiredPairs(), len(pairs), ErrInsufficientStars)
	}

	// Normal equations M·c = v, built from sums over the pairs. The two
	// coordinates share M, so one elimination pass solves both right-hand
	// sides.
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	vx := make([]float64, n)
	vy := make([]float64, n)

	var b [maxTerms]float64
	for _, p := range pairs {
		basis(&b, p.AX, p.AY, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				m[i][j] += b[i] * b[j]
			}
			vx[i] += b[i] * p.BX
			vy[i] += b[i] * p.BY
		}
	}

	if err := gaussSolve(m, vx, vy); err != nil {
		return nil, err
	}

	t := &Trans{Order: order, Nr: len(pairs)}
	copy(t.XC[:n], vx)
	copy(t.YC[:n], vy)
	return t, nil
}

// gaussSolve performs in-place Gaussian elimination with partial pivoting
// on m, solving for both right-hand sides. Pivot rows are chosen by the
// candidate element normalised by the row's maximum absolute value, which
// keeps mixed-magnitude inputs from masquerading as well conditioned.
func gaussSolve(m [][]float64, rx, ry []float64) error {
	n := len(m)

	rowMax := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if a := math.Abs(m[i][j]); a > rowMax[i] {
				rowMax[i] = a
			}
		}
		if rowMax[i] == 0 {
			return fmt.Errorf("zero row %d in normal equations: %w", i, ErrSingularSystem)
		}
	}

	for col := 0; col < n; col++ {
		// Scaled partial pivot.
		best, bestVal := col, math.Abs(m[col][col])/rowMax[col]
		for r := col + 1; r < n; r++ {
			if v := math.Abs(m[r][col]) / rowMax[r]; v > bestVal {
				best, bestVal = r, v
			}
		}
		if bestVal < pivotTol {
			return fmt.Errorf("pivot %.3e below tolerance at column %d: %w",
				bestVal, col, ErrSingularSystem)
		}
		if best != col {
			m[col], m[best] = m[best], m[col]
			rx[col], rx[best] = rx[best], rx[col]
			ry[col], ry[best] = ry[best], ry[col]
			rowMax[col], rowMax[best] = rowMax[best], rowMax[col]
		}

		piv := m[col][col]
		for r := col + 1; r < n; r++ {
			f := m[r][col] / piv
			if f == 0 {
				continue
			}
			for c := col; c < n; c++ {
				m[r][c] -= f * m[col][c]
			}
			rx[r] -= f * rx[col]
			ry[r] -= f * ry[col]
		}
	}

	// Back substitution, both right-hand sides.
	for i := n - 1; i >= 0; i-- {
		sx, sy := rx[i], ry[i]
		for j := i + 1; j < n; j++ {
			sx -= m[i][j] * rx[j]
			sy -= m[i][j] * ry[j]
		}
		rx[i] = sx / m[i][i]
		ry[i] = sy / m[i][i]
	}
	return nil
}
