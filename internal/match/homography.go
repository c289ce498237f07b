package match

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// homographyDetTol flags a solved projective matrix as numerically
// singular when its determinant magnitude falls below it.
const homographyDetTol = 1e-10

// Homography is a 3x3 projective transform, fitted when perspective
// effects matter beyond what the polynomial models express.
type Homography struct {
	// H holds h00..h22 row major, with h22 normalised to 1 by the solver.
	H [3][3]float64

	PairMatched int
	Inliers     int
}

// SolveHomography fits a projective transform mapping each pair's A-side
// point onto its B-side point, by least squares over the standard DLT
// system with h22 fixed to 1. At least four pairs are required; more are
// welcome and reduce the influence of noise.
func SolveHomography(pairs []Pair) (*Homography, error) {
	if len(pairs) < 4 {
		return nil, fmt.Errorf("homography needs 4 pairs, have %d: %w",
			len(pairs), ErrInsufficientStars)
	}

	// Two rows per pair for the eight unknowns h00..h21:
	//   x' = (h00·x + h01·y + h02) / (h20·x + h21·y + 1)
	//   y' = (h10·x + h11·y + h12) / (h20·x + h21·y + 1)
	a := mat.NewDense(2*len(pairs), 8, nil)
	b := mat.NewVecDense(2*len(pairs), nil)
	for i, p := range pairs {
		r := 2 * i
		a.SetRow(r, []float64{p.AX, p.AY, 1, 0, 0, 0, -p.AX * p.BX, -p.AY * p.BX})
		b.SetVec(r, p.BX)
		a.SetRow(r+1, []float64{0, 0, 0, p.AX, p.AY, 1, -p.AX * p.BY, -p.AY * p.BY})
		b.SetVec(r+1, p.BY)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("homography least squares: %w", ErrSingularSystem)
	}

	out := &Homography{PairMatched: len(pairs)}
	out.H = [3][3]float64{
		{h.AtVec(0), h.AtVec(1), h.AtVec(2)},
		{h.AtVec(3), h.AtVec(4), h.AtVec(5)},
		{h.AtVec(6), h.AtVec(7), 1},
	}
	if math.Abs(out.det()) < homographyDetTol {
		return nil, fmt.Errorf("homography determinant %.3e: %w", out.det(), ErrSingularSystem)
	}
	return out, nil
}

// HomographyFromTrans embeds a transform's linear part into a projective
// matrix, a convenient seed when a consumer requires the 3x3 form.
func HomographyFromTrans(t *Trans) *Homography {
	return &Homography{
		H: [3][3]float64{
			{t.XC[1], t.XC[2], t.XC[0]},
			{t.YC[1], t.YC[2], t.YC[0]},
			{0, 0, 1},
		},
		PairMatched: t.Nr,
		Inliers:     t.Nm,
	}
}

// Apply maps an A-space point through the projective transform. The second
// return is false when the point lies on the plane at infinity.
func (h *Homography) Apply(x, y float64) (float64, float64, bool) {
	w := h.H[2][0]*x + h.H[2][1]*y + h.H[2][2]
	if w == 0 {
		return 0, 0, false
	}
	tx := (h.H[0][0]*x + h.H[0][1]*y + h.H[0][2]) / w
	ty := (h.H[1][0]*x + h.H[1][1]*y + h.H[1][2]) / w
	return tx, ty, true
}

// CountInliers fills the Inliers count: pairs whose reprojection lands
// within radius of the claimed B-side point.
func (h *Homography) CountInliers(pairs []Pair, radius float64) int {
	r2 := radius * radius
	n := 0
	for _, p := range pairs {
		tx, ty, ok := h.Apply(p.AX, p.AY)
		if ok && distSq(tx, ty, p.BX, p.BY) <= r2 {
			n++
		}
	}
	h.Inliers = n
	return n
}

func (h *Homography) det() float64 {
	m := h.H
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}
