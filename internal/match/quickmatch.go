package match

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// quickRatioTol is the per-ratio acceptance gate for a candidate triangle
// pair in the consensus search.
const quickRatioTol = 0.02

// quickYTWindow is the relative half-width of the YT search window.
const quickYTWindow = 0.02

// QuickMatchParams tunes the consensus search.
type QuickMatchParams struct {
	// StarMatchRadius is the B-space distance within which a reprojected
	// A star counts as matching a B star.
	StarMatchRadius float64

	// Scale and Rotation gate the candidate triangle pairs. Scale bounds
	// the b-over-a side-length ratio, the same direction as the scale of
	// the fitted a-to-b transform.
	Scale    *ScaleRange
	Rotation *RotationConstraint

	// MinReqPairs and MaxSigma form the early-exit quality bar: the first
	// candidate transform matching at least MinReqPairs stars with residual
	// variance at most MaxSigma wins.
	MinReqPairs int
	MaxSigma    float64

	// MaxIterations bounds the refit rounds per candidate triangle pair.
	MaxIterations int
}

// DefaultQuickMatchParams returns the consensus-search defaults.
func DefaultQuickMatchParams() QuickMatchParams {
	return QuickMatchParams{
		StarMatchRadius: 5.0,
		MinReqPairs:     10,
		MaxSigma:        1.0,
		MaxIterations:   3,
	}
}

// MatchedPair records a star correspondence found by reprojection, with
// its B-space match distance.
type MatchedPair struct {
	AIndex int
	BIndex int
	Dist   float64
}

// QuickMatch searches for a transform from a's star space to b's by
// walking a's triangles in decreasing order of their D key: large,
// distinctive triangles are rare, so a shape agreement there carries high
// signal. Each candidate triangle pair seeds a minimal 3-point transform
// that is then tested against the whole star list and iteratively refined;
// the first transform to meet the quality bar is returned. This is an
// early-exit consensus search, not an exhaustive comparison, and is the
// entry path of choice when brute-force triangle voting would be too slow.
//
// A candidate that fails at any stage simply advances the search; only
// exhausting every candidate yields ErrNoTriangleMatch.
func QuickMatch(a, b *TriangleSet, p QuickMatchParams) (*Trans, []MatchedPair, error) {
	if len(a.Tris) == 0 || len(b.Tris) == 0 {
		return nil, nil, fmt.Errorf("empty triangle set (%d vs %d triangles): %w",
			len(a.Tris), len(b.Tris), ErrNoTriangleMatch)
	}

	bx := newXIndex(b.Stars)

	for _, ai := range a.ByD {
		ta := &a.Tris[ai]
		lo, hi := ytWindow(b, ta.YT)
		for w := lo; w < hi; w++ {
			tb := &b.Tris[b.ByYT[w]]
			if math.Abs(ta.BA-tb.BA) >= quickRatioTol ||
				math.Abs(ta.CA-tb.CA) >= quickRatioTol ||
				math.Abs(ta.CB-tb.CB) >= quickRatioTol {
				continue
			}
			// Gate on the implied a->b transform, matching the convention
			// CheckConstraints applies to the fitted result.
			if p.Scale != nil {
				if ta.ALength == 0 || !p.Scale.Contains(tb.ALength/ta.ALength) {
					continue
				}
			}
			if p.Rotation != nil && !p.Rotation.Accepts(radToDeg(tb.SideAAngle-ta.SideAAngle)) {
				continue
			}

			trans, matched, ok := testCandidate(a.Stars, b.Stars, ta, tb, bx, p)
			if ok {
				return trans, matched, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("consensus search exhausted %d triangles: %w",
		len(a.Tris), ErrNoTriangleMatch)
}

// ytWindow bounds the slice of b.ByYT (sorted descending) whose YT lies
// within the relative window of target, widened by one slot on each side
// so borderline triangles are not lost to the tolerance edge.
func ytWindow(b *TriangleSet, target float64) (lo, hi int) {
	span := quickYTWindow * math.Abs(target)
	upper := target + span
	lower := target - span
	lo = sort.Search(len(b.ByYT), func(x int) bool {
		return b.Tris[b.ByYT[x]].YT <= upper
	})
	hi = sort.Search(len(b.ByYT), func(x int) bool {
		return b.Tris[b.ByYT[x]].YT < lower
	})
	if lo > 0 {
		lo--
	}
	if hi < len(b.ByYT) {
		hi++
	}
	return lo, hi
}

// testCandidate fits the minimal transform implied by one triangle pair and
// grows it into a full-field consensus. Reports ok only when the refined
// transform meets the quality bar and the caller's constraints.
func testCandidate(aStars, bStars []Star, ta, tb *Triangle, bx *xIndex, p QuickMatchParams) (*Trans, []MatchedPair, bool) {
	seed := []Pair{
		{AX: aStars[ta.P].X, AY: aStars[ta.P].Y, BX: bStars[tb.P].X, BY: bStars[tb.P].Y},
		{AX: aStars[ta.Q].X, AY: aStars[ta.Q].Y, BX: bStars[tb.Q].X, BY: bStars[tb.Q].Y},
		{AX: aStars[ta.R].X, AY: aStars[ta.R].Y, BX: bStars[tb.R].X, BY: bStars[tb.R].Y},
	}
	trans, err := SolveTrans(seed, OrderLinear)
	if err != nil {
		return nil, nil, false
	}

	iters := p.MaxIterations
	if iters < 1 {
		iters = 1
	}
	var matched []MatchedPair
	for iter := 0; iter < iters; iter++ {
		matched = projectAndMatch(aStars, bStars, trans, bx, p.StarMatchRadius)
		if len(matched) < OrderLinear.RequiredPairs() {
			return nil, nil, false
		}

		mean, std := matchDistStats(matched)
		matched = pruneMatches(matched, mean+3*std)
		if len(matched) < OrderLinear.RequiredPairs() {
			return nil, nil, false
		}

		trans, err = SolveTrans(pairsOf(aStars, bStars, matched), OrderLinear)
		if err != nil {
			return nil, nil, false
		}

		variance := matchVariance(aStars, bStars, trans, matched)
		if len(matched) >= p.MinReqPairs && variance <= p.MaxSigma &&
			CheckConstraints(trans, p.Scale, p.Rotation) == nil {
			finishStats(trans, pairsOf(aStars, bStars, matched))
			return trans, matched, true
		}
	}
	return nil, nil, false
}

// CountMatches applies a fitted transform to every A star and pairs each
// with its nearest B star within radius, updating t.Nm with the match
// count. This is how "pairs matching after fit" is measured once a
// transform has been solved by any path.
func CountMatches(aStars, bStars []Star, t *Trans, radius float64) []MatchedPair {
	if len(bStars) == 0 {
		t.Nm = 0
		return nil
	}
	m := projectAndMatch(aStars, bStars, t, newXIndex(bStars), radius)
	t.Nm = len(m)
	return m
}

// projectAndMatch applies the transform to every A star and pairs it with
// its nearest B star within radius, found through the x-sorted index.
func projectAndMatch(aStars, bStars []Star, t *Trans, bx *xIndex, radius float64) []MatchedPair {
	out := make([]MatchedPair, 0, len(aStars))
	for i := range aStars {
		tx, ty := t.Apply(aStars[i].X, aStars[i].Y)
		j, d := bx.nearest(bStars, tx, ty, radius)
		if j >= 0 {
			out = append(out, MatchedPair{AIndex: i, BIndex: j, Dist: d})
		}
	}
	return out
}

func matchDistStats(m []MatchedPair) (mean, std float64) {
	d := make([]float64, len(m))
	for i := range m {
		d[i] = m[i].Dist
	}
	return stat.MeanStdDev(d, nil)
}

func pruneMatches(m []MatchedPair, limit float64) []MatchedPair {
	keep := m[:0]
	for _, mp := range m {
		if mp.Dist <= limit {
			keep = append(keep, mp)
		}
	}
	return keep
}

func pairsOf(aStars, bStars []Star, m []MatchedPair) []Pair {
	out := make([]Pair, len(m))
	for i, mp := range m {
		out[i] = Pair{
			AX: aStars[mp.AIndex].X, AY: aStars[mp.AIndex].Y,
			BX: bStars[mp.BIndex].X, BY: bStars[mp.BIndex].Y,
		}
	}
	return out
}

// matchVariance is the mean squared reprojection residual of the matched
// pairs under the transform.
func matchVariance(aStars, bStars []Star, t *Trans, m []MatchedPair) float64 {
	if len(m) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, mp := range m {
		tx, ty := t.Apply(aStars[mp.AIndex].X, aStars[mp.AIndex].Y)
		sum += distSq(tx, ty, bStars[mp.BIndex].X, bStars[mp.BIndex].Y)
	}
	return sum / float64(len(m))
}

// xIndex is an auxiliary index of star positions sorted by x, enabling a
// bounded-window nearest-neighbour search without a full scan.
type xIndex struct {
	order []int // star indices ascending by X, ties by index
}

func newXIndex(stars []Star) *xIndex {
	ix := &xIndex{order: make([]int, len(stars))}
	for i := range ix.order {
		ix.order[i] = i
	}
	sort.SliceStable(ix.order, func(a, b int) bool {
		return stars[ix.order[a]].X < stars[ix.order[b]].X
	})
	return ix
}

// nearest returns the index of the closest star to (x, y) within radius,
// or -1. Only stars whose x coordinate lies within radius of x are
// examined, expanding outward from the insertion point.
func (ix *xIndex) nearest(stars []Star, x, y, radius float64) (int, float64) {
	best, bestSq := -1, radius*radius
	start := sort.Search(len(ix.order), func(i int) bool {
		return stars[ix.order[i]].X >= x
	})
	for i := start; i < len(ix.order); i++ {
		s := &stars[ix.order[i]]
		if s.X-x > radius {
			break
		}
		if d := distSq(s.X, s.Y, x, y); d < bestSq || (d == bestSq && best == -1) {
			best, bestSq = ix.order[i], d
		}
	}
	for i := start - 1; i >= 0; i-- {
		s := &stars[ix.order[i]]
		if x-s.X > radius {
			break
		}
		if d := distSq(s.X, s.Y, x, y); d < bestSq || (d == bestSq && best == -1) {
			best, bestSq = ix.order[i], d
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, math.Sqrt(bestSq)
}
