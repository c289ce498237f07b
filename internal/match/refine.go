package match

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// robustPercentile is the fraction of sorted squared residuals taken as the
// robust sigma estimate (one gaussian standard deviation's worth).
const robustPercentile = 0.683

// sigmaPruneFactor scales the robust sigma into the per-iteration outlier
// cut applied to squared residuals.
const sigmaPruneFactor = 10.0

// RefineParams tunes the iterative fit/prune loop.
type RefineParams struct {
	Order TransOrder

	// MaxIterations bounds the number of solve/prune rounds.
	MaxIterations int

	// HaltSigma stops iterating once the robust residual estimate drops to
	// this value (same units as the B-space coordinates).
	HaltSigma float64

	// MaxDist is a hard sanity ceiling: a pair whose reprojection lands
	// farther than this from its claimed counterpart is discarded on every
	// iteration regardless of the residual distribution.
	MaxDist float64
}

// DefaultRefineParams returns the refiner defaults for an order.
func DefaultRefineParams(order TransOrder) RefineParams {
	return RefineParams{
		Order:         order,
		MaxIterations: 3,
		HaltSigma:     1.0,
		MaxDist:       50.0,
	}
}

// Refine alternates between fitting a transform to the current pair set and
// discarding statistical outliers until the fit stabilises. pairs must be
// vote-ranked best-first; the initial fit uses only the best StartPairs of
// them, after which every surviving pair participates.
//
// The outlier cut adapts to the data: the 68.3rd percentile of the sorted
// squared residuals serves as a robust sigma estimate, and pairs beyond
// 10x that value are dropped each round. This makes no assumption about
// the noise model or the fraction of true matches among the candidates.
//
// Returns the final transform and the surviving pairs. Fails with
// ErrInsufficientPairs when pruning leaves fewer than the order's required
// minimum.
func Refine(pairs []Pair, p RefineParams) (*Trans, []Pair, error) {
	required := p.Order.RequiredPairs()
	if len(pairs) < required {
		return nil, nil, fmt.Errorf("refine %s with %d pairs: %w",
			p.Order, len(pairs), ErrInsufficientStars)
	}

	set := make([]Pair, len(pairs))
	copy(set, pairs)

	seed := p.Order.StartPairs()
	if seed > len(set) {
		seed = len(set)
	}
	trans, err := SolveTrans(set[:seed], p.Order)
	if err != nil {
		return nil, nil, err
	}

	maxDistSq := p.MaxDist * p.MaxDist
	haltSq := p.HaltSigma * p.HaltSigma

	for iter := 0; iter < p.MaxIterations; iter++ {
		resid := residualsSq(trans, set)

		// Hard ceiling first: wildly wrong pairs never vote on sigma.
		set, resid = pruneAbove(set, resid, maxDistSq)
		if len(set) < required {
			return nil, nil, fmt.Errorf("%d pairs after max-distance cut, need %d: %w",
				len(set), required, ErrInsufficientPairs)
		}

		sigmaSq := robustSigmaSq(resid)

		if sigmaSq <= haltSq {
			break
		}

		before := len(set)
		set, resid = pruneAbove(set, resid, sigmaPruneFactor*sigmaSq)
		if len(set) == before {
			break
		}
		if len(set) < required {
			return nil, nil, fmt.Errorf("%d pairs after sigma pruning, need %d: %w",
				len(set), required, ErrInsufficientPairs)
		}

		trans, err = SolveTrans(set, p.Order)
		if err != nil {
			return nil, nil, err
		}
	}

	finishStats(trans, set)
	return trans, set, nil
}

// robustSigmaSq computes the percentile-based robust sigma estimate, in
// squared-distance units, from a slice of squared residuals.
func robustSigmaSq(resid []float64) float64 {
	sorted := make([]float64, len(resid))
	copy(sorted, resid)
	sort.Float64s(sorted)
	return stat.Quantile(robustPercentile, stat.Empirical, sorted, nil)
}

// residualsSq returns the squared B-space distance between each pair's
// transformed A-side point and its claimed B-side point.
func residualsSq(t *Trans, set []Pair) []float64 {
	out := make([]float64, len(set))
	for i, pr := range set {
		tx, ty := t.Apply(pr.AX, pr.AY)
		out[i] = distSq(tx, ty, pr.BX, pr.BY)
	}
	return out
}

// pruneAbove removes pairs whose squared residual exceeds limit, keeping
// the two slices parallel and preserving order.
func pruneAbove(set []Pair, resid []float64, limit float64) ([]Pair, []float64) {
	keepSet := set[:0]
	keepRes := resid[:0]
	for i := range set {
		if resid[i] <= limit {
			keepSet = append(keepSet, set[i])
			keepRes = append(keepRes, resid[i])
		}
	}
	return keepSet, keepRes
}

// finishStats fills the transform's residual bookkeeping from the final
// accepted pair set.
func finishStats(t *Trans, set []Pair) {
	t.Nm = len(set)
	t.Sig = math.Sqrt(robustSigmaSq(residualsSq(t, set)))

	dx := make([]float64, len(set))
	dy := make([]float64, len(set))
	for i, pr := range set {
		tx, ty := t.Apply(pr.AX, pr.AY)
		dx[i] = tx - pr.BX
		dy[i] = ty - pr.BY
	}
	if len(set) > 1 {
		t.Sx = stat.StdDev(dx, nil)
		t.Sy = stat.StdDev(dy, nil)
	}
}
