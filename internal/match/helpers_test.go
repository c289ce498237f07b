package match

import (
	"math"
	"math/rand"
)

// syntheticField generates n stars uniformly across a w x h frame with
// magnitudes increasing with index, brightest first. The same seed always
// yields the same field.
func syntheticField(n int, seed int64, w, h float64) []Star {
	rng := rand.New(rand.NewSource(seed))
	stars := make([]Star, n)
	for i := range stars {
		stars[i] = NewStar(i, rng.Float64()*w, rng.Float64()*h, 1.0+float64(i)*0.1)
	}
	return stars
}

// translateStars returns a copy of the field shifted by (dx, dy).
func translateStars(stars []Star, dx, dy float64) []Star {
	out := make([]Star, len(stars))
	copy(out, stars)
	for i := range out {
		out[i].X += dx
		out[i].Y += dy
		out[i].MatchID = UnmatchedID
	}
	return out
}

// rotateStars returns a copy of the field rotated by deg degrees about
// (cx, cy), optionally scaled by s.
func rotateStars(stars []Star, deg, cx, cy, s float64) []Star {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	out := make([]Star, len(stars))
	copy(out, stars)
	for i := range out {
		x := out[i].X - cx
		y := out[i].Y - cy
		out[i].X = cx + s*(x*cos-y*sin)
		out[i].Y = cy + s*(x*sin+y*cos)
		out[i].MatchID = UnmatchedID
	}
	return out
}

// noisyStars returns a copy of the field with gaussian positional noise of
// the given standard deviation added to every star.
func noisyStars(stars []Star, sigma float64, seed int64) []Star {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Star, len(stars))
	copy(out, stars)
	for i := range out {
		out[i].X += rng.NormFloat64() * sigma
		out[i].Y += rng.NormFloat64() * sigma
	}
	return out
}

// truePairs builds the identity correspondence set between two equally
// sized fields: star i of a paired with star i of b.
func truePairs(a, b []Star) []Pair {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pair{AX: a[i].X, AY: a[i].Y, BX: b[i].X, BY: b[i].Y}
	}
	return pairs
}

// injectOutliers appends m false correspondences with uniformly random
// endpoints across a w x h frame.
func injectOutliers(pairs []Pair, m int, seed int64, w, h float64) []Pair {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Pair, len(pairs), len(pairs)+m)
	copy(out, pairs)
	for i := 0; i < m; i++ {
		out = append(out, Pair{
			AX: rng.Float64() * w, AY: rng.Float64() * h,
			BX: rng.Float64() * w, BY: rng.Float64() * h,
		})
	}
	return out
}
