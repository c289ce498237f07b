package match

import "math"

// Triangle is a scale/rotation/translation-invariant fingerprint of three
// stars. Vertices are labelled so that P is shared by the two longest
// sides: side a (the longest) runs P->Q, side b (second longest) runs
// P->R, and side c (the shortest) connects Q and R.
type Triangle struct {
	P, Q, R int // indices into the owning star list

	// Side-length ratios, each in [0,1] for a non-degenerate triangle:
	// BA = b/a, CA = c/a, CB = c/b.
	BA, CA, CB float64

	ALength    float64 // length of the longest side
	SideAAngle float64 // orientation of side a (P->Q), radians

	// Similarity keys used by the sorted indices. XT is the dot product of
	// the two longest side vectors, YT = 1/CA, and D = XT*YT. Large-D
	// triangles are big and elongated, hence rare and distinctive.
	XT, YT, D float64
}

// makeTriangle builds the fingerprint for stars i, j, k. Side lengths come
// from the caller's precomputed distance matrix. Ties between equal-length
// sides break deterministically: the first side encountered in index order
// (i-j, i-k, j-k) wins the longer label.
func makeTriangle(stars []Star, i, j, k int, distAt func(a, b int) float64) Triangle {
	type side struct {
		u, v int
		len  float64
	}
	sides := [3]side{
		{i, j, distAt(i, j)},
		{i, k, distAt(i, k)},
		{j, k, distAt(j, k)},
	}

	// Pick the longest side first, then the longer of the remaining two.
	// Strict comparisons keep the earliest side on ties.
	ai := 0
	if sides[1].len > sides[ai].len {
		ai = 1
	}
	if sides[2].len > sides[ai].len {
		ai = 2
	}
	bi, ci := -1, -1
	for s := 0; s < 3; s++ {
		if s == ai {
			continue
		}
		if bi == -1 {
			bi = s
		} else if sides[s].len > sides[bi].len {
			ci = bi
			bi = s
		} else {
			ci = s
		}
	}

	a, b, c := sides[ai], sides[bi], sides[ci]

	// P is the vertex shared by sides a and b.
	var p, q, r int
	switch {
	case a.u == b.u || a.u == b.v:
		p, q = a.u, a.v
	default:
		p, q = a.v, a.u
	}
	if b.u == p {
		r = b.v
	} else {
		r = b.u
	}

	t := Triangle{P: p, Q: q, R: r, ALength: a.len}
	t.SideAAngle = math.Atan2(stars[q].Y-stars[p].Y, stars[q].X-stars[p].X)

	if a.len == 0 {
		// Degenerate: all three stars coincide. The sentinel ratios keep
		// downstream sorts and searches well defined.
		t.BA, t.CA, t.CB = 1.0, 1.0, 1.0
		return t
	}

	t.BA = b.len / a.len
	t.CA = c.len / a.len
	if b.len > 0 {
		t.CB = c.len / b.len
	} else {
		t.CB = 1.0
	}

	// Similarity keys from the two longest side vectors out of P.
	t.XT = (stars[q].X-stars[p].X)*(stars[r].X-stars[p].X) +
		(stars[q].Y-stars[p].Y)*(stars[r].Y-stars[p].Y)
	if t.CA > 0 {
		t.YT = 1.0 / t.CA
	}
	t.D = t.XT * t.YT
	return t
}
