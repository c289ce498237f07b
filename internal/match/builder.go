package match

import (
	"fmt"
	"sort"
)

// TriangleSet holds every triangle formed from the brightest stars of one
// list, plus index slices pre-sorted by the keys the search stages need.
// The set is immutable once built; concurrent readers are safe.
type TriangleSet struct {
	// Stars is the full star list the triangle vertex indices refer to.
	// Only the first NBright entries participate in triangles, but
	// QuickMatch reprojects the whole list.
	Stars   []Star
	NBright int

	Tris []Triangle

	// ByBA indexes Tris ascending by the BA ratio (vote matching windows).
	ByBA []int
	// ByD indexes Tris descending by the D key (consensus-search visit order).
	ByD []int
	// ByYT indexes Tris descending by the YT key (consensus-search windows).
	ByYT []int
}

// BuildTriangles enumerates all combinatorial triangles among the nbright
// brightest stars of the list and computes their similarity fingerprints.
// The list must already be sorted brightest-first (see SortByBrightness);
// nbright is clamped to the list length.
//
// The enumeration is O(nbright^3), which is why callers cap nbright at a
// few tens of stars rather than passing the full detection list.
func BuildTriangles(stars []Star, nbright int) (*TriangleSet, error) {
	if nbright > len(stars) {
		nbright = len(stars)
	}
	if nbright < 3 {
		return nil, fmt.Errorf("need at least 3 stars to form triangles, have %d: %w",
			nbright, ErrInsufficientStars)
	}

	// Pairwise distances among the participating stars, computed once.
	d := make([]float64, nbright*nbright)
	for i := 0; i < nbright; i++ {
		for j := i + 1; j < nbright; j++ {
			v := dist(stars[i].X, stars[i].Y, stars[j].X, stars[j].Y)
			d[i*nbright+j] = v
			d[j*nbright+i] = v
		}
	}
	distAt := func(a, b int) float64 { return d[a*nbright+b] }

	n := nbright * (nbright - 1) * (nbright - 2) / 6
	ts := &TriangleSet{
		Stars:   stars,
		NBright: nbright,
		Tris:    make([]Triangle, 0, n),
	}
	for i := 0; i < nbright; i++ {
		for j := i + 1; j < nbright; j++ {
			for k := j + 1; k < nbright; k++ {
				ts.Tris = append(ts.Tris, makeTriangle(stars, i, j, k, distAt))
			}
		}
	}

	ts.ByBA = sortedIndex(ts.Tris, func(a, b *Triangle) bool { return a.BA < b.BA })
	ts.ByD = sortedIndex(ts.Tris, func(a, b *Triangle) bool { return a.D > b.D })
	ts.ByYT = sortedIndex(ts.Tris, func(a, b *Triangle) bool { return a.YT > b.YT })
	return ts, nil
}

// sortedIndex returns triangle indices ordered by less, with the original
// enumeration order breaking ties so downstream binary searches see a
// stable, reproducible ordering.
func sortedIndex(tris []Triangle, less func(a, b *Triangle) bool) []int {
	idx := make([]int, len(tris))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool {
		return less(&tris[idx[x]], &tris[idx[y]])
	})
	return idx
}
