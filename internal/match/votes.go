package match

import (
	"fmt"
	"sort"
)

// minCellVotes is the noise floor for vote extraction: a correspondence
// implied by only a single matched triangle pair carries no signal.
const minCellVotes = 2

// VoteMatrix counts, for each (star-in-A, star-in-B) pair, how many matched
// triangle pairs imply that correspondence. Built fresh per matching
// attempt and discarded after top-vote extraction.
type VoteMatrix struct {
	RowsA int // nbright of the A-side set
	ColsB int // nbright of the B-side set
	cells []int
}

// NewVoteMatrix allocates a zeroed rowsA x colsB vote grid.
func NewVoteMatrix(rowsA, colsB int) *VoteMatrix {
	return &VoteMatrix{RowsA: rowsA, ColsB: colsB, cells: make([]int, rowsA*colsB)}
}

// At returns the vote count for the (a, b) correspondence.
func (v *VoteMatrix) At(a, b int) int { return v.cells[a*v.ColsB+b] }

func (v *VoteMatrix) incr(a, b int) { v.cells[a*v.ColsB+b]++ }

// PairSet is a vote-ranked candidate correspondence set: parallel arrays of
// A-side and B-side star indices with their vote counts, best first. The
// same star index may appear in more than one entry; bijectivity is only
// approximately restored by the refiner's distance-based pruning.
type PairSet struct {
	AIdx  []int
	BIdx  []int
	Votes []int
}

// Len returns the number of candidate pairs.
func (p *PairSet) Len() int { return len(p.AIdx) }

// MatchTriangles compares two triangle sets within a tolerance window in
// similarity-key space and accumulates a vote matrix over the implied
// star-to-star correspondences.
//
// For every triangle of b, a binary search over a's BA-sorted index bounds
// the candidates whose BA ratio lies within maxRadius; a candidate is then
// accepted only if the Euclidean distance in (BA, CA) space is within
// maxRadius and it passes the optional scale and rotation gates. Each
// accepted triangle pair casts one vote for each of its three vertex
// correspondences (P↔P, Q↔Q, R↔R by the longest/second/shortest labelling).
//
// The scale gate bounds the b-over-a side-length ratio, matching the scale
// of the a-to-b transform that a later fit would produce; configure the
// range in that direction.
func MatchTriangles(a, b *TriangleSet, maxRadius float64, scale *ScaleRange, rot *RotationConstraint) (*VoteMatrix, error) {
	if len(a.Tris) == 0 || len(b.Tris) == 0 {
		return nil, fmt.Errorf("empty triangle set (%d vs %d triangles): %w",
			len(a.Tris), len(b.Tris), ErrNoTriangleMatch)
	}

	votes := NewVoteMatrix(a.NBright, b.NBright)
	r2 := maxRadius * maxRadius

	for _, bi := range b.ByBA {
		tb := &b.Tris[bi]
		lo := sort.Search(len(a.ByBA), func(x int) bool {
			return a.Tris[a.ByBA[x]].BA >= tb.BA-maxRadius
		})
		for x := lo; x < len(a.ByBA); x++ {
			ta := &a.Tris[a.ByBA[x]]
			if ta.BA > tb.BA+maxRadius {
				break
			}
			dba := ta.BA - tb.BA
			dca := ta.CA - tb.CA
			if dba*dba+dca*dca > r2 {
				continue
			}
			// Gate on the implied a->b transform: its scale is the b/a
			// side ratio and its rotation the b-a angle difference.
			if scale != nil {
				if ta.ALength == 0 || !scale.Contains(tb.ALength/ta.ALength) {
					continue
				}
			}
			if rot != nil && !rot.Accepts(radToDeg(tb.SideAAngle-ta.SideAAngle)) {
				continue
			}
			votes.incr(ta.P, tb.P)
			votes.incr(ta.Q, tb.Q)
			votes.incr(ta.R, tb.R)
		}
	}
	return votes, nil
}

// Top extracts the limit highest-voted cells as a vote-ranked PairSet,
// discarding cells below the minimum vote threshold as noise. Ties keep
// row-major cell order so extraction is deterministic.
func (v *VoteMatrix) Top(limit int) *PairSet {
	if limit <= 0 {
		return &PairSet{}
	}
	p := &PairSet{
		AIdx:  make([]int, 0, limit),
		BIdx:  make([]int, 0, limit),
		Votes: make([]int, 0, limit),
	}
	for a := 0; a < v.RowsA; a++ {
		for b := 0; b < v.ColsB; b++ {
			n := v.At(a, b)
			if n < minCellVotes {
				continue
			}
			// Insertion sort into the parallel arrays, best first.
			pos := len(p.Votes)
			for pos > 0 && n > p.Votes[pos-1] {
				pos--
			}
			if pos >= limit {
				continue
			}
			p.Votes = insertInt(p.Votes, pos, n, limit)
			p.AIdx = insertInt(p.AIdx, pos, a, limit)
			p.BIdx = insertInt(p.BIdx, pos, b, limit)
		}
	}
	return p
}

// insertInt inserts val at pos, capping the slice length at limit.
func insertInt(s []int, pos, val, limit int) []int {
	if len(s) < limit {
		s = append(s, 0)
	}
	copy(s[pos+1:], s[pos:])
	s[pos] = val
	return s
}
