package match

import (
	"math"
	"sort"
)

// Star is a detected point source in a single frame's planar coordinate
// space. Positions and magnitudes come from an external detection stage;
// this package never modifies them.
type Star struct {
	ID  int
	X   float64
	Y   float64
	Mag float64

	// MatchID is the index of the corresponding star in the other frame's
	// list, or -1 while unmatched. It is the only field written during
	// matching.
	MatchID int
}

// UnmatchedID is the MatchID value of a star with no correspondence.
const UnmatchedID = -1

// NewStar returns a Star with MatchID initialised to UnmatchedID.
func NewStar(id int, x, y, mag float64) Star {
	return Star{ID: id, X: x, Y: y, Mag: mag, MatchID: UnmatchedID}
}

// SortByBrightness sorts stars in place so the brightest (smallest
// magnitude) comes first. Ties break on ID so repeat runs stay stable.
func SortByBrightness(stars []Star) {
	sort.SliceStable(stars, func(i, j int) bool {
		if stars[i].Mag != stars[j].Mag {
			return stars[i].Mag < stars[j].Mag
		}
		return stars[i].ID < stars[j].ID
	})
}

// ResetMatches clears any correspondence assignments from a prior attempt.
func ResetMatches(stars []Star) {
	for i := range stars {
		stars[i].MatchID = UnmatchedID
	}
}

func dist(ax, ay, bx, by float64) float64 {
	dx := ax - bx
	dy := ay - by
	return math.Sqrt(dx*dx + dy*dy)
}

func distSq(ax, ay, bx, by float64) float64 {
	dx := ax - bx
	dy := ay - by
	return dx*dx + dy*dy
}
