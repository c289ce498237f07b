package match

import "errors"

// Sentinel errors returned by the matching and fitting stages. Callers
// should test with errors.Is; wrapped variants carry call-site context.
var (
	// ErrInsufficientStars indicates fewer stars (or candidate pairs) than
	// the requested operation needs.
	ErrInsufficientStars = errors.New("insufficient stars")

	// ErrNoTriangleMatch indicates no triangle pair within tolerance was
	// found, or that a consensus search exhausted its candidates.
	ErrNoTriangleMatch = errors.New("no triangle match")

	// ErrSingularSystem indicates the normal-equations matrix was
	// numerically singular during a solve.
	ErrSingularSystem = errors.New("singular system")

	// ErrConstraintViolation indicates a solved transform's measured scale
	// or rotation falls outside caller-specified bounds.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInsufficientPairs indicates iterative refinement pruned the pair
	// set below the minimum required for the transform order.
	ErrInsufficientPairs = errors.New("insufficient pairs after pruning")
)
