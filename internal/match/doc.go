// Package match implements star-correspondence search and coordinate
// transform estimation between two detected-star lists of the same field.
//
// The pipeline is: build similarity triangles from the brightest stars of
// each list (BuildTriangles), accumulate correspondence votes by comparing
// triangle shapes (MatchTriangles + VoteMatrix.Top), then fit a polynomial
// transform by least squares with iterative outlier rejection (Refine).
// QuickMatch is an alternative consensus search that tries candidate
// triangle pairs best-first and exits on the first transform that explains
// enough of the field.
//
// All operations are deterministic: identical inputs and parameters produce
// bit-identical results. Nothing in this package performs I/O or holds
// shared mutable state, so distinct frame pairs can be matched concurrently.
package match
