// Package register drives star-based registration of an image sequence
// against a reference frame.
//
// The reference frame's star list is converted into triangle indices once;
// every other frame is then matched against it through internal/match,
// with a bounded number of progressively relaxed attempts per frame.
// Frames are independent, so the per-frame loop fans out across a worker
// pool; each worker writes into its own pre-allocated result slot. A frame
// that never reaches the required pair count is logged and excluded, never
// fatal to the sequence. Each aligned frame receives a residual-derived
// quality score and the best-quality frame is tracked as a byproduct.
package register
