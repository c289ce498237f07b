package register

import "github.com/corvus-data/staralign/internal/match"

// Frame is one image's externally detected star list plus the point
// sharpness statistics the detection stage measured for it.
type Frame struct {
	Index     int
	Stars     []match.Star
	FWHM      float64 // mean full width at half maximum of detected points
	Roundness float64 // mean roundness of detected points, 1 = circular
}

// Sequence is a reference frame and the frames to align against it.
type Sequence struct {
	Name   string
	Layer  int
	Ref    Frame
	Frames []Frame
}

// FrameResult is the per-frame registration outcome. Excluded frames carry
// the error that exhausted their attempts.
type FrameResult struct {
	Index    int
	Included bool
	Attempts int

	Trans        *match.Trans
	ShiftX       float64
	ShiftY       float64
	PairsMatched int

	FWHM      float64
	Roundness float64
	Quality   float64

	Err error
}

// SequenceResult aggregates a whole registration run.
type SequenceResult struct {
	Frames    []FrameResult
	Succeeded int
	Failed    int

	// BestFrame is the frame index with the highest quality score, or -1
	// when no frame aligned.
	BestFrame   int
	BestQuality float64
}
