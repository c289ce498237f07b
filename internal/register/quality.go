package register

// QualityScore derives a frame's alignment quality from the transform's
// inlier ratio and the detection stage's point sharpness statistics.
// Sharp (small FWHM), round stars that mostly found counterparts score
// highest; the score is only meaningful relative to other frames of the
// same sequence.
func QualityScore(inliers, total int, fwhm, roundness float64) float64 {
	if total <= 0 || fwhm <= 0 {
		return 0
	}
	ratio := float64(inliers) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	if roundness < 0 {
		roundness = 0
	}
	if roundness > 1 {
		roundness = 1
	}
	return ratio * roundness / fwhm
}
