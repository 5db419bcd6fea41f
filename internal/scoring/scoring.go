// Package scoring holds the pure band arithmetic for mock tests: the
// percentage-to-band conversion table, composite band combiners and the
// half-band rounding rule. Nothing here touches I/O.
package scoring

import "math"

// bandSteps is the fixed 13-step conversion table for objective sections.
// Thresholds are checked top-down; the first one the percentage meets wins.
var bandSteps = []struct {
	MinPercent float64
	Band       float64
}{
	{95, 9.0},
	{87.5, 8.5},
	{80, 8.0},
	{72.5, 7.5},
	{65, 7.0},
	{57.5, 6.5},
	{50, 6.0},
	{42.5, 5.5},
	{35, 5.0},
	{27.5, 4.5},
	{20, 4.0},
	{12.5, 3.5},
}

// BandForPercentage maps a percentage of correct answers onto a band score.
// Anything below the lowest threshold floors at 3.0.
func BandForPercentage(percent float64) float64 {
	for _, step := range bandSteps {
		if percent >= step.MinPercent {
			return step.Band
		}
	}
	return 3.0
}

// RoundHalf rounds to the nearest 0.5 band, halves rounding up
// (6.74 -> 6.5, 6.76 -> 7.0, 6.25 -> 6.5).
func RoundHalf(band float64) float64 {
	return math.Round(band*2) / 2
}

// CombineWritingBands produces the writing module band from the two task
// bands. Task 2 carries double weight. With only one task scored, that band
// stands alone; with neither, the module band is nil.
func CombineWritingBands(task1, task2 *float64) *float64 {
	switch {
	case task1 != nil && task2 != nil:
		combined := RoundHalf((*task1 + 2**task2) / 3)
		return &combined
	case task1 != nil:
		combined := RoundHalf(*task1)
		return &combined
	case task2 != nil:
		combined := RoundHalf(*task2)
		return &combined
	default:
		return nil
	}
}

// CombineSpeakingBands averages whichever speaking part bands are present.
func CombineSpeakingBands(parts []*float64) *float64 {
	return MeanBand(parts)
}

// MeanBand averages the non-nil bands and rounds to the nearest half band.
// It returns nil when no band is present.
func MeanBand(bands []*float64) *float64 {
	sum := 0.0
	n := 0
	for _, b := range bands {
		if b != nil {
			sum += *b
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := RoundHalf(sum / float64(n))
	return &mean
}

// OverallBand computes the final composite at test completion: the mean of
// whichever module bands are non-null at that instant. A module whose
// evaluation is still pending contributes nothing.
func OverallBand(listening, reading, writing, speaking *float64) *float64 {
	return MeanBand([]*float64{listening, reading, writing, speaking})
}
