package tempo

import (
	"math"
	"time"
)

// Sample is one buffered confidence reading for the snap class.
type Sample struct {
	At         time.Time
	Confidence float64
}

// ExtractOnsets walks samples in arrival order and returns the timestamp of
// every rising edge, i.e. every sample at or above threshold whose predecessor
// was below it. A sustained run of high samples yields a single onset.
func ExtractOnsets(samples []Sample, threshold float64) []time.Time {
	var onsets []time.Time
	above := false
	for _, s := range samples {
		crossed := s.Confidence >= threshold
		if crossed && !above {
			onsets = append(onsets, s.At)
		}
		above = crossed
	}
	return onsets
}

// Gaps returns the N-1 consecutive inter-onset intervals in seconds.
func Gaps(onsets []time.Time) []float64 {
	if len(onsets) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(onsets)-1)
	for i := 1; i < len(onsets); i++ {
		gaps = append(gaps, onsets[i].Sub(onsets[i-1]).Seconds())
	}
	return gaps
}

// MeanGap returns the arithmetic mean of the consecutive gaps in seconds,
// NaN with fewer than two onsets. The sum of consecutive gaps telescopes to
// last-first, so the mean is taken from the span in one division.
func MeanGap(onsets []time.Time) float64 {
	if len(onsets) < 2 {
		return math.NaN()
	}
	span := onsets[len(onsets)-1].Sub(onsets[0])
	return span.Seconds() / float64(len(onsets)-1)
}

// Consistent reports whether every gap lies within ±tolerance of mean.
func Consistent(gaps []float64, mean, tolerance float64) bool {
	low := mean * (1 - tolerance)
	high := mean * (1 + tolerance)
	for _, g := range gaps {
		if g < low || g > high {
			return false
		}
	}
	return true
}

// BPMFromGap converts a mean inter-onset gap to whole beats per minute.
// ok is false for a gap that cannot yield a positive, finite tempo.
func BPMFromGap(meanGapSeconds float64) (bpm int, ok bool) {
	if math.IsNaN(meanGapSeconds) || math.IsInf(meanGapSeconds, 0) || meanGapSeconds <= 0 {
		return 0, false
	}
	v := math.Floor(60 / meanGapSeconds)
	if math.IsInf(v, 0) || v < 1 || v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}
