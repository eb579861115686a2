// Package stats contains statistics calculations and reporting.
package stats

import (
	"math"
	"time"
)

// ReadingWPM computes words per minute for a completed reading.
func ReadingWPM(wordCount int, duration time.Duration) float64 {
	if duration <= 0 || wordCount <= 0 {
		return 0
	}
	minutes := duration.Minutes()
	if minutes <= 0 {
		return 0
	}
	return float64(wordCount) / minutes
}

// Mean returns the arithmetic mean, 0 for an empty set.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// TrendDelta splits the values into a first and second half (integer floor
// split), and reports the second half's mean relative to the first as a
// rounded percentage. An empty or zero-mean first half yields 0.
func TrendDelta(values []float64) int {
	half := len(values) / 2
	first := values[:half]
	second := values[half:]
	firstMean := Mean(first)
	if len(first) == 0 || firstMean == 0 {
		return 0
	}
	secondMean := Mean(second)
	return int(math.Round((secondMean - firstMean) / firstMean * 100))
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}
