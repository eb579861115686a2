package stats

import (
	"testing"
	"time"
)

func TestReadingWPM(t *testing.T) {
	if got := ReadingWPM(300, time.Minute); got != 300 {
		t.Fatalf("ReadingWPM(300, 1m) = %v", got)
	}
	if got := ReadingWPM(150, 30*time.Second); got != 300 {
		t.Fatalf("ReadingWPM(150, 30s) = %v", got)
	}
	if got := ReadingWPM(100, 0); got != 0 {
		t.Fatalf("zero duration should yield 0, got %v", got)
	}
	if got := ReadingWPM(0, time.Minute); got != 0 {
		t.Fatalf("zero words should yield 0, got %v", got)
	}
}

func TestMeanEmptySet(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Fatalf("Mean(nil) = %v", got)
	}
	if got := Mean([]float64{2, 4}); got != 3 {
		t.Fatalf("Mean(2,4) = %v", got)
	}
}

func TestTrendDelta(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		want   int
	}{
		{"empty", nil, 0},
		{"single value has empty first half", []float64{200}, 0},
		{"improvement", []float64{100, 100, 150, 150}, 50},
		{"decline", []float64{200, 200, 100, 100}, -50},
		{"odd split floors", []float64{100, 100, 100, 120, 120}, 13},
		{"zero first-half mean never divides", []float64{0, 0, 250, 250}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TrendDelta(tc.values); got != tc.want {
				t.Fatalf("TrendDelta(%v) = %d, want %d", tc.values, got, tc.want)
			}
		})
	}
}

func TestMovingAverage(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	got := MovingAverage(values, 2)
	want := []float64{1, 1.5, 2.5, 3.5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MovingAverage = %v, want %v", got, want)
		}
	}

	// Window of 1 copies the input.
	copied := MovingAverage(values, 1)
	for i := range values {
		if copied[i] != values[i] {
			t.Fatalf("window of 1 should copy, got %v", copied)
		}
	}
}
