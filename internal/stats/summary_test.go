package stats

import (
	"testing"
	"time"

	"github.com/verte-zerg/tuiread/internal/model"
)

func sessionAt(id, topic string, createdAt time.Time, wpm, score int) model.Session {
	return model.Session{
		ID:        id,
		Topic:     topic,
		CreatedAt: createdAt,
		Stats: &model.SessionStats{
			WPM:         wpm,
			Score:       score,
			TotalTimeMs: 60000,
		},
	}
}

func TestSummarizeFiltersWindowAndStats(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	sessions := []model.Session{
		sessionAt("in-1", "A", now.Add(-24*time.Hour), 200, 70),
		sessionAt("in-2", "A", now.Add(-48*time.Hour), 300, 90),
		sessionAt("too-old", "B", now.Add(-40*24*time.Hour), 500, 100),
		{ID: "no-stats", Topic: "B", CreatedAt: now.Add(-time.Hour)},
	}

	sum := Summarize(sessions, 30, now)
	if sum.TotalSessions != 2 {
		t.Fatalf("TotalSessions = %d, want 2", sum.TotalSessions)
	}
	if sum.AvgWPM != 250 || sum.AvgScore != 80 {
		t.Fatalf("averages wrong: %+v", sum)
	}
	if sum.TotalTimeSeconds != 120 {
		t.Fatalf("TotalTimeSeconds = %d, want 120", sum.TotalTimeSeconds)
	}
}

func TestSummarizeEmptySetIsZero(t *testing.T) {
	sum := Summarize(nil, 30, time.Now())
	if sum.AvgWPM != 0 || sum.AvgScore != 0 || sum.WPMDelta != 0 || sum.TotalSessions != 0 {
		t.Fatalf("empty summary not zero: %+v", sum)
	}
}

func TestSummarizeSeriesAscendingAndCapped(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	var sessions []model.Session
	for i := 0; i < 25; i++ {
		// Insert newest first to prove Summarize sorts ascending.
		created := now.Add(-time.Duration(i) * time.Hour)
		sessions = append(sessions, sessionAt("s", "A", created, 200+i, 70))
	}

	sum := Summarize(sessions, 30, now)
	if len(sum.WPMSeries) != 20 {
		t.Fatalf("series length = %d, want 20", len(sum.WPMSeries))
	}
	// Ascending time order means descending offset, so values decrease.
	for i := 1; i < len(sum.WPMSeries); i++ {
		if sum.WPMSeries[i].Value >= sum.WPMSeries[i-1].Value {
			t.Fatalf("series not in ascending time order: %+v", sum.WPMSeries)
		}
	}
	// The cap keeps the most recent sessions: the last point is the newest.
	if sum.WPMSeries[len(sum.WPMSeries)-1].Value != 200 {
		t.Fatalf("series did not keep the most recent sessions: %+v", sum.WPMSeries)
	}
}

func TestTopicHistogramOrdering(t *testing.T) {
	now := time.Now()
	var sessions []model.Session
	for _, topic := range []string{"A", "B", "A", "C", "A", "B"} {
		sessions = append(sessions, sessionAt("s", topic, now, 200, 70))
	}

	topics := TopicHistogram(sessions)
	want := []model.TopicCount{{Topic: "A", Count: 3}, {Topic: "B", Count: 2}, {Topic: "C", Count: 1}}
	if len(topics) != len(want) {
		t.Fatalf("histogram length = %d, want %d", len(topics), len(want))
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Fatalf("histogram = %+v, want %+v", topics, want)
		}
	}
}

func TestTopicHistogramDefaultsAndTruncates(t *testing.T) {
	now := time.Now()
	var sessions []model.Session
	sessions = append(sessions, sessionAt("s", "", now, 200, 70))
	sessions = append(sessions, sessionAt("s", "", now, 200, 70))
	for _, topic := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"} {
		sessions = append(sessions, sessionAt("s", topic, now, 200, 70))
	}

	topics := TopicHistogram(sessions)
	if len(topics) != 8 {
		t.Fatalf("histogram not truncated to 8, got %d", len(topics))
	}
	if topics[0].Topic != "Uncategorized" || topics[0].Count != 2 {
		t.Fatalf("blank topics not bucketed: %+v", topics[0])
	}
}
