package stats

import (
	"sort"
	"time"

	"github.com/verte-zerg/tuiread/internal/model"
)

const (
	// chartSeriesLimit caps chart series to the most recent sessions.
	chartSeriesLimit = 20
	// topicHistogramLimit caps the topic histogram buckets.
	topicHistogramLimit = 8
	// uncategorizedTopic labels sessions without a topic.
	uncategorizedTopic = "Uncategorized"
)

// dateLabel renders a created-at timestamp for chart axes.
func dateLabel(t time.Time) string {
	return t.Local().Format("02 Jan")
}

// Summary is the locally computed fallback for the remote aggregate feed.
type Summary struct {
	TotalSessions    int
	TotalTimeSeconds int64
	AvgWPM           float64
	AvgScore         float64
	WPMDelta         int
	ScoreDelta       int
	WPMSeries        []model.ChartPoint
	ScoreSeries      []model.ChartPoint
	Topics           []model.TopicCount
}

// Summarize computes a Summary from the given sessions, considering only
// sessions that carry stats and were created within the trailing day
// window. Sessions are expected to be pre-scoped to one user.
func Summarize(sessions []model.Session, days int, now time.Time) Summary {
	start := now.Add(-time.Duration(days) * 24 * time.Hour)
	filtered := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Stats == nil {
			continue
		}
		if s.CreatedAt.Before(start) || s.CreatedAt.After(now) {
			continue
		}
		filtered = append(filtered, s)
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	wpms := make([]float64, len(filtered))
	scores := make([]float64, len(filtered))
	var totalMs int64
	for i, s := range filtered {
		wpms[i] = float64(s.Stats.WPM)
		scores[i] = float64(s.Stats.Score)
		totalMs += s.Stats.TotalTimeMs
	}

	return Summary{
		TotalSessions:    len(filtered),
		TotalTimeSeconds: totalMs / 1000,
		AvgWPM:           Mean(wpms),
		AvgScore:         Mean(scores),
		WPMDelta:         TrendDelta(wpms),
		ScoreDelta:       TrendDelta(scores),
		WPMSeries:        chartSeries(filtered, func(s *model.SessionStats) float64 { return float64(s.WPM) }),
		ScoreSeries:      chartSeries(filtered, func(s *model.SessionStats) float64 { return float64(s.Score) }),
		Topics:           TopicHistogram(filtered),
	}
}

// chartSeries builds a labeled series over the last sessions in ascending
// time order. Input must already be sorted ascending.
func chartSeries(sessions []model.Session, metric func(*model.SessionStats) float64) []model.ChartPoint {
	if len(sessions) > chartSeriesLimit {
		sessions = sessions[len(sessions)-chartSeriesLimit:]
	}
	points := make([]model.ChartPoint, 0, len(sessions))
	for _, s := range sessions {
		points = append(points, model.ChartPoint{
			Label: dateLabel(s.CreatedAt),
			Value: metric(s.Stats),
		})
	}
	return points
}

// TopicHistogram counts sessions per topic, sorted descending by count and
// truncated to the top buckets. Blank topics count as "Uncategorized".
func TopicHistogram(sessions []model.Session) []model.TopicCount {
	counts := map[string]int{}
	for _, s := range sessions {
		topic := s.Topic
		if topic == "" {
			topic = uncategorizedTopic
		}
		counts[topic]++
	}
	out := make([]model.TopicCount, 0, len(counts))
	for topic, count := range counts {
		out = append(out, model.TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Count > out[j].Count
	})
	if len(out) > topicHistogramLimit {
		out = out[:topicHistogramLimit]
	}
	return out
}
