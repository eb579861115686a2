package stats

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/verte-zerg/tuiread/internal/model"
)

const fallbackTermWidth = 80

// seriesSmoothingWindow is the rolling-mean window for the smoothed
// trend curve drawn under each chart series.
const seriesSmoothingWindow = 3

// TerminalWidth probes stdout for the terminal width, falling back to a
// conventional 80 columns when stdout is not a terminal.
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fallbackTermWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return fallbackTermWidth
	}
	return width
}

// RenderReport prints the progress report. Server-computed averages and
// trend deltas from the aggregate feed take precedence over the local
// summary; chart series and topics always come from the summary so that
// locally held sessions are represented.
func RenderReport(w io.Writer, sum Summary, agg *model.AggregateStats, width int) error {
	avgWPM := sum.AvgWPM
	avgScore := sum.AvgScore
	wpmDelta := float64(sum.WPMDelta)
	scoreDelta := float64(sum.ScoreDelta)
	totalSessions := sum.TotalSessions
	totalSeconds := sum.TotalTimeSeconds
	source := "local"
	if agg != nil {
		avgWPM = agg.Overall.AverageWPM
		avgScore = agg.Overall.AverageQuizScore
		wpmDelta = agg.Overall.DeltaWPMVsPrevious
		scoreDelta = agg.Overall.DeltaScoreVsPrevious
		totalSessions = agg.Overall.TotalSessions
		totalSeconds = int64(agg.Overall.TotalReadingTimeSeconds)
		source = "server"
	}

	if _, err := fmt.Fprintf(w, "Summary (%s)\n", source); err != nil {
		return err
	}
	lines := []string{
		fmt.Sprintf("Sessions: %d", totalSessions),
		fmt.Sprintf("Reading time: %s", formatDuration(totalSeconds)),
		fmt.Sprintf("Avg WPM: %.1f (%+.0f%%)", avgWPM, wpmDelta),
		fmt.Sprintf("Avg quiz score: %.1f (%+.0f%%)", avgScore, scoreDelta),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	if err := renderSeries(w, "WPM", sum.WPMSeries, width); err != nil {
		return err
	}
	if err := renderSeries(w, "Score", sum.ScoreSeries, width); err != nil {
		return err
	}
	if err := renderTopics(w, sum.Topics); err != nil {
		return err
	}
	if agg != nil && agg.PersonalizedFeedback != "" {
		if _, err := fmt.Fprintf(w, "\nFeedback: %s\n", agg.PersonalizedFeedback); err != nil {
			return err
		}
	}
	return nil
}

func renderSeries(w io.Writer, name string, points []model.ChartPoint, width int) error {
	if len(points) == 0 {
		return nil
	}
	values := make([]float64, len(points))
	minVal, maxVal := points[0].Value, points[0].Value
	for i, p := range points {
		values[i] = p.Value
		if p.Value < minVal {
			minVal = p.Value
		}
		if p.Value > maxVal {
			maxVal = p.Value
		}
	}
	if width > 0 && len(values) > width-20 && width > 20 {
		values = values[len(values)-(width-20):]
	}
	if _, err := fmt.Fprintf(w, "\n%s %s  (min %.0f, max %.0f, %s..%s)\n",
		name, Sparkline(values), minVal, maxVal, points[0].Label, points[len(points)-1].Label); err != nil {
		return err
	}
	if len(values) > seriesSmoothingWindow {
		smoothed := MovingAverage(values, seriesSmoothingWindow)
		if _, err := fmt.Fprintf(w, "%s trend %s  (%d-session rolling mean)\n",
			name, Sparkline(smoothed), seriesSmoothingWindow); err != nil {
			return err
		}
	}
	return nil
}

func renderTopics(w io.Writer, topics []model.TopicCount) error {
	if len(topics) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nTopics"); err != nil {
		return err
	}
	rows := make([]labeledRow, 0, len(topics))
	for _, t := range topics {
		rows = append(rows, labeledRow{Label: t.Topic, Value: fmt.Sprintf("%d", t.Count)})
	}
	for _, line := range formatTable("Topic", "Sessions", rows) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatDuration(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
