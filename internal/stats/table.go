package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// labeledRow is one line of a label/value listing.
type labeledRow struct {
	Label string
	Value string
}

// formatTable lays out label/value rows under a header pair. Labels are
// left-aligned, values right-aligned against the widest entry.
func formatTable(labelHeader, valueHeader string, rows []labeledRow) []string {
	labelWidth := runewidth.StringWidth(labelHeader)
	valueWidth := runewidth.StringWidth(valueHeader)
	for _, row := range rows {
		if w := runewidth.StringWidth(row.Label); w > labelWidth {
			labelWidth = w
		}
		if w := runewidth.StringWidth(row.Value); w > valueWidth {
			valueWidth = w
		}
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, formatLabeledRow(labelHeader, valueHeader, labelWidth, valueWidth))
	for _, row := range rows {
		lines = append(lines, formatLabeledRow(row.Label, row.Value, labelWidth, valueWidth))
	}
	return lines
}

func formatLabeledRow(label, value string, labelWidth, valueWidth int) string {
	var b strings.Builder
	b.WriteString(label)
	b.WriteString(strings.Repeat(" ", labelWidth-runewidth.StringWidth(label)))
	b.WriteByte(' ')
	b.WriteString(strings.Repeat(" ", valueWidth-runewidth.StringWidth(value)))
	b.WriteString(value)
	return b.String()
}
