package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuiread/internal/model"
)

const assistantHistory = 6

func (m *Model) renderHeader() string {
	who := "signed out"
	if m.deps.Identity.Authenticated() {
		who = m.deps.Identity.UserID()
	}
	active := "none"
	if sess, ok := m.deps.Sessions.Get(m.deps.Sessions.ActiveSession()); ok {
		active = sess.Title
	}
	count := len(m.deps.Sessions.UserSessions(m.deps.Identity.UserID()))
	header := fmt.Sprintf("tuiread · %s · %d sessions · active: %s", who, count, active)
	return titleStyle.Render(truncateLine(header, m.width))
}

func (m *Model) renderFooter() string {
	help := "n new  c custom  tab focus  w close  space play  +/- wpm  z quiz  s stats  a ask  r refresh  t idle  q quit"
	if m.mode != modeNone {
		help = "enter submit  esc cancel"
	}
	lines := footerStyle.Render(truncateLine(help, m.width))
	if m.errMsg != "" {
		lines += "\n" + errorStyle.Render(truncateLine(m.errMsg, m.width))
	} else if m.status != "" {
		lines += "\n" + footerStyle.Render(truncateLine(m.status, m.width))
	}
	return lines
}

// renderWindows draws the stacked windows, focused last so it reads as
// the topmost surface.
func (m *Model) renderWindows() string {
	windows := m.deps.Windows.Stacked()
	if len(windows) == 0 {
		return mutedStyle.Render("No windows open. Press n to start a new reading session.")
	}
	focused := m.deps.Windows.Focused()
	parts := make([]string, 0, len(windows))
	for _, win := range windows {
		parts = append(parts, m.renderWindow(win, win.ID == focused))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderWindow(win model.Window, focused bool) string {
	width := m.boxWidth(win)
	title := m.windowTitle(win)
	body := m.renderWindowBody(win, width)
	content := titleStyle.Render(truncateLine(title, width)) + "\n" + body
	style := blurredBorder
	if focused {
		style = focusedBorder
	}
	return style.Width(width + 2).Render(content)
}

// boxWidth maps the window's pixel geometry onto terminal cells.
func (m *Model) boxWidth(win model.Window) int {
	width := win.Position.Width / 8
	max := m.width - 6
	if max < 20 {
		max = 20
	}
	if width > max {
		width = max
	}
	if width < 20 {
		width = 20
	}
	return width
}

func (m *Model) windowTitle(win model.Window) string {
	label := string(win.Type)
	switch p := win.Payload.(type) {
	case model.ReaderPayload:
		if sess, ok := m.deps.Sessions.Get(p.SessionID); ok {
			label = "reader · " + sess.Title
		}
	case model.QuizPayload:
		label = "quiz"
	case model.StatsPayload:
		label = "stats"
	case model.AssistantPayload:
		label = "assistant"
	case model.ParagraphPayload:
		label = "paragraph"
	case model.TopicPayload:
		label = "new session"
	}
	return fmt.Sprintf("%s · %d×%d @ (%d,%d)", label,
		win.Position.Width, win.Position.Height, win.Position.X, win.Position.Y)
}

func (m *Model) renderWindowBody(win model.Window, width int) string {
	switch p := win.Payload.(type) {
	case model.TopicPayload:
		if m.mode != modeNone && m.inputWin == win.ID {
			return m.input.View()
		}
		return p.Topic
	case model.ReaderPayload:
		return m.renderReader(p, width)
	case model.QuizPayload:
		return m.renderQuiz(p, width)
	case model.StatsPayload:
		return m.renderStats(p)
	case model.AssistantPayload:
		return m.renderAssistant(win.ID, p, width)
	case model.ParagraphPayload:
		return m.renderParagraph(p, width)
	default:
		return mutedStyle.Render("empty")
	}
}

func (m *Model) renderReader(p model.ReaderPayload, width int) string {
	if len(p.Words) == 0 {
		return mutedStyle.Render("no text")
	}
	idx := p.WordIndex
	if idx >= len(p.Words) {
		idx = len(p.Words) - 1
	}
	word := lipgloss.Place(width, 3, lipgloss.Center, lipgloss.Center,
		wordStyle.Render(p.Words[idx]))
	state := "paused"
	if p.Playing {
		state = "playing"
	}
	status := fmt.Sprintf("%d/%d · %d wpm · %s", idx+1, len(p.Words), p.WPM, state)
	return word + "\n" + mutedStyle.Render(truncateLine(status, width))
}

func (m *Model) renderQuiz(p model.QuizPayload, width int) string {
	if len(p.Questions) == 0 {
		return mutedStyle.Render("building quiz…")
	}
	if p.Submitted {
		return m.renderQuizResult(p, width)
	}
	idx := m.quizIndex
	if idx >= len(p.Questions) {
		idx = len(p.Questions) - 1
	}
	q := p.Questions[idx]
	var b strings.Builder
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Question %d/%d · answered %d", idx+1, len(p.Questions), len(p.Answers))))
	b.WriteByte('\n')
	b.WriteString(wrapText(q.Text, width))
	b.WriteByte('\n')
	if q.Type == model.QuestionMultipleChoice {
		for i, opt := range q.Options {
			line := fmt.Sprintf("%d. %s", i+1, opt)
			if answeredWith(p.Answers, q.ID, opt) {
				line = correctStyle.Render(line)
			}
			b.WriteString(truncateLine(line, width))
			b.WriteByte('\n')
		}
	} else {
		if m.mode == modeQuizAnswer {
			b.WriteString(m.input.View())
		} else {
			b.WriteString(mutedStyle.Render("press e to type an answer"))
		}
		b.WriteByte('\n')
	}
	b.WriteString(mutedStyle.Render("enter submits the quiz"))
	return b.String()
}

func answeredWith(answers []model.QuizAnswer, questionID, option string) bool {
	for _, a := range answers {
		if a.QuestionID == questionID {
			return a.UserAnswer == option
		}
	}
	return false
}

func (m *Model) renderQuizResult(p model.QuizPayload, width int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Score: %d%%\n", p.Score))
	sess, ok := m.deps.Sessions.Get(p.SessionID)
	if ok && sess.Stats != nil {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d wpm over %s", sess.Stats.WPM, formatMs(sess.Stats.TotalTimeMs))))
		b.WriteByte('\n')
	}
	b.WriteString(mutedStyle.Render(truncateLine(fmt.Sprintf("%d questions answered", len(p.Answers)), width)))
	return b.String()
}

func (m *Model) renderStats(p model.StatsPayload) string {
	if p.Stats == nil {
		return mutedStyle.Render("no results yet. Take the quiz to score this session")
	}
	lines := []string{
		fmt.Sprintf("WPM: %d", p.Stats.WPM),
		fmt.Sprintf("Score: %d%%", p.Stats.Score),
		fmt.Sprintf("Time: %s", formatMs(p.Stats.TotalTimeMs)),
	}
	if p.Stats.IdealTimeMs > 0 {
		lines = append(lines, fmt.Sprintf("Ideal: %s", formatMs(p.Stats.IdealTimeMs)))
	}
	if p.Stats.Feedback != "" {
		lines = append(lines, p.Stats.Feedback)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderAssistant(windowID string, p model.AssistantPayload, width int) string {
	var b strings.Builder
	messages := p.Messages
	if len(messages) > assistantHistory {
		messages = messages[len(messages)-assistantHistory:]
	}
	for _, msg := range messages {
		prefix := "you: "
		if msg.Role == "assistant" {
			prefix = "ai: "
		}
		b.WriteString(wrapText(prefix+msg.Text, width))
		b.WriteByte('\n')
	}
	if m.mode == modeAssistant && m.inputWin == windowID {
		b.WriteString(m.input.View())
	} else if len(p.Messages) == 0 {
		b.WriteString(mutedStyle.Render("press a to ask about the text"))
	}
	return b.String()
}

// renderParagraph shows the full text with the reader's position
// highlighted.
func (m *Model) renderParagraph(p model.ParagraphPayload, width int) string {
	if len(p.Words) == 0 {
		return wrapText(p.Text, width)
	}
	idx := p.WordIndex
	if idx >= len(p.Words) {
		idx = len(p.Words) - 1
	}
	words := make([]string, len(p.Words))
	copy(words, p.Words)
	// Plain markers instead of styling so the wrap width stays honest.
	words[idx] = "«" + words[idx] + "»"
	return wrapText(strings.Join(words, " "), width)
}

func formatMs(ms int64) string {
	secs := ms / 1000
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
}
