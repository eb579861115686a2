package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tuiread/internal/gateway"
	"github.com/verte-zerg/tuiread/internal/identity"
	"github.com/verte-zerg/tuiread/internal/idle"
	"github.com/verte-zerg/tuiread/internal/model"
	"github.com/verte-zerg/tuiread/internal/session"
	"github.com/verte-zerg/tuiread/internal/stats"
)

const (
	wpmStep = 25
	wpmMin  = 60
	wpmMax  = 1200

	moveStep = 20
)

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone {
		return m.handleInputKey(msg)
	}
	switch msg.String() {
	case "ctrl+c", "q":
		m.saveSnapshot()
		return m, tea.Quit
	case "n":
		return m.beginTopicEntry()
	case "c":
		return m.beginCustomEntry()
	case "tab":
		m.cycleFocus(1)
		return m, nil
	case "shift+tab":
		m.cycleFocus(-1)
		return m, nil
	case "w":
		if id := m.deps.Windows.Focused(); id != "" {
			m.deps.Windows.Close(id)
		}
		return m, nil
	case "up", "down", "left", "right":
		m.moveFocused(msg.String())
		return m, nil
	case " ":
		return m.togglePlayback()
	case "+", "=":
		m.adjustWPM(wpmStep)
		return m, nil
	case "-":
		m.adjustWPM(-wpmStep)
		return m, nil
	case "0":
		m.rewindReader()
		return m, nil
	case "p":
		return m.openParagraph()
	case "z":
		return m.openQuiz()
	case "s":
		m.openStats()
		return m, nil
	case "a":
		return m.openAssistant()
	case "r":
		return m, m.refreshCmd()
	case "t":
		m.cycleIdleTimeout()
		return m, nil
	case "d":
		return m.deleteActive()
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.answerQuizOption(int(msg.String()[0] - '1'))
		return m, nil
	case "e":
		return m.beginQuizAnswer()
	case "enter":
		return m.submitQuiz()
	default:
		return m, nil
	}
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.saveSnapshot()
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		return m.submitInput()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeTopic {
		topic := m.input.Value()
		m.deps.Windows.MergePayload(m.inputWin, model.TopicPatch{Topic: &topic})
	}
	return m, cmd
}

func (m *Model) beginTopicEntry() (tea.Model, tea.Cmd) {
	m.inputWin = m.deps.Windows.Open(model.WindowTopic, model.TopicPayload{})
	m.mode = modeTopic
	m.input.Reset()
	m.input.Prompt = "Topic: "
	m.input.Placeholder = "e.g. the history of tea"
	return m, m.input.Focus()
}

func (m *Model) beginCustomEntry() (tea.Model, tea.Cmd) {
	m.inputWin = m.deps.Windows.Open(model.WindowTopic, model.TopicPayload{})
	m.mode = modeCustomText
	m.input.Reset()
	m.input.Prompt = "Text: "
	m.input.Placeholder = "paste the text to read"
	return m, m.input.Focus()
}

func (m *Model) submitInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	mode := m.mode
	windowID := m.inputWin
	m.mode = modeNone
	m.input.Blur()

	switch mode {
	case modeTopic:
		m.deps.Windows.Close(windowID)
		if value == "" {
			m.errMsg = "topic must not be empty"
			return m, nil
		}
		m.status = "generating session…"
		return m, m.createCmd(model.SessionGenerate, value, "")
	case modeCustomText:
		m.deps.Windows.Close(windowID)
		if value == "" {
			m.errMsg = "text must not be empty"
			return m, nil
		}
		return m, m.createCmd(model.SessionCustom, "", value)
	case modeQuizAnswer:
		m.recordQuizAnswer(windowID, value)
		return m, nil
	case modeAssistant:
		if value == "" {
			return m, nil
		}
		return m, m.askAssistantCmd(windowID, value)
	}
	return m, nil
}

func (m *Model) cycleFocus(delta int) {
	windows := m.deps.Windows.Windows()
	if len(windows) == 0 {
		return
	}
	current := -1
	for i, win := range windows {
		if win.ID == m.deps.Windows.Focused() {
			current = i
			break
		}
	}
	next := (current + delta + len(windows)) % len(windows)
	m.deps.Windows.Focus(windows[next].ID)
}

func (m *Model) moveFocused(key string) {
	id := m.deps.Windows.Focused()
	win, ok := m.deps.Windows.Get(id)
	if !ok {
		return
	}
	x, y := win.Position.X, win.Position.Y
	switch key {
	case "up":
		y -= moveStep
	case "down":
		y += moveStep
	case "left":
		x -= moveStep
	case "right":
		x += moveStep
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	m.deps.Windows.UpdateGeometry(id, x, y, 0, 0)
}

func (m *Model) focusedReader() (model.Window, model.ReaderPayload, bool) {
	win, ok := m.deps.Windows.Get(m.deps.Windows.Focused())
	if !ok {
		win, ok = m.deps.Windows.FindByType(model.WindowReader)
		if !ok {
			return model.Window{}, model.ReaderPayload{}, false
		}
	}
	p, ok := win.Payload.(model.ReaderPayload)
	if !ok {
		win, ok = m.deps.Windows.FindByType(model.WindowReader)
		if !ok {
			return model.Window{}, model.ReaderPayload{}, false
		}
		p, _ = win.Payload.(model.ReaderPayload)
	}
	return win, p, true
}

func (m *Model) togglePlayback() (tea.Model, tea.Cmd) {
	win, p, ok := m.focusedReader()
	if !ok {
		return m, nil
	}
	playing := !p.Playing
	m.deps.Windows.MergePayload(win.ID, model.ReaderPatch{Playing: &playing})
	if playing {
		return m, wordTickCmd(win.ID, p.WPM)
	}
	return m, nil
}

func (m *Model) adjustWPM(delta int) {
	win, p, ok := m.focusedReader()
	if !ok {
		return
	}
	wpm := p.WPM + delta
	if wpm < wpmMin {
		wpm = wpmMin
	}
	if wpm > wpmMax {
		wpm = wpmMax
	}
	m.deps.Windows.MergePayload(win.ID, model.ReaderPatch{WPM: &wpm})
}

func (m *Model) rewindReader() {
	win, _, ok := m.focusedReader()
	if !ok {
		return
	}
	zero := 0
	paused := false
	m.deps.Windows.MergePayload(win.ID, model.ReaderPatch{WordIndex: &zero, Playing: &paused})
	m.syncParagraph(win.ID, 0)
}

// openParagraph opens a paragraph view following the focused reader.
func (m *Model) openParagraph() (tea.Model, tea.Cmd) {
	win, p, ok := m.focusedReader()
	if !ok {
		return m, nil
	}
	m.deps.Windows.Open(model.WindowParagraph, model.ParagraphPayload{
		ParentID:  win.ID,
		SessionID: p.SessionID,
		Text:      p.Text,
		Words:     p.Words,
		WordIndex: p.WordIndex,
	})
	return m, nil
}

func (m *Model) openQuiz() (tea.Model, tea.Cmd) {
	active := m.deps.Sessions.ActiveSession()
	sess, ok := m.deps.Sessions.Get(active)
	if !ok {
		m.errMsg = "no active session to quiz on"
		return m, nil
	}
	windowID := m.deps.Windows.Open(model.WindowQuiz, model.QuizPayload{
		SessionID: sess.ID,
		Text:      sess.Text,
	})
	m.quizIndex = 0
	m.status = "building quiz…"
	return m, m.createQuizCmd(windowID, sess.ID)
}

func (m *Model) openStats() {
	active := m.deps.Sessions.ActiveSession()
	sess, ok := m.deps.Sessions.Get(active)
	if !ok {
		m.errMsg = "no active session"
		return
	}
	payload := model.StatsPayload{SessionID: sess.ID, Text: sess.Text, Stats: sess.Stats}
	if sess.Stats != nil {
		payload.Score = sess.Stats.Score
	}
	m.deps.Windows.Open(model.WindowStats, payload)
}

func (m *Model) openAssistant() (tea.Model, tea.Cmd) {
	active := m.deps.Sessions.ActiveSession()
	if _, ok := m.deps.Sessions.Get(active); !ok {
		m.errMsg = "no active session"
		return m, nil
	}
	m.inputWin = m.deps.Windows.Open(model.WindowAssistant, model.AssistantPayload{SessionID: active})
	m.mode = modeAssistant
	m.input.Reset()
	m.input.Prompt = "Ask: "
	m.input.Placeholder = "question about the text"
	return m, m.input.Focus()
}

func (m *Model) deleteActive() (tea.Model, tea.Cmd) {
	active := m.deps.Sessions.ActiveSession()
	if active == "" {
		return m, nil
	}
	return m, m.deleteCmd(active)
}

// focusedQuiz returns the focused quiz window, if any.
func (m *Model) focusedQuiz() (model.Window, model.QuizPayload, bool) {
	win, ok := m.deps.Windows.Get(m.deps.Windows.Focused())
	if !ok {
		return model.Window{}, model.QuizPayload{}, false
	}
	p, ok := win.Payload.(model.QuizPayload)
	return win, p, ok
}

// answerQuizOption records a multiple-choice pick for the current
// question and advances to the next one.
func (m *Model) answerQuizOption(option int) {
	win, p, ok := m.focusedQuiz()
	if !ok || p.Submitted || m.quizIndex >= len(p.Questions) {
		return
	}
	q := p.Questions[m.quizIndex]
	if q.Type != model.QuestionMultipleChoice || option >= len(q.Options) {
		return
	}
	m.setQuizAnswer(win.ID, p, q.ID, q.Options[option])
}

func (m *Model) beginQuizAnswer() (tea.Model, tea.Cmd) {
	_, p, ok := m.focusedQuiz()
	if !ok || p.Submitted || m.quizIndex >= len(p.Questions) {
		return m, nil
	}
	if p.Questions[m.quizIndex].Type != model.QuestionOpenEnded {
		return m, nil
	}
	m.inputWin = m.deps.Windows.Focused()
	m.mode = modeQuizAnswer
	m.input.Reset()
	m.input.Prompt = "Answer: "
	m.input.Placeholder = ""
	return m, m.input.Focus()
}

func (m *Model) recordQuizAnswer(windowID, answer string) {
	win, ok := m.deps.Windows.Get(windowID)
	if !ok {
		return
	}
	p, ok := win.Payload.(model.QuizPayload)
	if !ok || m.quizIndex >= len(p.Questions) {
		return
	}
	m.setQuizAnswer(windowID, p, p.Questions[m.quizIndex].ID, answer)
}

func (m *Model) setQuizAnswer(windowID string, p model.QuizPayload, questionID, answer string) {
	answers := make([]model.QuizAnswer, 0, len(p.Answers)+1)
	replaced := false
	for _, a := range p.Answers {
		if a.QuestionID == questionID {
			a.UserAnswer = answer
			replaced = true
		}
		answers = append(answers, a)
	}
	if !replaced {
		answers = append(answers, model.QuizAnswer{QuestionID: questionID, UserAnswer: answer})
	}
	m.deps.Windows.MergePayload(windowID, model.QuizPatch{Answers: answers})
	if m.quizIndex < len(p.Questions)-1 {
		m.quizIndex++
	}
}

// submitQuiz sends the answered quiz for grading.
func (m *Model) submitQuiz() (tea.Model, tea.Cmd) {
	win, p, ok := m.focusedQuiz()
	if !ok || p.Submitted || len(p.Questions) == 0 {
		return m, nil
	}
	if len(p.Answers) < len(p.Questions) {
		m.errMsg = fmt.Sprintf("answered %d of %d questions", len(p.Answers), len(p.Questions))
		return m, nil
	}
	m.errMsg = ""
	m.status = "grading quiz…"
	readingTime := m.readingTimeSeconds(p.SessionID)
	seq := m.deps.Sessions.Begin(p.SessionID)
	return m, m.validateQuizCmd(win.ID, p.SessionID, seq, p.Answers, readingTime)
}

// readingTimeSeconds estimates reading time from the session word count
// and the reader's playback speed.
func (m *Model) readingTimeSeconds(sessionID string) int {
	sess, ok := m.deps.Sessions.Get(sessionID)
	if !ok || len(sess.Words) == 0 {
		return 0
	}
	wpm := model.DefaultReaderWPM
	if win, ok := m.deps.Windows.FindByType(model.WindowReader); ok {
		if p, ok := win.Payload.(model.ReaderPayload); ok && p.WPM > 0 {
			wpm = p.WPM
		}
	}
	return len(sess.Words) * 60 / wpm
}

func (m *Model) handleQuizReady(msg quizReadyMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errMsg = msg.err.Error()
		m.deps.Windows.Close(msg.windowID)
		return m, nil
	}
	m.errMsg = ""
	m.status = ""
	m.deps.Windows.MergePayload(msg.windowID, model.QuizPatch{Questions: msg.questions})
	return m, nil
}

func (m *Model) handleQuizGraded(msg quizGradedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errMsg = msg.err.Error()
		return m, nil
	}
	m.errMsg = ""
	m.status = fmt.Sprintf("quiz graded: %d%%", msg.result.OverallScore)

	submitted := true
	m.deps.Windows.MergePayload(msg.windowID, model.QuizPatch{
		Submitted: &submitted,
		Score:     &msg.result.OverallScore,
	})

	wpm := msg.result.WPM
	if wpm == 0 && msg.result.ReadingTimeSeconds > 0 {
		// The validation endpoint does not always echo a speed back.
		if sess, ok := m.deps.Sessions.Get(msg.sessionID); ok {
			elapsed := time.Duration(msg.result.ReadingTimeSeconds) * time.Second
			wpm = int(stats.ReadingWPM(len(sess.Words), elapsed))
		}
	}
	graded := model.SessionStats{
		WPM:         wpm,
		TotalTimeMs: int64(msg.result.ReadingTimeSeconds) * 1000,
		IdealTimeMs: int64(msg.result.AIIdealTimeSeconds) * 1000,
		Score:       msg.result.OverallScore,
	}
	m.deps.Sessions.UpdateStatsSeq(msg.sessionID, graded, msg.seq)
	// Fresh results change the aggregate picture.
	return m, m.refreshCmd()
}

func (m *Model) handleAssistantReply(msg assistantRepliedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errMsg = msg.err.Error()
		return m, nil
	}
	win, ok := m.deps.Windows.Get(msg.windowID)
	if !ok {
		return m, nil
	}
	p, ok := win.Payload.(model.AssistantPayload)
	if !ok {
		return m, nil
	}
	messages := append(p.Messages, model.AssistantMessage{Role: "assistant", Text: msg.answer})
	m.deps.Windows.MergePayload(msg.windowID, model.AssistantPatch{Messages: messages})
	return m, nil
}

// The cmd constructors run on the event loop and do all store planning
// there; the returned closures perform only the network round trip and
// report back via a msg, which Update applies synchronously.

func (m *Model) createCmd(kind model.SessionType, topic, text string) tea.Cmd {
	draft := session.Draft{Type: kind, Topic: topic, Text: text}
	if err := m.deps.Sessions.ValidateDraft(draft); err != nil {
		m.errMsg = err.Error()
		return nil
	}
	token := m.deps.Identity.Token()
	return func() tea.Msg {
		remote, used, err := m.deps.Sessions.CreateRemote(context.Background(), draft, token)
		return createdMsg{draft: draft, remote: remote, remoteUsed: used, err: err}
	}
}

func (m *Model) loadCmd(id string) tea.Cmd {
	token := m.deps.Identity.Token()
	plan := m.deps.Sessions.StartLoad(id, token)
	if !plan.Found {
		return nil
	}
	if !plan.Fetch {
		m.deps.Sessions.ApplyLoad(id, nil, 0)
		m.status = "session loaded"
		return nil
	}
	return func() tea.Msg {
		remote, err := m.deps.Sessions.FetchRemote(context.Background(), id, token)
		return loadedMsg{id: id, seq: plan.Seq, remote: remote, err: err}
	}
}

func (m *Model) deleteCmd(id string) tea.Cmd {
	remote, found := m.deps.Sessions.DeletePlan(id)
	if !found {
		return nil
	}
	if !remote {
		m.deps.Sessions.Forget(id)
		m.status = "session deleted"
		return nil
	}
	token := m.deps.Identity.Token()
	return func() tea.Msg {
		return deletedMsg{id: id, err: m.deps.Sessions.DeleteRemote(context.Background(), id, token)}
	}
}

// refreshCmd drops the trigger when a refresh is already outstanding or
// nobody is signed in.
func (m *Model) refreshCmd() tea.Cmd {
	if m.refreshing || !m.deps.Identity.Authenticated() {
		return nil
	}
	m.refreshing = true
	token := m.deps.Identity.Token()
	userID := m.deps.Identity.UserID()
	return func() tea.Msg {
		agg, err := m.deps.Engine.Fetch(context.Background(), token)
		return refreshedMsg{userID: userID, agg: agg, err: err}
	}
}

// idleTimeoutPref is the prefs key the chosen timeout persists under.
const idleTimeoutPref = "idle_timeout_minutes"

// cycleIdleTimeout steps to the next timeout preset, re-arms the monitor
// immediately, and persists the choice.
func (m *Model) cycleIdleTimeout() {
	current := m.deps.Idle.Timeout()
	next := idle.Presets[0]
	for i, preset := range idle.Presets {
		if preset == current {
			next = idle.Presets[(i+1)%len(idle.Presets)]
			break
		}
	}
	m.deps.Idle.SetTimeout(next, time.Now())
	m.status = fmt.Sprintf("idle timeout: %d min", int(next.Minutes()))
	if m.deps.DB != nil {
		minutes := strconv.Itoa(int(next.Minutes()))
		if err := m.deps.DB.SetPref(context.Background(), idleTimeoutPref, minutes); err != nil {
			logErrf("failed to persist idle timeout: %v\n", err)
		}
	}
}

// failOp surfaces a failed operation; an authentication failure forces
// the sign-out path and wipes the user's local data.
func (m *Model) failOp(err error) {
	m.errMsg = err.Error()
	if errors.Is(err, gateway.ErrUnauthorized) {
		userID := m.deps.Identity.UserID()
		m.deps.Identity.SignOut(identity.ReasonExpired)
		m.deps.Sessions.Wipe(userID)
		m.deps.Idle.Suspend()
	}
}

func (m *Model) createQuizCmd(windowID, sessionID string) tea.Cmd {
	token := m.deps.Identity.Token()
	return func() tea.Msg {
		questions, err := m.deps.Gateway.CreateQuiz(context.Background(), token, sessionID)
		return quizReadyMsg{windowID: windowID, questions: questions, err: err}
	}
}

func (m *Model) validateQuizCmd(windowID, sessionID string, seq uint64, answers []model.QuizAnswer, readingTime int) tea.Cmd {
	token := m.deps.Identity.Token()
	return func() tea.Msg {
		result, err := m.deps.Gateway.ValidateQuiz(context.Background(), token, sessionID, answers, readingTime)
		return quizGradedMsg{windowID: windowID, sessionID: sessionID, seq: seq, result: result, err: err}
	}
}

func (m *Model) askAssistantCmd(windowID, question string) tea.Cmd {
	token := m.deps.Identity.Token()
	win, ok := m.deps.Windows.Get(windowID)
	if ok {
		if p, pok := win.Payload.(model.AssistantPayload); pok {
			messages := append(p.Messages, model.AssistantMessage{Role: "user", Text: question})
			m.deps.Windows.MergePayload(windowID, model.AssistantPatch{Messages: messages})
		}
	}
	sessionID := m.deps.Sessions.ActiveSession()
	return func() tea.Msg {
		answer, err := m.deps.Gateway.AssistantQuery(context.Background(), token, sessionID, question)
		return assistantRepliedMsg{windowID: windowID, answer: answer, err: err}
	}
}
