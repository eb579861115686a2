package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuiread/internal/gateway"
	"github.com/verte-zerg/tuiread/internal/identity"
	"github.com/verte-zerg/tuiread/internal/idle"
	"github.com/verte-zerg/tuiread/internal/model"
	"github.com/verte-zerg/tuiread/internal/reconcile"
	"github.com/verte-zerg/tuiread/internal/session"
	"github.com/verte-zerg/tuiread/internal/store"
	"github.com/verte-zerg/tuiread/internal/workspace"
)

// inputMode says which window the text input is feeding.
type inputMode int

const (
	modeNone inputMode = iota
	modeTopic
	modeCustomText
	modeQuizAnswer
	modeAssistant
)

// Deps bundles the collaborators the workspace UI drives.
type Deps struct {
	Sessions *session.Store
	Windows  *workspace.Manager
	Engine   *reconcile.Engine
	Identity *identity.Context
	Idle     *idle.Monitor
	Gateway  *gateway.Client
	DB       *store.Store // nil disables persistence
}

// Model implements the Bubble Tea workspace UI.
type Model struct {
	deps Deps

	width  int
	height int

	input     textinput.Model
	mode      inputMode
	inputWin  string // window the input feeds
	quizIndex int    // question the answer targets

	refreshing bool // refresh round trip outstanding

	warning bool
	errMsg  string
	status  string
}

var (
	titleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	focusedBorder     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#C89A3A")).Padding(0, 1)
	blurredBorder     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#6E6E6E")).Padding(0, 1)
	wordStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	mutedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	correctStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	warningModalStyle = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#FF4D4F")).Padding(1, 2)
)

// NewModel constructs the workspace UI model.
func NewModel(deps Deps) *Model {
	input := textinput.New()
	input.CharLimit = 0
	m := &Model{deps: deps, input: input}
	if deps.Identity.Authenticated() {
		deps.Idle.Resume(time.Now())
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd()}
	if m.deps.Identity.Authenticated() {
		cmds = append(cmds, m.refreshCmd())
	}
	return tea.Batch(cmds...)
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// wordTickMsg advances the playing reader window it was scheduled for.
type wordTickMsg struct {
	windowID string
}

// Network msgs carry the fetched data; the stores are only touched from
// Update when the msg arrives, never from the command goroutine.

type createdMsg struct {
	draft      session.Draft
	remote     gateway.RemoteSession
	remoteUsed bool
	err        error
}

type loadedMsg struct {
	id     string
	seq    uint64
	remote gateway.RemoteSession
	err    error
}

type refreshedMsg struct {
	userID string
	agg    model.AggregateStats
	err    error
}

type deletedMsg struct {
	id  string
	err error
}

type quizReadyMsg struct {
	windowID  string
	questions []model.QuizQuestion
	err       error
}

type quizGradedMsg struct {
	windowID  string
	sessionID string
	seq       uint64
	result    model.QuizResult
	err       error
}

type assistantRepliedMsg struct {
	windowID string
	answer   string
	err      error
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		m.deps.Idle.Touch(time.Now())
		if m.warning {
			m.warning = false
			return m, nil
		}
		return m.handleKey(msg)
	case tea.MouseMsg:
		m.deps.Idle.Touch(time.Now())
		if m.warning {
			m.warning = false
		}
		return m, nil
	case tickMsg:
		return m.handleTick(time.Time(msg))
	case wordTickMsg:
		return m.handleWordTick(msg.windowID)
	case createdMsg:
		if msg.err != nil {
			m.failOp(msg.err)
			return m, nil
		}
		m.errMsg = ""
		var remote *gateway.RemoteSession
		if msg.remoteUsed {
			r := msg.remote
			remote = &r
		}
		id := m.deps.Sessions.Adopt(msg.draft, remote, m.deps.Identity.UserID())
		return m, m.loadCmd(id)
	case loadedMsg:
		if msg.err != nil {
			m.failOp(msg.err)
			return m, nil
		}
		r := msg.remote
		m.deps.Sessions.ApplyLoad(msg.id, &r, msg.seq)
		m.errMsg = ""
		m.status = "session loaded"
		return m, nil
	case deletedMsg:
		if msg.err != nil {
			m.failOp(msg.err)
			return m, nil
		}
		m.deps.Sessions.Forget(msg.id)
		m.errMsg = ""
		m.status = "session deleted"
		return m, nil
	case refreshedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.failOp(msg.err)
			return m, nil
		}
		m.deps.Engine.Apply(msg.userID, msg.agg)
		m.errMsg = ""
		m.status = fmt.Sprintf("stats refreshed %s", time.Now().Format("15:04:05"))
		return m, nil
	case quizReadyMsg:
		return m.handleQuizReady(msg)
	case quizGradedMsg:
		return m.handleQuizGraded(msg)
	case assistantRepliedMsg:
		return m.handleAssistantReply(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	switch m.deps.Idle.Tick(now) {
	case idle.EventWarn:
		m.warning = true
	case idle.EventExpire:
		userID := m.deps.Identity.UserID()
		m.deps.Identity.SignOut(identity.ReasonInactive)
		m.deps.Sessions.Wipe(userID)
		m.warning = false
		m.mode = modeNone
		m.status = "signed out after inactivity"
	}
	return m, tickCmd()
}

// handleWordTick advances a playing reader by one word. Stale ticks for
// paused or closed windows are dropped.
func (m *Model) handleWordTick(windowID string) (tea.Model, tea.Cmd) {
	win, ok := m.deps.Windows.Get(windowID)
	if !ok {
		return m, nil
	}
	p, ok := win.Payload.(model.ReaderPayload)
	if !ok || !p.Playing {
		return m, nil
	}
	next := p.WordIndex + 1
	if next >= len(p.Words) {
		playing := false
		m.deps.Windows.MergePayload(windowID, model.ReaderPatch{Playing: &playing})
		return m, nil
	}
	m.deps.Windows.MergePayload(windowID, model.ReaderPatch{WordIndex: &next})
	m.syncParagraph(windowID, next)
	return m, wordTickCmd(windowID, p.WPM)
}

// syncParagraph mirrors the reader position into its paragraph window.
func (m *Model) syncParagraph(readerID string, wordIndex int) {
	para, ok := m.deps.Windows.ParagraphFor(readerID)
	if !ok {
		return
	}
	m.deps.Windows.MergePayload(para.ID, model.ParagraphPatch{WordIndex: &wordIndex})
}

func wordTickCmd(windowID string, wpm int) tea.Cmd {
	if wpm <= 0 {
		wpm = model.DefaultReaderWPM
	}
	interval := time.Minute / time.Duration(wpm)
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return wordTickMsg{windowID: windowID}
	})
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.warning {
		return m.renderWarningModal()
	}
	header := m.renderHeader()
	body := m.renderWindows()
	footer := m.renderFooter()
	content := header + "\n" + body + "\n" + footer
	return content
}

func (m *Model) renderWarningModal() string {
	remaining := m.deps.Idle.Remaining(time.Now()).Round(time.Second)
	text := fmt.Sprintf("Still reading?\n\nSigning out in %s.\nPress any key to stay.", remaining)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		warningModalStyle.Render(text))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

// saveSnapshot persists the workspace before quitting.
func (m *Model) saveSnapshot() {
	if m.deps.DB == nil {
		return
	}
	snap := store.Snapshot{
		Sessions: m.deps.Sessions.Sessions(),
		Folders:  m.deps.Sessions.Folders(),
		Projects: m.deps.Sessions.Projects(),
		Windows:  m.deps.Windows.Windows(),
		Focused:  m.deps.Windows.Focused(),
	}
	if err := m.deps.DB.SaveSnapshot(context.Background(), snap); err != nil {
		logErrf("failed to save workspace: %v\n", err)
	}
}
