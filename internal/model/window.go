package model

// WindowType identifies the kind of a workspace window.
type WindowType string

// Window types.
const (
	WindowTopic     WindowType = "topic"
	WindowReader    WindowType = "reader"
	WindowQuiz      WindowType = "quiz"
	WindowStats     WindowType = "stats"
	WindowAssistant WindowType = "assistant"
	WindowParagraph WindowType = "paragraph"
)

// Geometry is the position and size of a window.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Window is an independently positioned, typed surface within the workspace.
// Type is immutable after creation.
type Window struct {
	ID       string
	Type     WindowType
	Position Geometry
	Payload  Payload
}

// Payload is the per-type window data variant. The set of implementations
// is closed: one per window type.
type Payload interface {
	Kind() WindowType
}

// Patch is a partial payload update. Nil fields leave the corresponding
// payload fields untouched.
type Patch interface {
	Kind() WindowType
}

// AssistantMessage is one exchange of the assistant conversation.
type AssistantMessage struct {
	Role string // "user" or "assistant"
	Text string
}

// TopicPayload backs a topic-picker window.
type TopicPayload struct {
	Topic string
}

// DefaultReaderWPM is the playback speed a fresh reader window starts
// at.
const DefaultReaderWPM = 300

// ReaderPayload backs an RSVP reader window.
type ReaderPayload struct {
	SessionID string
	Text      string
	Words     []string
	WordIndex int
	Playing   bool
	WPM       int
}

// QuizPayload backs a quiz window.
type QuizPayload struct {
	SessionID string
	Text      string
	Questions []QuizQuestion
	Answers   []QuizAnswer
	Submitted bool
	Score     int
}

// StatsPayload backs a per-session stats window.
type StatsPayload struct {
	SessionID string
	Text      string
	Score     int
	Stats     *SessionStats
}

// AssistantPayload backs an assistant window.
type AssistantPayload struct {
	SessionID string
	Messages  []AssistantMessage
}

// ParagraphPayload backs a paragraph view. ParentID is a non-owning
// back-reference to a reader window; closing either side leaves the
// other open.
type ParagraphPayload struct {
	ParentID  string
	SessionID string
	Text      string
	Words     []string
	WordIndex int
	Playing   bool
}

// Kind implements Payload.
func (TopicPayload) Kind() WindowType { return WindowTopic }

// Kind implements Payload.
func (ReaderPayload) Kind() WindowType { return WindowReader }

// Kind implements Payload.
func (QuizPayload) Kind() WindowType { return WindowQuiz }

// Kind implements Payload.
func (StatsPayload) Kind() WindowType { return WindowStats }

// Kind implements Payload.
func (AssistantPayload) Kind() WindowType { return WindowAssistant }

// Kind implements Payload.
func (ParagraphPayload) Kind() WindowType { return WindowParagraph }

// TopicPatch partially updates a TopicPayload.
type TopicPatch struct {
	Topic *string
}

// ReaderPatch partially updates a ReaderPayload.
type ReaderPatch struct {
	Text      *string
	Words     []string
	WordIndex *int
	Playing   *bool
	WPM       *int
}

// QuizPatch partially updates a QuizPayload.
type QuizPatch struct {
	Text      *string
	Questions []QuizQuestion
	Answers   []QuizAnswer
	Submitted *bool
	Score     *int
}

// StatsPatch partially updates a StatsPayload.
type StatsPatch struct {
	Text  *string
	Score *int
	Stats *SessionStats
}

// AssistantPatch partially updates an AssistantPayload.
type AssistantPatch struct {
	Messages []AssistantMessage
}

// ParagraphPatch partially updates a ParagraphPayload.
type ParagraphPatch struct {
	Text      *string
	Words     []string
	WordIndex *int
	Playing   *bool
}

// Kind implements Patch.
func (TopicPatch) Kind() WindowType { return WindowTopic }

// Kind implements Patch.
func (ReaderPatch) Kind() WindowType { return WindowReader }

// Kind implements Patch.
func (QuizPatch) Kind() WindowType { return WindowQuiz }

// Kind implements Patch.
func (StatsPatch) Kind() WindowType { return WindowStats }

// Kind implements Patch.
func (AssistantPatch) Kind() WindowType { return WindowAssistant }

// Kind implements Patch.
func (ParagraphPatch) Kind() WindowType { return WindowParagraph }
