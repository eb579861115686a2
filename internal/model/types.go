// Package model defines shared data structures.
package model

import "time"

// SessionType distinguishes how a reading session obtained its text.
type SessionType string

// Session types.
const (
	SessionGenerate SessionType = "generate"
	SessionCustom   SessionType = "custom"
)

// SessionStats holds the computed metrics for one reading session.
type SessionStats struct {
	WPM         int
	TotalTimeMs int64
	IdealTimeMs int64
	Score       int
	Feedback    string
}

// Session is one instance of reading content plus its derived metrics.
// For generate sessions the ID is assigned by the remote gateway; custom
// sessions may carry a client-generated id when no remote record exists.
type Session struct {
	ID          string
	Title       string
	Topic       string
	Text        string
	Words       []string
	FolderID    string // empty means unfiled
	Type        SessionType
	CreatedAt   time.Time
	OwnerUserID string
	Stats       *SessionStats
}

// Folder is a pure organizational tag.
type Folder struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Project is an organizational tag optionally contained in a folder.
type Project struct {
	ID        string
	Name      string
	FolderID  string
	CreatedAt time.Time
}

// OverallStats is the server-computed summary across all of a user's sessions.
type OverallStats struct {
	TotalSessions           int
	TotalReadingTimeSeconds int
	TotalWordsRead          int
	AverageWPM              float64
	TotalQuizzesTaken       int
	AverageQuizScore        float64
	DeltaWPMVsPrevious      float64
	DeltaScoreVsPrevious    float64
	WPMTrend                string
	ScoreTrend              string
}

// RemoteSessionSummary is one entry of the remote recent-sessions feed.
// It carries a text snippet rather than the full text.
type RemoteSessionSummary struct {
	SessionID          string
	TextSnippet        string
	WordCount          int
	ReadingTimeSeconds int
	WPM                int
	QuizTaken          bool
	QuizScore          int
	AITextDifficulty   string
	AIIdealTimeSeconds int
	Topic              string
	CreatedAt          time.Time
}

// AggregateStats is the remote aggregate feed. It is a cache: replaced
// wholesale on every successful fetch, never partially mutated.
type AggregateStats struct {
	Overall              OverallStats
	RecentSessions       []RemoteSessionSummary
	PersonalizedFeedback string
	FetchedAt            time.Time
}

// QuestionType distinguishes quiz question kinds.
type QuestionType string

// Question types.
const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionOpenEnded      QuestionType = "open_ended"
)

// QuizQuestion is one question of a comprehension quiz.
type QuizQuestion struct {
	ID            string
	Text          string
	Type          QuestionType
	Options       []string
	CorrectAnswer string
	Explanation   string
}

// QuizAnswer pairs a question with the user's answer.
type QuizAnswer struct {
	QuestionID string
	UserAnswer string
}

// QuestionResult is the per-question outcome of a quiz validation.
type QuestionResult struct {
	QuestionID    string
	Correct       bool
	Feedback      string
	CorrectAnswer string
}

// QuizResult is the outcome of validating a quiz against the remote gateway.
type QuizResult struct {
	SessionID          string
	OverallScore       int
	WPM                int
	ReadingTimeSeconds int
	AIIdealTimeSeconds int
	Results            []QuestionResult
}

// ChartPoint is one labeled value of a chart series.
type ChartPoint struct {
	Label string
	Value float64
}

// TopicCount is one bucket of the topic histogram.
type TopicCount struct {
	Topic string
	Count int
}
