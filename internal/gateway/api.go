package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/verte-zerg/tuiread/internal/model"
)

// User is the gateway's account record.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsActive bool   `json:"is_active"`
}

// Token is a bearer credential issued by the gateway.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RemoteSession is a session record as the gateway returns it. Metric
// fields are nil when the server has not computed them yet.
type RemoteSession struct {
	ID                 string
	Text               string
	Words              []string
	Topic              string
	CreatedAt          time.Time
	WPM                *int
	ReadingTimeSeconds *int
	QuizScore          *int
	AIIdealTimeSeconds *int
	AITextDifficulty   string
}

type remoteSessionBody struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Words              []string `json:"words"`
	Topic              string   `json:"topic,omitempty"`
	CreatedAt          string   `json:"created_at,omitempty"`
	WPM                *int     `json:"wpm,omitempty"`
	ReadingTimeSeconds *int     `json:"reading_time_seconds,omitempty"`
	QuizScore          *int     `json:"quiz_score,omitempty"`
	AIIdealTimeSeconds *int     `json:"ai_estimated_ideal_reading_time_seconds,omitempty"`
	AITextDifficulty   string   `json:"ai_text_difficulty,omitempty"`
}

func (b remoteSessionBody) toSession() RemoteSession {
	return RemoteSession{
		ID:                 b.ID,
		Text:               b.Text,
		Words:              b.Words,
		Topic:              b.Topic,
		CreatedAt:          parseTime(b.CreatedAt),
		WPM:                b.WPM,
		ReadingTimeSeconds: b.ReadingTimeSeconds,
		QuizScore:          b.QuizScore,
		AIIdealTimeSeconds: b.AIIdealTimeSeconds,
		AITextDifficulty:   b.AITextDifficulty,
	}
}

// parseTime tolerates missing or non-RFC3339 timestamps; the zero time
// means "unknown".
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (Token, error) {
	var tok Token
	err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &tok)
	if err != nil {
		return Token{}, fmt.Errorf("login: %w", err)
	}
	return tok, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, email, password, fullName string) (User, error) {
	var user User
	err := c.do(ctx, http.MethodPost, "/auth/register", "", map[string]string{
		"email":     email,
		"password":  password,
		"full_name": fullName,
	}, &user)
	if err != nil {
		return User{}, fmt.Errorf("register: %w", err)
	}
	return user, nil
}

// CurrentUser resolves the account behind a token.
func (c *Client) CurrentUser(ctx context.Context, token string) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &user); err != nil {
		return User{}, fmt.Errorf("current user: %w", err)
	}
	return user, nil
}

// CreateSession materializes reading text for a topic. The returned id
// addresses the session in later fetch/delete calls.
func (c *Client) CreateSession(ctx context.Context, token, topic string) (RemoteSession, error) {
	var body remoteSessionBody
	err := c.do(ctx, http.MethodPost, "/api/rsvp", token, map[string]string{"topic": topic}, &body)
	if err != nil {
		return RemoteSession{}, fmt.Errorf("create session: %w", err)
	}
	return body.toSession(), nil
}

// FetchSession retrieves a session with its full text and any computed metrics.
func (c *Client) FetchSession(ctx context.Context, token, id string) (RemoteSession, error) {
	var body remoteSessionBody
	err := c.do(ctx, http.MethodGet, "/api/rsvp/"+url.PathEscape(id), token, nil, &body)
	if err != nil {
		return RemoteSession{}, fmt.Errorf("fetch session: %w", err)
	}
	return body.toSession(), nil
}

// DeleteSession removes a session from the gateway.
func (c *Client) DeleteSession(ctx context.Context, token, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/rsvp/"+url.PathEscape(id), token, nil, nil); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

type quizQuestionBody struct {
	ID            string   `json:"id"`
	QuestionText  string   `json:"question_text"`
	QuestionType  string   `json:"question_type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

type quizBody struct {
	SessionID string             `json:"rsvp_session_id"`
	Questions []quizQuestionBody `json:"questions"`
}

// CreateQuiz generates comprehension questions for a session.
func (c *Client) CreateQuiz(ctx context.Context, token, sessionID string) ([]model.QuizQuestion, error) {
	var body quizBody
	err := c.do(ctx, http.MethodPost, "/api/quiz", token, map[string]string{
		"rsvp_session_id": sessionID,
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	questions := make([]model.QuizQuestion, 0, len(body.Questions))
	for _, q := range body.Questions {
		questions = append(questions, model.QuizQuestion{
			ID:            q.ID,
			Text:          q.QuestionText,
			Type:          model.QuestionType(q.QuestionType),
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		})
	}
	return questions, nil
}

type quizAnswerBody struct {
	QuestionID string `json:"question_id"`
	UserAnswer string `json:"user_answer"`
}

type quizValidateRequest struct {
	SessionID          string           `json:"rsvp_session_id"`
	Answers            []quizAnswerBody `json:"answers"`
	ReadingTimeSeconds *int             `json:"reading_time_seconds,omitempty"`
}

type questionResultBody struct {
	QuestionID    string `json:"question_id"`
	IsCorrect     bool   `json:"is_correct"`
	Feedback      string `json:"feedback"`
	CorrectAnswer string `json:"correct_answer"`
}

type quizValidateResponse struct {
	SessionID          string               `json:"rsvp_session_id"`
	OverallScore       int                  `json:"overall_score"`
	WPM                int                  `json:"wpm"`
	ReadingTimeSeconds int                  `json:"reading_time_seconds"`
	AIIdealTimeSeconds int                  `json:"ai_estimated_ideal_reading_time_seconds"`
	Results            []questionResultBody `json:"results"`
}

// ValidateQuiz submits answers for scoring. readingTimeSeconds of zero or
// less is treated as unknown and omitted.
func (c *Client) ValidateQuiz(ctx context.Context, token, sessionID string, answers []model.QuizAnswer, readingTimeSeconds int) (model.QuizResult, error) {
	req := quizValidateRequest{SessionID: sessionID}
	for _, a := range answers {
		req.Answers = append(req.Answers, quizAnswerBody{QuestionID: a.QuestionID, UserAnswer: a.UserAnswer})
	}
	if readingTimeSeconds > 0 {
		req.ReadingTimeSeconds = &readingTimeSeconds
	}
	var body quizValidateResponse
	if err := c.do(ctx, http.MethodPost, "/api/quiz/validate", token, req, &body); err != nil {
		return model.QuizResult{}, fmt.Errorf("validate quiz: %w", err)
	}
	result := model.QuizResult{
		SessionID:          body.SessionID,
		OverallScore:       body.OverallScore,
		WPM:                body.WPM,
		ReadingTimeSeconds: body.ReadingTimeSeconds,
		AIIdealTimeSeconds: body.AIIdealTimeSeconds,
	}
	for _, r := range body.Results {
		result.Results = append(result.Results, model.QuestionResult{
			QuestionID:    r.QuestionID,
			Correct:       r.IsCorrect,
			Feedback:      r.Feedback,
			CorrectAnswer: r.CorrectAnswer,
		})
	}
	return result, nil
}

type overallStatsBody struct {
	TotalSessionsRead       int     `json:"total_sessions_read"`
	TotalReadingTimeSeconds int     `json:"total_reading_time_seconds"`
	TotalWordsRead          int     `json:"total_words_read"`
	AverageWPM              float64 `json:"average_wpm"`
	TotalQuizzesTaken       int     `json:"total_quizzes_taken"`
	AverageQuizScore        float64 `json:"average_quiz_score"`
	DeltaWPMVsPrevious      float64 `json:"delta_wpm_vs_previous"`
	DeltaScoreVsPrevious    float64 `json:"delta_comprehension_vs_previous"`
	WPMTrend                string  `json:"wpm_trend"`
	ScoreTrend              string  `json:"comprehension_trend"`
}

type recentSessionBody struct {
	SessionID          string `json:"session_id"`
	TextSnippet        string `json:"text_snippet"`
	WordCount          int    `json:"word_count"`
	ReadingTimeSeconds int    `json:"reading_time_seconds"`
	WPM                int    `json:"wpm"`
	QuizTaken          bool   `json:"quiz_taken"`
	QuizScore          int    `json:"quiz_score"`
	AITextDifficulty   string `json:"ai_text_difficulty"`
	AIIdealTimeSeconds int    `json:"ai_estimated_ideal_reading_time_seconds"`
	Topic              string `json:"topic,omitempty"`
	CreatedAt          string `json:"created_at"`
}

type statsResponse struct {
	UserID               string              `json:"user_id"`
	Overall              overallStatsBody    `json:"overall_stats"`
	RecentSessions       []recentSessionBody `json:"recent_sessions_stats"`
	PersonalizedFeedback string              `json:"personalized_feedback"`
}

// FetchStats retrieves the aggregate stats feed.
func (c *Client) FetchStats(ctx context.Context, token string) (model.AggregateStats, error) {
	var body statsResponse
	if err := c.do(ctx, http.MethodGet, "/api/stats", token, nil, &body); err != nil {
		return model.AggregateStats{}, fmt.Errorf("fetch stats: %w", err)
	}
	agg := model.AggregateStats{
		Overall: model.OverallStats{
			TotalSessions:           body.Overall.TotalSessionsRead,
			TotalReadingTimeSeconds: body.Overall.TotalReadingTimeSeconds,
			TotalWordsRead:          body.Overall.TotalWordsRead,
			AverageWPM:              body.Overall.AverageWPM,
			TotalQuizzesTaken:       body.Overall.TotalQuizzesTaken,
			AverageQuizScore:        body.Overall.AverageQuizScore,
			DeltaWPMVsPrevious:      body.Overall.DeltaWPMVsPrevious,
			DeltaScoreVsPrevious:    body.Overall.DeltaScoreVsPrevious,
			WPMTrend:                body.Overall.WPMTrend,
			ScoreTrend:              body.Overall.ScoreTrend,
		},
		PersonalizedFeedback: body.PersonalizedFeedback,
		FetchedAt:            time.Now(),
	}
	for _, s := range body.RecentSessions {
		agg.RecentSessions = append(agg.RecentSessions, model.RemoteSessionSummary{
			SessionID:          s.SessionID,
			TextSnippet:        s.TextSnippet,
			WordCount:          s.WordCount,
			ReadingTimeSeconds: s.ReadingTimeSeconds,
			WPM:                s.WPM,
			QuizTaken:          s.QuizTaken,
			QuizScore:          s.QuizScore,
			AITextDifficulty:   s.AITextDifficulty,
			AIIdealTimeSeconds: s.AIIdealTimeSeconds,
			Topic:              s.Topic,
			CreatedAt:          parseTime(s.CreatedAt),
		})
	}
	return agg, nil
}

// AssistantQuery asks the reading assistant a question about a session.
func (c *Client) AssistantQuery(ctx context.Context, token, sessionID, query string) (string, error) {
	var body struct {
		Response string `json:"response"`
	}
	err := c.do(ctx, http.MethodPost, "/api/assistant", token, map[string]string{
		"query":           query,
		"rsvp_session_id": sessionID,
	}, &body)
	if err != nil {
		return "", fmt.Errorf("assistant query: %w", err)
	}
	return body.Response, nil
}
