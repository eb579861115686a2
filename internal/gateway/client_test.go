package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateSessionDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/rsvp" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("missing bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"id":"abc","text":"alpha beta","words":["alpha","beta"],"topic":"Science","created_at":"2026-08-01T10:00:00Z"}`)); err != nil {
			t.Fatalf("write response: %v", err)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	session, err := c.CreateSession(context.Background(), "tok", "Science")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID != "abc" || session.Text != "alpha beta" || len(session.Words) != 2 {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.CreatedAt.IsZero() {
		t.Fatalf("created_at not parsed")
	}
}

func TestUnauthorizedClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		isAuth bool
	}{
		{"http 401", http.StatusUnauthorized, `{"detail":"Invalid token"}`, true},
		{"expired marker", http.StatusForbidden, `{"detail":"Token expired"}`, true},
		{"server error", http.StatusInternalServerError, `{"detail":"boom"}`, false},
		{"plain failure", http.StatusBadGateway, ``, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				if tc.body != "" {
					if _, err := w.Write([]byte(tc.body)); err != nil {
						t.Fatalf("write response: %v", err)
					}
				}
			}))
			defer srv.Close()

			c := NewClient(srv.URL)
			_, err := c.FetchStats(context.Background(), "tok")
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := errors.Is(err, ErrUnauthorized); got != tc.isAuth {
				t.Fatalf("auth classification = %v, want %v (err: %v)", got, tc.isAuth, err)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if statusErr.Status != tc.status {
				t.Fatalf("status = %d, want %d", statusErr.Status, tc.status)
			}
		})
	}
}

func TestDeleteSessionPropagatesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.DeleteSession(context.Background(), "tok", "abc"); err == nil {
		t.Fatalf("expected delete failure to propagate")
	}
}

func TestFetchStatsMapsFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		payload := `{
			"user_id": "u1",
			"overall_stats": {
				"total_sessions_read": 4,
				"total_reading_time_seconds": 600,
				"average_wpm": 310.5,
				"average_quiz_score": 82,
				"delta_wpm_vs_previous": 5,
				"comprehension_trend": "up"
			},
			"recent_sessions_stats": [
				{"session_id": "s1", "text_snippet": "alpha...", "word_count": 120, "wpm": 300, "quiz_taken": true, "quiz_score": 80, "topic": "Science", "created_at": "2026-08-02T09:00:00Z"}
			],
			"personalized_feedback": "keep going"
		}`
		if _, err := w.Write([]byte(payload)); err != nil {
			t.Fatalf("write response: %v", err)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	agg, err := c.FetchStats(context.Background(), "tok")
	if err != nil {
		t.Fatalf("fetch stats: %v", err)
	}
	if agg.Overall.TotalSessions != 4 || agg.Overall.AverageWPM != 310.5 {
		t.Fatalf("overall stats wrong: %+v", agg.Overall)
	}
	if agg.Overall.ScoreTrend != "up" {
		t.Fatalf("trend not mapped: %+v", agg.Overall)
	}
	if len(agg.RecentSessions) != 1 || agg.RecentSessions[0].SessionID != "s1" {
		t.Fatalf("recent sessions wrong: %+v", agg.RecentSessions)
	}
	if agg.PersonalizedFeedback != "keep going" {
		t.Fatalf("feedback not mapped")
	}
	if agg.FetchedAt.IsZero() {
		t.Fatalf("fetched_at not stamped")
	}
}
