package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/tuiread/internal/gateway"
	"github.com/verte-zerg/tuiread/internal/identity"
	"github.com/verte-zerg/tuiread/internal/model"
	"github.com/verte-zerg/tuiread/internal/session"
	"github.com/verte-zerg/tuiread/internal/workspace"
)

type fakeFeed struct {
	fetch func(ctx context.Context, token string) (model.AggregateStats, error)
	calls int
}

func (f *fakeFeed) FetchStats(ctx context.Context, token string) (model.AggregateStats, error) {
	f.calls++
	return f.fetch(ctx, token)
}

func newTestEngine(feed *fakeFeed) (*Engine, *session.Store, *identity.Context) {
	store := session.NewStore(nil, workspace.NewManager())
	id := identity.NewContext()
	id.SignIn("u1", "tok")
	return NewEngine(feed, store, id), store, id
}

func TestMergePrefersFullerText(t *testing.T) {
	local := []model.Session{
		{ID: "a", Text: "the full original text of the session", Words: []string{"the", "full"}},
		{ID: "b", Text: "short"},
	}
	remote := []model.RemoteSessionSummary{
		{SessionID: "a", TextSnippet: "the full orig..."},
		{SessionID: "b", TextSnippet: "a much longer snippet than the local copy"},
	}

	merged := Merge(local, remote, "u1")
	if len(merged) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(merged))
	}
	if merged[0].Text != "the full original text of the session" {
		t.Fatalf("longer local text must win: %q", merged[0].Text)
	}
	if len(merged[0].Words) != 2 {
		t.Fatalf("local words must always survive: %v", merged[0].Words)
	}
	if merged[1].Text != "a much longer snippet than the local copy" {
		t.Fatalf("fuller snippet must replace a stub: %q", merged[1].Text)
	}
	if len(merged[1].Words) == 0 {
		t.Fatalf("words must be tokenized when the local copy had none")
	}
}

func TestMergeFeedIsAuthoritativeForMembership(t *testing.T) {
	local := []model.Session{{ID: "gone", Text: "was deleted elsewhere"}}
	remote := []model.RemoteSessionSummary{{SessionID: "new", TextSnippet: "fresh"}}

	merged := Merge(local, remote, "u1")
	if len(merged) != 1 || merged[0].ID != "new" {
		t.Fatalf("locals absent from the feed must be dropped: %+v", merged)
	}

	if got := Merge(local, nil, "u1"); len(got) != 0 {
		t.Fatalf("an empty feed must empty the set, got %+v", got)
	}
}

func TestMergeTitlePrecedence(t *testing.T) {
	created := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	local := []model.Session{{ID: "a", Title: "My notes"}}

	tests := []struct {
		name  string
		entry model.RemoteSessionSummary
		want  string
	}{
		{"topic wins", model.RemoteSessionSummary{SessionID: "a", Topic: "Quantum"}, "Quantum"},
		{"local title next", model.RemoteSessionSummary{SessionID: "a"}, "My notes"},
		{"synthesized last", model.RemoteSessionSummary{SessionID: "x", CreatedAt: created},
			"Reading session (" + created.Local().Format("02 Jan 2006") + ")"},
	}
	for _, tt := range tests {
		merged := Merge(local, []model.RemoteSessionSummary{tt.entry}, "u1")
		if merged[0].Title != tt.want {
			t.Fatalf("%s: title = %q, want %q", tt.name, merged[0].Title, tt.want)
		}
	}
}

func TestMergeKeepsFilingAndAdoptsMetrics(t *testing.T) {
	local := []model.Session{{ID: "a", FolderID: "f1", Type: model.SessionCustom}}
	remote := []model.RemoteSessionSummary{{
		SessionID:          "a",
		WPM:                320,
		ReadingTimeSeconds: 45,
		QuizTaken:          true,
		QuizScore:          80,
	}}

	merged := Merge(local, remote, "u1")
	got := merged[0]
	if got.FolderID != "f1" {
		t.Fatalf("folder assignment must survive: %q", got.FolderID)
	}
	if got.Type != model.SessionCustom {
		t.Fatalf("session type must survive: %q", got.Type)
	}
	if got.Stats == nil || got.Stats.WPM != 320 || got.Stats.Score != 80 || got.Stats.TotalTimeMs != 45000 {
		t.Fatalf("remote metrics not adopted: %+v", got.Stats)
	}
	if got.OwnerUserID != "u1" {
		t.Fatalf("owner must be forced to the current user: %q", got.OwnerUserID)
	}
}

func TestMergeKeepsLocalStatsWhenFeedHasNone(t *testing.T) {
	local := []model.Session{{ID: "a", Stats: &model.SessionStats{WPM: 250}}}
	remote := []model.RemoteSessionSummary{{SessionID: "a"}}

	merged := Merge(local, remote, "u1")
	if merged[0].Stats == nil || merged[0].Stats.WPM != 250 {
		t.Fatalf("local stats must survive an uncomputed feed entry: %+v", merged[0].Stats)
	}
}

func TestRefreshReplacesSetAndAggregate(t *testing.T) {
	feed := &fakeFeed{fetch: func(ctx context.Context, token string) (model.AggregateStats, error) {
		if token != "tok" {
			t.Fatalf("token = %q", token)
		}
		return model.AggregateStats{
			Overall:        model.OverallStats{AverageWPM: 310},
			RecentSessions: []model.RemoteSessionSummary{{SessionID: "r1", TextSnippet: "remote one"}},
		}, nil
	}}
	engine, store, _ := newTestEngine(feed)
	store.ReplaceUserSessions("u1", []model.Session{{ID: "stale"}})

	if err := engine.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	sessions := store.UserSessions("u1")
	if len(sessions) != 1 || sessions[0].ID != "r1" {
		t.Fatalf("session set not replaced: %+v", sessions)
	}
	agg := store.Aggregate("u1")
	if agg == nil || agg.Overall.AverageWPM != 310 {
		t.Fatalf("aggregate not cached: %+v", agg)
	}
}

func TestRefreshDropsReentrantTrigger(t *testing.T) {
	var engine *Engine
	feed := &fakeFeed{}
	feed.fetch = func(ctx context.Context, token string) (model.AggregateStats, error) {
		// A second trigger arriving mid-flight must be dropped, not queued.
		if err := engine.Refresh(ctx); err != nil {
			t.Fatalf("nested Refresh: %v", err)
		}
		return model.AggregateStats{}, nil
	}
	engine, _, _ = newTestEngine(feed)

	if err := engine.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if feed.calls != 1 {
		t.Fatalf("expected a single fetch, saw %d", feed.calls)
	}
}

func TestRefreshAnonymousIsNoop(t *testing.T) {
	feed := &fakeFeed{fetch: func(ctx context.Context, token string) (model.AggregateStats, error) {
		return model.AggregateStats{}, nil
	}}
	engine, _, id := newTestEngine(feed)
	id.SignOut(identity.ReasonManual)

	if err := engine.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if feed.calls != 0 {
		t.Fatalf("anonymous refresh must not fetch")
	}
}

func TestRefreshAuthFailureSignsOutAndWipes(t *testing.T) {
	feed := &fakeFeed{fetch: func(ctx context.Context, token string) (model.AggregateStats, error) {
		return model.AggregateStats{}, &gateway.StatusError{Status: 401, Detail: "Token expired"}
	}}
	engine, store, id := newTestEngine(feed)
	store.ReplaceUserSessions("u1", []model.Session{{ID: "a"}})

	var reason string
	id.OnSignOut(func(r string) { reason = r })

	err := engine.Refresh(context.Background())
	if !errors.Is(err, gateway.ErrUnauthorized) {
		t.Fatalf("expected auth failure to propagate, got %v", err)
	}
	if id.Authenticated() {
		t.Fatalf("auth failure must sign the user out")
	}
	if reason != identity.ReasonExpired {
		t.Fatalf("sign-out reason = %q", reason)
	}
	if len(store.UserSessions("u1")) != 0 {
		t.Fatalf("auth failure must wipe the user's sessions")
	}
}

func TestApplyDropsResultAfterUserChange(t *testing.T) {
	feed := &fakeFeed{fetch: func(ctx context.Context, token string) (model.AggregateStats, error) {
		return model.AggregateStats{
			RecentSessions: []model.RemoteSessionSummary{{SessionID: "a", TextSnippet: "text"}},
		}, nil
	}}
	engine, store, id := newTestEngine(feed)
	store.ReplaceUserSessions("u1", []model.Session{{ID: "a", OwnerUserID: "u1"}})

	agg, err := engine.Fetch(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	id.SignOut(identity.ReasonManual)
	id.SignIn("u2", "tok2")

	engine.Apply("u1", agg)
	if store.Aggregate("u1") != nil {
		t.Fatalf("result landing after a user change must be dropped")
	}
}

func TestFetchLeavesStateUntouched(t *testing.T) {
	feed := &fakeFeed{fetch: func(ctx context.Context, token string) (model.AggregateStats, error) {
		return model.AggregateStats{
			RecentSessions: []model.RemoteSessionSummary{{SessionID: "x", TextSnippet: "snippet"}},
		}, nil
	}}
	engine, store, _ := newTestEngine(feed)

	agg, err := engine.Fetch(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if store.Aggregate("u1") != nil || len(store.UserSessions("u1")) != 0 {
		t.Fatalf("the round trip alone must not touch the store")
	}

	engine.Apply("u1", agg)
	if store.Aggregate("u1") == nil {
		t.Fatalf("aggregate not cached after apply")
	}
	if len(store.UserSessions("u1")) != 1 {
		t.Fatalf("feed entries not merged in: %v", store.UserSessions("u1"))
	}
}
