// Package reconcile keeps locally held sessions consistent with the
// remote stats feed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/tuiread/internal/gateway"
	"github.com/verte-zerg/tuiread/internal/identity"
	"github.com/verte-zerg/tuiread/internal/model"
	"github.com/verte-zerg/tuiread/internal/session"
	"github.com/verte-zerg/tuiread/internal/stats"
)

// StatsGateway is the remote feed the engine refreshes from.
type StatsGateway interface {
	FetchStats(ctx context.Context, token string) (model.AggregateStats, error)
}

// Sessions is the slice of the session store the engine reads and
// writes back.
type Sessions interface {
	UserSessions(userID string) []model.Session
	ReplaceUserSessions(userID string, merged []model.Session)
	SetAggregate(userID string, agg *model.AggregateStats)
	Aggregate(userID string) *model.AggregateStats
	Wipe(userID string)
}

// Identity is the credential surface the engine needs.
type Identity interface {
	Authenticated() bool
	UserID() string
	Token() string
	SignOut(reason string)
}

// Engine reconciles the local session set with the remote aggregate
// feed. Like the session store it is single-writer; Refresh is meant to
// be driven from the UI event loop.
type Engine struct {
	gw       StatsGateway
	sessions Sessions
	id       Identity
	inFlight bool
}

// NewEngine constructs a reconciliation engine.
func NewEngine(gw StatsGateway, sessions Sessions, id Identity) *Engine {
	return &Engine{gw: gw, sessions: sessions, id: id}
}

// Refresh fetches the remote aggregate feed, merges its recent-session
// entries with the locally held sessions, and replaces the current
// user's session set and cached aggregate wholesale. A refresh arriving
// while one is in flight is dropped, not queued. Anonymous refreshes are
// no-ops. An authentication failure signs the user out and wipes their
// local data.
func (e *Engine) Refresh(ctx context.Context) error {
	if e.inFlight {
		return nil
	}
	if !e.id.Authenticated() {
		return nil
	}
	e.inFlight = true
	defer func() { e.inFlight = false }()

	userID := e.id.UserID()
	agg, err := e.Fetch(ctx, e.id.Token())
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			e.id.SignOut(identity.ReasonExpired)
			e.sessions.Wipe(userID)
		}
		return err
	}

	e.Apply(userID, agg)
	return nil
}

// Fetch performs only the network round trip of a refresh. It touches no
// resident state, so it is safe to run off the event loop; callers
// capture the credential and user id beforehand and hand the result to
// Apply.
func (e *Engine) Fetch(ctx context.Context, token string) (model.AggregateStats, error) {
	agg, err := e.gw.FetchStats(ctx, token)
	if err != nil {
		return model.AggregateStats{}, fmt.Errorf("failed to refresh stats: %w", err)
	}
	return agg, nil
}

// Apply merges a fetched feed into the named user's session set and
// caches the aggregate. A result that arrives after the user changed is
// dropped rather than written into the wrong account.
func (e *Engine) Apply(userID string, agg model.AggregateStats) {
	if userID == "" || e.id.UserID() != userID {
		return
	}
	merged := Merge(e.sessions.UserSessions(userID), agg.RecentSessions, userID)
	e.sessions.ReplaceUserSessions(userID, merged)
	e.sessions.SetAggregate(userID, &agg)
}

// Summary returns the local trailing-window summary for the current user
// together with the cached remote aggregate, nil when none has been
// fetched. The local summary is the fallback source when the feed is
// unavailable.
func (e *Engine) Summary(days int, now time.Time) (stats.Summary, *model.AggregateStats) {
	userID := e.id.UserID()
	sum := stats.Summarize(e.sessions.UserSessions(userID), days, now)
	return sum, e.sessions.Aggregate(userID)
}

// Merge folds the remote recent-session feed into the locally held
// sessions and returns the user's new session set. The remote feed is
// authoritative for membership: locals absent from it are dropped, and
// an empty feed empties the set. Per entry the fuller text wins, local
// words and filing always survive, and remote metrics replace local ones
// when the server has computed them.
func Merge(local []model.Session, remote []model.RemoteSessionSummary, userID string) []model.Session {
	byID := make(map[string]model.Session, len(local))
	for _, s := range local {
		byID[s.ID] = s
	}

	merged := make([]model.Session, 0, len(remote))
	for _, entry := range remote {
		out := model.Session{
			ID:          entry.SessionID,
			Topic:       entry.Topic,
			Text:        entry.TextSnippet,
			Type:        model.SessionGenerate,
			CreatedAt:   entry.CreatedAt,
			OwnerUserID: userID,
		}
		if prev, ok := byID[entry.SessionID]; ok {
			out.Type = prev.Type
			out.FolderID = prev.FolderID
			if len(prev.Text) >= len(entry.TextSnippet) {
				out.Text = prev.Text
			}
			if len(prev.Words) > 0 {
				out.Words = prev.Words
			}
			if entry.Topic == "" {
				out.Topic = prev.Topic
			}
			if entry.CreatedAt.IsZero() {
				out.CreatedAt = prev.CreatedAt
			}
			out.Title = mergedTitle(entry.Topic, prev.Title, out.CreatedAt)
			if s := summaryStats(entry); s != nil {
				out.Stats = s
			} else {
				out.Stats = prev.Stats
			}
		} else {
			out.Title = mergedTitle(entry.Topic, "", out.CreatedAt)
			out.Stats = summaryStats(entry)
		}
		if len(out.Words) == 0 {
			out.Words = session.Tokenize(out.Text)
		}
		merged = append(merged, out)
	}
	return merged
}

// mergedTitle picks a display title: the remote topic, then the local
// title, then a synthesized one from the creation date.
func mergedTitle(topic, localTitle string, createdAt time.Time) string {
	if topic != "" {
		return topic
	}
	if localTitle != "" {
		return localTitle
	}
	if createdAt.IsZero() {
		return "Reading session"
	}
	return "Reading session (" + createdAt.Local().Format("02 Jan 2006") + ")"
}

// summaryStats derives session stats from a feed entry, nil when the
// server has not computed metrics for it.
func summaryStats(entry model.RemoteSessionSummary) *model.SessionStats {
	if entry.WPM == 0 && !entry.QuizTaken {
		return nil
	}
	return &model.SessionStats{
		WPM:         entry.WPM,
		TotalTimeMs: int64(entry.ReadingTimeSeconds) * 1000,
		IdealTimeMs: int64(entry.AIIdealTimeSeconds) * 1000,
		Score:       entry.QuizScore,
	}
}
