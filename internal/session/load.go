package session

import (
	"context"
	"fmt"

	"github.com/verte-zerg/tuiread/internal/gateway"
	"github.com/verte-zerg/tuiread/internal/model"
)

// LoadIntoWorkspace makes a stored session the active one and rebuilds
// the workspace around it: existing windows are cleared, a reader window
// opens seeded with the session text, and a stats window opens alongside
// when the session already carries results. With a credential present the
// session text and stats are re-fetched first so stale local copies are
// refreshed; local title and folder assignment always survive the fetch.
// Unknown ids are no-ops.
//
// Callers that must not block between store mutations run the phases
// separately: StartLoad, then FetchRemote off-turn when the plan says
// so, then ApplyLoad once the result is back.
func (s *Store) LoadIntoWorkspace(ctx context.Context, id, credential string) error {
	plan := s.StartLoad(id, credential)
	if !plan.Found {
		return nil
	}
	if !plan.Fetch {
		s.ApplyLoad(id, nil, 0)
		return nil
	}
	fetched, err := s.FetchRemote(ctx, id, credential)
	if err != nil {
		s.noteAuthFailure(err)
		return err
	}
	s.ApplyLoad(id, &fetched, plan.Seq)
	return nil
}

// LoadPlan says how a session load proceeds: whether the id resolved,
// whether a remote fetch is needed, and the sequence number guarding it.
type LoadPlan struct {
	Found bool
	Fetch bool
	Seq   uint64
}

// StartLoad resolves the session and, when it is remote-backed and a
// credential is available, issues the sequence number for the fetch.
func (s *Store) StartLoad(id, credential string) LoadPlan {
	sess, ok := s.Get(id)
	if !ok {
		return LoadPlan{}
	}
	if credential == "" || !s.remoteBacked(sess) {
		return LoadPlan{Found: true}
	}
	return LoadPlan{Found: true, Fetch: true, Seq: s.Begin(id)}
}

// FetchRemote re-fetches the session record. It touches no resident
// state, so it is safe to run off the event loop.
func (s *Store) FetchRemote(ctx context.Context, id, credential string) (gateway.RemoteSession, error) {
	fetched, err := s.gw.FetchSession(ctx, credential, id)
	if err != nil {
		return gateway.RemoteSession{}, fmt.Errorf("failed to fetch session: %w", err)
	}
	return fetched, nil
}

// ApplyLoad folds an optional fetched record into the session and
// rebuilds the workspace windows around it. A fetched record whose
// sequence number is no longer the latest is dropped; the windows are
// still rebuilt from the resident state. Unknown ids are no-ops.
func (s *Store) ApplyLoad(id string, remote *gateway.RemoteSession, seq uint64) {
	idx := -1
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	if remote != nil && s.Latest(id, seq) {
		s.applyFetched(idx, *remote)
	}

	session := s.sessions[idx]
	s.activeSession = id

	s.windows.Clear()
	s.windows.Open(model.WindowReader, model.ReaderPayload{
		SessionID: session.ID,
		Text:      session.Text,
		Words:     session.Words,
		WPM:       s.readerWPM,
	})
	if session.Stats != nil {
		s.windows.Open(model.WindowStats, model.StatsPayload{
			SessionID: session.ID,
			Text:      session.Text,
			Score:     session.Stats.Score,
			Stats:     session.Stats,
		})
	}
}

// applyFetched folds a freshly fetched remote record into the resident
// session. Remote text and words win when present; title and folder stay
// local.
func (s *Store) applyFetched(idx int, remote gateway.RemoteSession) {
	local := &s.sessions[idx]
	if remote.Text != "" {
		local.Text = remote.Text
	}
	if len(remote.Words) > 0 {
		local.Words = remote.Words
	} else if len(local.Words) == 0 {
		local.Words = Tokenize(local.Text)
	}
	if remote.Topic != "" && local.Topic == "" {
		local.Topic = remote.Topic
	}
	if stats := RemoteStats(remote); stats != nil {
		local.Stats = stats
	}
	if !remote.CreatedAt.IsZero() {
		local.CreatedAt = remote.CreatedAt
	}
}

// RemoteStats derives session stats from a remote record, nil when the
// server has not computed metrics for it yet.
func RemoteStats(remote gateway.RemoteSession) *model.SessionStats {
	if remote.WPM == nil {
		return nil
	}
	stats := model.SessionStats{WPM: *remote.WPM}
	if remote.ReadingTimeSeconds != nil {
		stats.TotalTimeMs = int64(*remote.ReadingTimeSeconds) * 1000
	}
	if remote.AIIdealTimeSeconds != nil {
		stats.IdealTimeMs = int64(*remote.AIIdealTimeSeconds) * 1000
	}
	if remote.QuizScore != nil {
		stats.Score = *remote.QuizScore
	}
	return &stats
}
