// Package session owns the set of reading sessions and their organization.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuiread/internal/gateway"
	"github.com/verte-zerg/tuiread/internal/model"
	"github.com/verte-zerg/tuiread/internal/workspace"
)

// Validation failures, reported before any network call.
var (
	ErrEmptyTopic      = errors.New("topic must not be empty")
	ErrEmptyText       = errors.New("text must not be empty")
	ErrSessionNotFound = errors.New("session not found")
)

// customTopicSentinel marks custom text routed through the generate
// endpoint when the deployment persists custom sessions remotely.
const customTopicSentinel = "custom: "

// Gateway is the remote collaborator surface the store needs.
type Gateway interface {
	CreateSession(ctx context.Context, token, topic string) (gateway.RemoteSession, error)
	FetchSession(ctx context.Context, token, id string) (gateway.RemoteSession, error)
	DeleteSession(ctx context.Context, token, id string) error
}

// Store is the single-writer in-memory session store. All mutations are
// synchronous; network calls happen only in Create, Delete, and
// LoadIntoWorkspace, which suspend the calling operation only.
type Store struct {
	gw      Gateway
	windows *workspace.Manager

	sessions      []model.Session
	folders       []model.Folder
	projects      []model.Project
	activeSession string

	aggregates map[string]*model.AggregateStats
	seqs       map[string]uint64

	customViaGateway bool
	readerWPM        int
	onAuthFailure    func()
}

// Option configures a Store.
type Option func(*Store)

// WithCustomViaGateway routes custom text through the remote create
// endpoint using a sentinel topic marker, adopting the remote id.
func WithCustomViaGateway() Option {
	return func(s *Store) { s.customViaGateway = true }
}

// WithAuthFailureHook installs a callback invoked when a gateway call
// fails authentication. The hook is expected to drive the identity
// context's sign-out path.
func WithAuthFailureHook(fn func()) Option {
	return func(s *Store) { s.onAuthFailure = fn }
}

// WithReaderWPM sets the playback speed reader windows open at.
func WithReaderWPM(wpm int) Option {
	return func(s *Store) {
		if wpm > 0 {
			s.readerWPM = wpm
		}
	}
}

// NewStore constructs a session store backed by the given gateway and
// window manager.
func NewStore(gw Gateway, windows *workspace.Manager, opts ...Option) *Store {
	s := &Store{
		gw:         gw,
		windows:    windows,
		aggregates: map[string]*model.AggregateStats{},
		seqs:       map[string]uint64{},
		readerWPM:  model.DefaultReaderWPM,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokenize splits text into words on runs of whitespace, discarding
// empty tokens.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Draft is the user-provided part of a new session.
type Draft struct {
	Title    string
	Topic    string
	Text     string
	FolderID string
	Type     model.SessionType
}

// Create materializes a new session. Generate drafts call the remote
// gateway and adopt its id; on failure no local session is created and
// the error propagates (authentication failures are detectable with
// errors.Is(err, gateway.ErrUnauthorized)). Custom drafts are tokenized
// locally unless the store routes them through the gateway.
//
// Callers that must not block between store mutations run the three
// phases separately: ValidateDraft, then CreateRemote off-turn, then
// Adopt once the result is back.
func (s *Store) Create(ctx context.Context, draft Draft, credential, ownerUserID string) (string, error) {
	if err := s.ValidateDraft(draft); err != nil {
		return "", err
	}
	created, used, err := s.CreateRemote(ctx, draft, credential)
	if err != nil {
		s.noteAuthFailure(err)
		return "", err
	}
	var remote *gateway.RemoteSession
	if used {
		remote = &created
	}
	return s.Adopt(draft, remote, ownerUserID), nil
}

// ValidateDraft rejects empty input before any network call.
func (s *Store) ValidateDraft(draft Draft) error {
	if draft.Type == model.SessionGenerate {
		if strings.TrimSpace(draft.Topic) == "" {
			return ErrEmptyTopic
		}
		return nil
	}
	if strings.TrimSpace(draft.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// CreateRemote performs only the network round trip for a draft. It
// touches no resident state, so it is safe to run off the event loop.
// Reports whether a remote record was materialized at all; local-only
// custom drafts skip the call entirely.
func (s *Store) CreateRemote(ctx context.Context, draft Draft, credential string) (gateway.RemoteSession, bool, error) {
	if draft.Type != model.SessionGenerate && !s.customViaGateway {
		return gateway.RemoteSession{}, false, nil
	}
	topic := draft.Topic
	if draft.Type == model.SessionCustom {
		topic = customTopicSentinel + draft.Text
	}
	created, err := s.gw.CreateSession(ctx, credential, topic)
	if err != nil {
		return gateway.RemoteSession{}, true, fmt.Errorf("failed to create session: %w", err)
	}
	return created, true, nil
}

// Adopt folds a draft and its optional remote record into a resident
// session, prepends it, and marks it active. Synchronous mutation only.
func (s *Store) Adopt(draft Draft, remote *gateway.RemoteSession, ownerUserID string) string {
	session := model.Session{
		Title:       draft.Title,
		Topic:       draft.Topic,
		Text:        draft.Text,
		FolderID:    draft.FolderID,
		Type:        draft.Type,
		CreatedAt:   time.Now(),
		OwnerUserID: ownerUserID,
	}

	if remote != nil {
		session.ID = remote.ID
		if remote.Text != "" {
			session.Text = remote.Text
		}
		session.Words = remote.Words
		if !remote.CreatedAt.IsZero() {
			session.CreatedAt = remote.CreatedAt
		}
	} else {
		session.ID = uuid.NewString()
	}

	if len(session.Words) == 0 {
		session.Words = Tokenize(session.Text)
	}
	if session.Title == "" {
		session.Title = session.Topic
	}

	s.sessions = append([]model.Session{session}, s.sessions...)
	s.activeSession = session.ID
	return session.ID
}

// UpdateStats replaces the stats of the matching session. It is the merge
// point where a freshly completed quiz's score becomes visible without
// waiting for the next aggregate refresh. Unknown ids are no-ops.
func (s *Store) UpdateStats(id string, stats model.SessionStats) {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			copied := stats
			s.sessions[i].Stats = &copied
			return
		}
	}
}

// Rename updates a session's title. Unknown ids are no-ops.
func (s *Store) Rename(id, title string) {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			s.sessions[i].Title = title
			return
		}
	}
}

// MoveToFolder refiles a session. An empty folder id unfiles it.
func (s *Store) MoveToFolder(id, folderID string) {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			s.sessions[i].FolderID = folderID
			return
		}
	}
}

// Delete removes a session, remote record first. The local record is
// removed only after the remote call succeeds; on failure the session
// stays and the error propagates. The DeletePlan/DeleteRemote/Forget
// phases are exposed for callers that run the network step off-turn.
func (s *Store) Delete(ctx context.Context, id, credential string) error {
	remote, found := s.DeletePlan(id)
	if !found {
		return nil
	}
	if remote {
		if err := s.DeleteRemote(ctx, id, credential); err != nil {
			s.noteAuthFailure(err)
			return err
		}
	}
	s.Forget(id)
	return nil
}

// DeletePlan reports whether the session exists and whether an
// authoritative remote record must be removed before the local one.
func (s *Store) DeletePlan(id string) (remote, found bool) {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return s.remoteBacked(s.sessions[i]), true
		}
	}
	return false, false
}

// DeleteRemote removes only the remote record. It touches no resident
// state, so it is safe to run off the event loop.
func (s *Store) DeleteRemote(ctx context.Context, id, credential string) error {
	if err := s.gw.DeleteSession(ctx, credential, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Forget drops the local record, clearing the active marker when it
// pointed there. Unknown ids are no-ops.
func (s *Store) Forget(id string) {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			if s.activeSession == id {
				s.activeSession = ""
			}
			return
		}
	}
}

// remoteBacked reports whether a session has an authoritative remote
// record that delete must cascade to.
func (s *Store) remoteBacked(session model.Session) bool {
	return session.Type == model.SessionGenerate || s.customViaGateway
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (model.Session, bool) {
	for _, session := range s.sessions {
		if session.ID == id {
			return session, true
		}
	}
	return model.Session{}, false
}

// Sessions returns a copy of every resident session, all users included.
func (s *Store) Sessions() []model.Session {
	out := make([]model.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// UserSessions returns the sessions owned by the given user.
func (s *Store) UserSessions(userID string) []model.Session {
	if userID == "" {
		return nil
	}
	var out []model.Session
	for _, session := range s.sessions {
		if session.OwnerUserID == userID {
			out = append(out, session)
		}
	}
	return out
}

// ReplaceUserSessions swaps the given user's slice of the store for the
// merged set, sorted by creation time descending. Sessions owned by other
// users are preserved untouched.
func (s *Store) ReplaceUserSessions(userID string, merged []model.Session) {
	if userID == "" {
		return
	}
	others := make([]model.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.OwnerUserID != userID {
			others = append(others, session)
		}
	}
	owned := make([]model.Session, len(merged))
	copy(owned, merged)
	for i := range owned {
		owned[i].OwnerUserID = userID
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	s.sessions = append(owned, others...)
	if s.activeSession != "" {
		if _, ok := s.Get(s.activeSession); !ok {
			s.activeSession = ""
		}
	}
}

// ActiveSession returns the active session id, empty when none.
func (s *Store) ActiveSession() string {
	return s.activeSession
}

// SetActiveSession marks a session active. Unknown ids clear it.
func (s *Store) SetActiveSession(id string) {
	if _, ok := s.Get(id); ok {
		s.activeSession = id
		return
	}
	s.activeSession = ""
}

// SetAggregate replaces the cached aggregate feed for a user wholesale.
func (s *Store) SetAggregate(userID string, agg *model.AggregateStats) {
	if userID == "" {
		return
	}
	s.aggregates[userID] = agg
}

// Aggregate returns the cached aggregate feed for a user, nil when the
// feed has not been fetched.
func (s *Store) Aggregate(userID string) *model.AggregateStats {
	return s.aggregates[userID]
}

// Wipe clears the given user's sessions, cached stats, and all windows.
// Folders and projects are organizational structure and survive.
func (s *Store) Wipe(userID string) {
	kept := s.sessions[:0]
	for _, session := range s.sessions {
		if session.OwnerUserID != userID {
			kept = append(kept, session)
		}
	}
	s.sessions = kept
	delete(s.aggregates, userID)
	s.activeSession = ""
	s.windows.Clear()
}

// Restore replaces the resident data wholesale from a persisted
// snapshot, used at startup.
func (s *Store) Restore(sessions []model.Session, folders []model.Folder, projects []model.Project) {
	s.sessions = make([]model.Session, len(sessions))
	copy(s.sessions, sessions)
	s.folders = make([]model.Folder, len(folders))
	copy(s.folders, folders)
	s.projects = make([]model.Project, len(projects))
	copy(s.projects, projects)
	s.activeSession = ""
}

// Begin registers the start of an asynchronous operation against a
// session and returns its sequence number. A completion applies only if
// its sequence number is still the latest issued for that id.
func (s *Store) Begin(id string) uint64 {
	s.seqs[id]++
	return s.seqs[id]
}

// Latest reports whether seq is the most recently issued for the id.
func (s *Store) Latest(id string, seq uint64) bool {
	return s.seqs[id] == seq
}

// UpdateStatsSeq applies stats only when the sequence number is still
// the latest for the session; stale completions are discarded. Reports
// whether the update was applied.
func (s *Store) UpdateStatsSeq(id string, stats model.SessionStats, seq uint64) bool {
	if !s.Latest(id, seq) {
		return false
	}
	s.UpdateStats(id, stats)
	return true
}

func (s *Store) noteAuthFailure(err error) {
	if s.onAuthFailure != nil && errors.Is(err, gateway.ErrUnauthorized) {
		s.onAuthFailure()
	}
}
