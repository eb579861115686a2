package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/verte-zerg/tuiread/internal/gateway"
	"github.com/verte-zerg/tuiread/internal/model"
	"github.com/verte-zerg/tuiread/internal/workspace"
)

type fakeGateway struct {
	created   gateway.RemoteSession
	createErr error
	fetched   gateway.RemoteSession
	fetchErr  error
	deleteErr error

	createCalls int
	fetchCalls  int
	deleteCalls int
}

func (f *fakeGateway) CreateSession(ctx context.Context, token, topic string) (gateway.RemoteSession, error) {
	f.createCalls++
	return f.created, f.createErr
}

func (f *fakeGateway) FetchSession(ctx context.Context, token, id string) (gateway.RemoteSession, error) {
	f.fetchCalls++
	return f.fetched, f.fetchErr
}

func (f *fakeGateway) DeleteSession(ctx context.Context, token, id string) error {
	f.deleteCalls++
	return f.deleteErr
}

func newTestStore(gw Gateway, opts ...Option) (*Store, *workspace.Manager) {
	windows := workspace.NewManager()
	return NewStore(gw, windows, opts...), windows
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"alpha beta  gamma", []string{"alpha", "beta", "gamma"}},
		{"  one\ttwo\nthree  ", []string{"one", "two", "three"}},
		{"", nil},
		{"   ", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.text)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestCreateGenerateRejectsBlankTopic(t *testing.T) {
	gw := &fakeGateway{}
	store, _ := newTestStore(gw)

	_, err := store.Create(context.Background(), Draft{Type: model.SessionGenerate, Topic: "   "}, "tok", "u1")
	if !errors.Is(err, ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic, got %v", err)
	}
	if gw.createCalls != 0 {
		t.Fatalf("validation must reject before any network call, saw %d", gw.createCalls)
	}
	if len(store.Sessions()) != 0 {
		t.Fatalf("no session should exist after validation failure")
	}
}

func TestCreateGenerateAdoptsRemoteRecord(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	gw := &fakeGateway{created: gateway.RemoteSession{
		ID:        "srv-1",
		Text:      "the quick brown fox",
		Words:     []string{"the", "quick", "brown", "fox"},
		CreatedAt: created,
	}}
	store, _ := newTestStore(gw)

	id, err := store.Create(context.Background(), Draft{Type: model.SessionGenerate, Topic: "foxes"}, "tok", "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "srv-1" {
		t.Fatalf("expected remote id, got %q", id)
	}
	got, ok := store.Get(id)
	if !ok {
		t.Fatalf("session not stored")
	}
	if got.Text != "the quick brown fox" || len(got.Words) != 4 {
		t.Fatalf("remote text/words not adopted: %+v", got)
	}
	if got.Title != "foxes" {
		t.Fatalf("title should default to topic, got %q", got.Title)
	}
	if got.OwnerUserID != "u1" {
		t.Fatalf("owner not recorded: %q", got.OwnerUserID)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("remote creation time not adopted: %v", got.CreatedAt)
	}
	if store.ActiveSession() != id {
		t.Fatalf("new session should become active")
	}
}

func TestCreateGenerateFailureLeavesNoSession(t *testing.T) {
	gw := &fakeGateway{createErr: &gateway.StatusError{Status: 500, Detail: "boom"}}
	store, _ := newTestStore(gw)

	_, err := store.Create(context.Background(), Draft{Type: model.SessionGenerate, Topic: "foxes"}, "tok", "u1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(store.Sessions()) != 0 {
		t.Fatalf("failed create must not leave a session behind")
	}
}

func TestCreateAuthFailureFiresHook(t *testing.T) {
	gw := &fakeGateway{createErr: &gateway.StatusError{Status: 401, Detail: "Token expired"}}
	fired := false
	store, _ := newTestStore(gw, WithAuthFailureHook(func() { fired = true }))

	_, err := store.Create(context.Background(), Draft{Type: model.SessionGenerate, Topic: "foxes"}, "tok", "u1")
	if !errors.Is(err, gateway.ErrUnauthorized) {
		t.Fatalf("auth failure must stay distinguishable, got %v", err)
	}
	if !fired {
		t.Fatalf("auth failure hook not fired")
	}
}

func TestCreateCustomStaysLocal(t *testing.T) {
	gw := &fakeGateway{}
	store, _ := newTestStore(gw)

	id, err := store.Create(context.Background(), Draft{
		Type:  model.SessionCustom,
		Title: "Pasted article",
		Text:  "alpha beta  gamma",
	}, "tok", "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if gw.createCalls != 0 {
		t.Fatalf("custom session must not hit the gateway by default")
	}
	got, _ := store.Get(id)
	if !reflect.DeepEqual(got.Words, []string{"alpha", "beta", "gamma"}) {
		t.Fatalf("words = %v", got.Words)
	}
	if got.ID == "" {
		t.Fatalf("custom session needs a client-generated id")
	}
}

func TestCreateCustomRejectsBlankText(t *testing.T) {
	store, _ := newTestStore(&fakeGateway{})
	_, err := store.Create(context.Background(), Draft{Type: model.SessionCustom, Text: " \n\t"}, "tok", "u1")
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestCreateCustomViaGateway(t *testing.T) {
	gw := &fakeGateway{created: gateway.RemoteSession{ID: "srv-9"}}
	store, _ := newTestStore(gw, WithCustomViaGateway())

	id, err := store.Create(context.Background(), Draft{Type: model.SessionCustom, Text: "some pasted text"}, "tok", "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if gw.createCalls != 1 {
		t.Fatalf("expected gateway create, saw %d calls", gw.createCalls)
	}
	if id != "srv-9" {
		t.Fatalf("expected remote id, got %q", id)
	}
	got, _ := store.Get(id)
	if got.Text != "some pasted text" {
		t.Fatalf("local text must survive when the gateway echoes none: %q", got.Text)
	}
}

func TestDeleteRemoteFirst(t *testing.T) {
	gw := &fakeGateway{deleteErr: &gateway.StatusError{Status: 502, Detail: "bad gateway"}}
	store, _ := newTestStore(gw)
	store.sessions = []model.Session{{ID: "s1", Type: model.SessionGenerate, OwnerUserID: "u1"}}
	store.activeSession = "s1"

	if err := store.Delete(context.Background(), "s1", "tok"); err == nil {
		t.Fatalf("expected remote failure to propagate")
	}
	if _, ok := store.Get("s1"); !ok {
		t.Fatalf("session must survive a failed remote delete")
	}

	gw.deleteErr = nil
	if err := store.Delete(context.Background(), "s1", "tok"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("session still present after successful delete")
	}
	if store.ActiveSession() != "" {
		t.Fatalf("active session must clear on delete")
	}
}

func TestDeleteLocalOnlySkipsGateway(t *testing.T) {
	gw := &fakeGateway{}
	store, _ := newTestStore(gw)
	store.sessions = []model.Session{{ID: "c1", Type: model.SessionCustom, OwnerUserID: "u1"}}

	if err := store.Delete(context.Background(), "c1", "tok"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gw.deleteCalls != 0 {
		t.Fatalf("local-only session must not cascade to the gateway")
	}
}

func TestUserSessionsScopedToOwner(t *testing.T) {
	store, _ := newTestStore(&fakeGateway{})
	store.sessions = []model.Session{
		{ID: "a", OwnerUserID: "u1"},
		{ID: "b", OwnerUserID: "u2"},
		{ID: "c", OwnerUserID: "u1"},
	}
	got := store.UserSessions("u1")
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("UserSessions(u1) = %+v", got)
	}
	if store.UserSessions("") != nil {
		t.Fatalf("anonymous scope must be empty")
	}
}

func TestReplaceUserSessionsKeepsOthers(t *testing.T) {
	store, _ := newTestStore(&fakeGateway{})
	store.sessions = []model.Session{
		{ID: "mine", OwnerUserID: "u1"},
		{ID: "theirs", OwnerUserID: "u2"},
	}
	merged := []model.Session{
		{ID: "old", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "new", CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	store.ReplaceUserSessions("u1", merged)

	all := store.Sessions()
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	if all[0].ID != "new" || all[1].ID != "old" {
		t.Fatalf("owned sessions not sorted newest first: %v, %v", all[0].ID, all[1].ID)
	}
	if all[0].OwnerUserID != "u1" {
		t.Fatalf("merged sessions must carry the owner")
	}
	if _, ok := store.Get("theirs"); !ok {
		t.Fatalf("other users' sessions must survive a replace")
	}
	if _, ok := store.Get("mine"); ok {
		t.Fatalf("replaced session should be gone")
	}
}

func TestWipePreservesOrganization(t *testing.T) {
	store, windows := newTestStore(&fakeGateway{})
	folderID := store.AddFolder("Science")
	store.AddProject("Biology", folderID)
	store.sessions = []model.Session{
		{ID: "a", OwnerUserID: "u1", FolderID: folderID},
		{ID: "b", OwnerUserID: "u2"},
	}
	store.SetAggregate("u1", &model.AggregateStats{})
	store.activeSession = "a"
	windows.Open(model.WindowReader, nil)

	store.Wipe("u1")

	if _, ok := store.Get("a"); ok {
		t.Fatalf("wiped user's sessions must be gone")
	}
	if _, ok := store.Get("b"); !ok {
		t.Fatalf("other users' sessions must survive a wipe")
	}
	if store.Aggregate("u1") != nil {
		t.Fatalf("cached aggregate must be wiped")
	}
	if len(store.Folders()) != 1 || len(store.Projects()) != 1 {
		t.Fatalf("folders and projects must survive a wipe")
	}
	if len(windows.Windows()) != 0 {
		t.Fatalf("windows must close on wipe")
	}
	if store.ActiveSession() != "" {
		t.Fatalf("active session must clear on wipe")
	}
}

func TestDeleteFolderUnfilesContents(t *testing.T) {
	store, _ := newTestStore(&fakeGateway{})
	folderID := store.AddFolder("Science")
	projectID := store.AddProject("Biology", folderID)
	store.sessions = []model.Session{{ID: "a", OwnerUserID: "u1", FolderID: folderID}}

	store.DeleteFolder(folderID)

	if len(store.Folders()) != 0 {
		t.Fatalf("folder still present")
	}
	got, _ := store.Get("a")
	if got.FolderID != "" {
		t.Fatalf("session must be unfiled, not deleted: %q", got.FolderID)
	}
	projects := store.Projects()
	if len(projects) != 1 || projects[0].ID != projectID || projects[0].FolderID != "" {
		t.Fatalf("project must be unfiled, not deleted: %+v", projects)
	}
}

func TestUpdateStatsVisibleImmediately(t *testing.T) {
	store, _ := newTestStore(&fakeGateway{})
	store.sessions = []model.Session{{ID: "s1", OwnerUserID: "u1"}}

	store.UpdateStats("s1", model.SessionStats{WPM: 250, Score: 80})

	got, ok := store.Get("s1")
	if !ok || got.Stats == nil {
		t.Fatalf("stats missing after update: %+v", got)
	}
	if got.Stats.Score != 80 || got.Stats.WPM != 250 {
		t.Fatalf("stats = %+v", got.Stats)
	}
}

func TestStaleCompletionDiscarded(t *testing.T) {
	store, _ := newTestStore(&fakeGateway{})
	store.sessions = []model.Session{{ID: "s1", OwnerUserID: "u1"}}

	first := store.Begin("s1")
	second := store.Begin("s1")

	if store.UpdateStatsSeq("s1", model.SessionStats{WPM: 100}, first) {
		t.Fatalf("stale completion must be discarded")
	}
	if got, _ := store.Get("s1"); got.Stats != nil {
		t.Fatalf("stale stats applied: %+v", got.Stats)
	}
	if !store.UpdateStatsSeq("s1", model.SessionStats{WPM: 250}, second) {
		t.Fatalf("latest completion must apply")
	}
	got, _ := store.Get("s1")
	if got.Stats == nil || got.Stats.WPM != 250 {
		t.Fatalf("stats = %+v", got.Stats)
	}
}

func TestLoadIntoWorkspaceRebuildsWindows(t *testing.T) {
	gw := &fakeGateway{fetched: gateway.RemoteSession{
		ID:   "s1",
		Text: "remote text wins",
		WPM:  intPtr(280),
	}}
	store, windows := newTestStore(gw)
	store.sessions = []model.Session{{
		ID:          "s1",
		Title:       "My title",
		Text:        "stale local text",
		Words:       []string{"stale"},
		Type:        model.SessionGenerate,
		OwnerUserID: "u1",
	}}
	windows.Open(model.WindowTopic, nil)

	if err := store.LoadIntoWorkspace(context.Background(), "s1", "tok"); err != nil {
		t.Fatalf("LoadIntoWorkspace: %v", err)
	}
	if gw.fetchCalls != 1 {
		t.Fatalf("expected one fetch, saw %d", gw.fetchCalls)
	}
	got, _ := store.Get("s1")
	if got.Text != "remote text wins" {
		t.Fatalf("fetched text not applied: %q", got.Text)
	}
	if got.Title != "My title" {
		t.Fatalf("local title must survive the fetch: %q", got.Title)
	}

	all := windows.Windows()
	if len(all) != 2 {
		t.Fatalf("expected reader and stats windows, got %d", len(all))
	}
	if all[0].Type != model.WindowReader || all[1].Type != model.WindowStats {
		t.Fatalf("window types = %v, %v", all[0].Type, all[1].Type)
	}
	reader := all[0].Payload.(model.ReaderPayload)
	if reader.SessionID != "s1" || reader.Text != "remote text wins" {
		t.Fatalf("reader payload = %+v", reader)
	}
	if store.ActiveSession() != "s1" {
		t.Fatalf("loaded session should become active")
	}
}

func TestLoadIntoWorkspaceOfflineSkipsFetch(t *testing.T) {
	gw := &fakeGateway{}
	store, windows := newTestStore(gw)
	store.sessions = []model.Session{{
		ID:   "s1",
		Text: "local text",
		Type: model.SessionGenerate,
	}}

	if err := store.LoadIntoWorkspace(context.Background(), "s1", ""); err != nil {
		t.Fatalf("LoadIntoWorkspace: %v", err)
	}
	if gw.fetchCalls != 0 {
		t.Fatalf("offline load must not fetch")
	}
	if len(windows.Windows()) != 1 {
		t.Fatalf("expected a single reader window")
	}
}

func TestLoadIntoWorkspaceUnknownIDIsNoop(t *testing.T) {
	store, windows := newTestStore(&fakeGateway{})
	if err := store.LoadIntoWorkspace(context.Background(), "missing", "tok"); err != nil {
		t.Fatalf("LoadIntoWorkspace: %v", err)
	}
	if len(windows.Windows()) != 0 {
		t.Fatalf("unknown id must not touch the workspace")
	}
}

func intPtr(v int) *int { return &v }

func TestCreateRemotePhaseLeavesStoreUntouched(t *testing.T) {
	gw := &fakeGateway{created: gateway.RemoteSession{ID: "srv-9", Text: "alpha beta"}}
	store, _ := newTestStore(gw)
	draft := Draft{Type: model.SessionGenerate, Topic: "foxes"}

	remote, used, err := store.CreateRemote(context.Background(), draft, "tok")
	if err != nil {
		t.Fatalf("CreateRemote: %v", err)
	}
	if !used {
		t.Fatalf("generate drafts always go through the gateway")
	}
	if len(store.Sessions()) != 0 || store.ActiveSession() != "" {
		t.Fatalf("the round trip alone must not touch the store")
	}

	id := store.Adopt(draft, &remote, "u1")
	if id != "srv-9" {
		t.Fatalf("id = %q", id)
	}
	if store.ActiveSession() != "srv-9" {
		t.Fatalf("adopted session should become active")
	}
}

func TestApplyLoadDropsStaleFetch(t *testing.T) {
	store, windows := newTestStore(&fakeGateway{})
	store.sessions = []model.Session{{
		ID:          "s1",
		Text:        "fresh local text",
		Type:        model.SessionGenerate,
		OwnerUserID: "u1",
	}}

	plan := store.StartLoad("s1", "tok")
	if !plan.Found || !plan.Fetch {
		t.Fatalf("plan = %+v", plan)
	}
	store.Begin("s1") // a newer operation supersedes the fetch

	store.ApplyLoad("s1", &gateway.RemoteSession{ID: "s1", Text: "stale remote text"}, plan.Seq)

	got, _ := store.Get("s1")
	if got.Text != "fresh local text" {
		t.Fatalf("superseded fetch applied: %q", got.Text)
	}
	if len(windows.Windows()) != 1 {
		t.Fatalf("windows must still rebuild from resident state")
	}
}

func TestReaderOpensAtConfiguredWPM(t *testing.T) {
	store, windows := newTestStore(&fakeGateway{}, WithReaderWPM(420))
	store.sessions = []model.Session{{
		ID:    "s1",
		Text:  "a b",
		Words: []string{"a", "b"},
		Type:  model.SessionCustom,
	}}

	if err := store.LoadIntoWorkspace(context.Background(), "s1", ""); err != nil {
		t.Fatalf("LoadIntoWorkspace: %v", err)
	}
	win, ok := windows.FindByType(model.WindowReader)
	if !ok {
		t.Fatalf("no reader window")
	}
	if got := win.Payload.(model.ReaderPayload).WPM; got != 420 {
		t.Fatalf("reader wpm = %d, want 420", got)
	}
}
