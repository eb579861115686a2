// Package store handles SQLite persistence of the workspace.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/tuiread/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for workspace data.
type Store struct {
	db *sql.DB
}

// Snapshot is the persisted workspace: sessions, their organization, and
// the open windows with their stacking order.
type Snapshot struct {
	Sessions []model.Session
	Folders  []model.Folder
	Projects []model.Project
	Windows  []model.Window
	Focused  string
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			topic TEXT NOT NULL,
			text TEXT NOT NULL,
			words TEXT NOT NULL,
			folder_id TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at TEXT NOT NULL,
			owner_user_id TEXT NOT NULL,
			stats TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS folders (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			folder_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS windows (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			stack INTEGER NOT NULL,
			payload TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS aggregates (
			user_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS prefs (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot replaces the persisted workspace wholesale in one
// transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	for _, table := range []string{"sessions", "folders", "projects", "windows"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	if err = insertSessions(ctx, tx, snap.Sessions); err != nil {
		return err
	}
	if err = insertFolders(ctx, tx, snap.Folders); err != nil {
		return err
	}
	if err = insertProjects(ctx, tx, snap.Projects); err != nil {
		return err
	}
	if err = insertWindows(ctx, tx, snap.Windows); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO prefs (key, value) VALUES ('focused_window', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, snap.Focused); err != nil {
		return err
	}
	return tx.Commit()
}

func insertSessions(ctx context.Context, tx *sql.Tx, sessions []model.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sessions (id, title, topic, text, words, folder_id, type, created_at, owner_user_id, stats)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for _, sess := range sessions {
		words, err := json.Marshal(sess.Words)
		if err != nil {
			return err
		}
		var stats any
		if sess.Stats != nil {
			encoded, err := json.Marshal(sess.Stats)
			if err != nil {
				return err
			}
			stats = string(encoded)
		}
		if _, err := stmt.ExecContext(ctx,
			sess.ID, sess.Title, sess.Topic, sess.Text, string(words),
			sess.FolderID, string(sess.Type),
			sess.CreatedAt.Format(time.RFC3339Nano), sess.OwnerUserID, stats); err != nil {
			return err
		}
	}
	return nil
}

func insertFolders(ctx context.Context, tx *sql.Tx, folders []model.Folder) error {
	for _, folder := range folders {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO folders (id, name, created_at) VALUES (?, ?, ?)`,
			folder.ID, folder.Name, folder.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	return nil
}

func insertProjects(ctx context.Context, tx *sql.Tx, projects []model.Project) error {
	for _, project := range projects {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name, folder_id, created_at) VALUES (?, ?, ?, ?)`,
			project.ID, project.Name, project.FolderID, project.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	return nil
}

func insertWindows(ctx context.Context, tx *sql.Tx, windows []model.Window) error {
	if len(windows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO windows (id, kind, x, y, width, height, stack, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for i, win := range windows {
		var payload any
		if win.Payload != nil {
			encoded, err := json.Marshal(win.Payload)
			if err != nil {
				return err
			}
			payload = string(encoded)
		}
		if _, err := stmt.ExecContext(ctx,
			win.ID, string(win.Type),
			win.Position.X, win.Position.Y, win.Position.Width, win.Position.Height,
			i, payload); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot reads the persisted workspace back.
func (s *Store) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Sessions, err = s.loadSessions(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Folders, err = s.loadFolders(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Projects, err = s.loadProjects(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Windows, err = s.loadWindows(ctx); err != nil {
		return Snapshot{}, err
	}
	snap.Focused, err = s.GetPref(ctx, "focused_window")
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) loadSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, topic, text, words, folder_id, type, created_at, owner_user_id, stats
		 FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		var words, createdAt, kind string
		var stats sql.NullString
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Topic, &sess.Text, &words,
			&sess.FolderID, &kind, &createdAt, &sess.OwnerUserID, &stats); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(words), &sess.Words); err != nil {
			return nil, err
		}
		sess.Type = model.SessionType(kind)
		if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		if stats.Valid {
			sess.Stats = &model.SessionStats{}
			if err := json.Unmarshal([]byte(stats.String), sess.Stats); err != nil {
				return nil, err
			}
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) loadFolders(ctx context.Context) ([]model.Folder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM folders ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var folders []model.Folder
	for rows.Next() {
		var folder model.Folder
		var createdAt string
		if err := rows.Scan(&folder.ID, &folder.Name, &createdAt); err != nil {
			return nil, err
		}
		if folder.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	return folders, rows.Err()
}

func (s *Store) loadProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, folder_id, created_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var projects []model.Project
	for rows.Next() {
		var project model.Project
		var createdAt string
		if err := rows.Scan(&project.ID, &project.Name, &project.FolderID, &createdAt); err != nil {
			return nil, err
		}
		if project.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (s *Store) loadWindows(ctx context.Context) ([]model.Window, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, x, y, width, height, payload FROM windows ORDER BY stack ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var windows []model.Window
	for rows.Next() {
		var win model.Window
		var kind string
		var payload sql.NullString
		if err := rows.Scan(&win.ID, &kind,
			&win.Position.X, &win.Position.Y, &win.Position.Width, &win.Position.Height,
			&payload); err != nil {
			return nil, err
		}
		win.Type = model.WindowType(kind)
		if payload.Valid {
			decoded, err := decodePayload(win.Type, []byte(payload.String))
			if err != nil {
				return nil, err
			}
			win.Payload = decoded
		}
		windows = append(windows, win)
	}
	return windows, rows.Err()
}

// decodePayload rebuilds the concrete payload type from its window
// kind discriminator.
func decodePayload(kind model.WindowType, data []byte) (model.Payload, error) {
	switch kind {
	case model.WindowTopic:
		var p model.TopicPayload
		return p, json.Unmarshal(data, &p)
	case model.WindowReader:
		var p model.ReaderPayload
		return p, json.Unmarshal(data, &p)
	case model.WindowQuiz:
		var p model.QuizPayload
		return p, json.Unmarshal(data, &p)
	case model.WindowStats:
		var p model.StatsPayload
		return p, json.Unmarshal(data, &p)
	case model.WindowAssistant:
		var p model.AssistantPayload
		return p, json.Unmarshal(data, &p)
	case model.WindowParagraph:
		var p model.ParagraphPayload
		return p, json.Unmarshal(data, &p)
	default:
		return nil, fmt.Errorf("unknown window kind %q", kind)
	}
}

// SaveAggregate stores a user's cached aggregate feed.
func (s *Store) SaveAggregate(ctx context.Context, userID string, agg *model.AggregateStats) error {
	if agg == nil {
		_, err := s.db.ExecContext(ctx, `DELETE FROM aggregates WHERE user_id = ?`, userID)
		return err
	}
	encoded, err := json.Marshal(agg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO aggregates (user_id, payload) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload`,
		userID, string(encoded))
	return err
}

// LoadAggregate reads a user's cached aggregate feed, nil when none was
// stored.
func (s *Store) LoadAggregate(ctx context.Context, userID string) (*model.AggregateStats, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM aggregates WHERE user_id = ?`, userID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	agg := &model.AggregateStats{}
	if err := json.Unmarshal([]byte(payload), agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// SetPref stores a key-value preference.
func (s *Store) SetPref(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prefs (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetPref reads a preference, empty when unset.
func (s *Store) GetPref(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
