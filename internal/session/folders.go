package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuiread/internal/model"
)

// AddFolder creates a folder and returns its id.
func (s *Store) AddFolder(name string) string {
	folder := model.Folder{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	s.folders = append(s.folders, folder)
	return folder.ID
}

// RenameFolder updates a folder's name. Unknown ids are no-ops.
func (s *Store) RenameFolder(id, name string) {
	for i := range s.folders {
		if s.folders[i].ID == id {
			s.folders[i].Name = name
			return
		}
	}
}

// DeleteFolder removes a folder. Sessions and projects filed under it
// are kept and become unfiled rather than cascading away.
func (s *Store) DeleteFolder(id string) {
	idx := -1
	for i := range s.folders {
		if s.folders[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.folders = append(s.folders[:idx], s.folders[idx+1:]...)
	for i := range s.sessions {
		if s.sessions[i].FolderID == id {
			s.sessions[i].FolderID = ""
		}
	}
	for i := range s.projects {
		if s.projects[i].FolderID == id {
			s.projects[i].FolderID = ""
		}
	}
}

// Folders returns a copy of all folders.
func (s *Store) Folders() []model.Folder {
	out := make([]model.Folder, len(s.folders))
	copy(out, s.folders)
	return out
}

// AddProject creates a project, optionally filed under a folder, and
// returns its id.
func (s *Store) AddProject(name, folderID string) string {
	project := model.Project{
		ID:        uuid.NewString(),
		Name:      name,
		FolderID:  folderID,
		CreatedAt: time.Now(),
	}
	s.projects = append(s.projects, project)
	return project.ID
}

// RenameProject updates a project's name. Unknown ids are no-ops.
func (s *Store) RenameProject(id, name string) {
	for i := range s.projects {
		if s.projects[i].ID == id {
			s.projects[i].Name = name
			return
		}
	}
}

// DeleteProject removes a project. Unknown ids are no-ops.
func (s *Store) DeleteProject(id string) {
	for i := range s.projects {
		if s.projects[i].ID == id {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			return
		}
	}
}

// Projects returns a copy of all projects.
func (s *Store) Projects() []model.Project {
	out := make([]model.Project, len(s.projects))
	copy(out, s.projects)
	return out
}

// FolderSessions returns the sessions filed under a folder. An empty id
// returns the unfiled sessions.
func (s *Store) FolderSessions(folderID string) []model.Session {
	var out []model.Session
	for _, session := range s.sessions {
		if session.FolderID == folderID {
			out = append(out, session)
		}
	}
	return out
}
