// Package workspace manages the set of floating workspace windows.
package workspace

import (
	"github.com/google/uuid"

	"github.com/verte-zerg/tuiread/internal/model"
)

const (
	cascadeOriginX = 50
	cascadeOriginY = 50
	cascadeStep    = 30
)

// defaultSizes maps each window type to its default geometry.
var defaultSizes = map[model.WindowType]struct{ width, height int }{
	model.WindowTopic:     {500, 400},
	model.WindowReader:    {600, 450},
	model.WindowQuiz:      {650, 550},
	model.WindowStats:     {700, 600},
	model.WindowAssistant: {450, 500},
	model.WindowParagraph: {700, 500},
}

// Manager owns the open windows and their focus. All operations are
// synchronous in-memory updates; operations on unknown ids are no-ops.
type Manager struct {
	windows []model.Window
	focused string
}

// NewManager constructs an empty window manager.
func NewManager() *Manager {
	return &Manager{}
}

// Open creates a window of the given type, stacks it with a cascading
// offset from the current window count, and focuses it. The new window
// id is returned.
func (m *Manager) Open(kind model.WindowType, payload model.Payload) string {
	size, ok := defaultSizes[kind]
	if !ok {
		size = struct{ width, height int }{500, 400}
	}
	if payload != nil && payload.Kind() != kind {
		payload = nil
	}
	offset := len(m.windows) * cascadeStep
	win := model.Window{
		ID:   uuid.NewString(),
		Type: kind,
		Position: model.Geometry{
			X:      cascadeOriginX + offset,
			Y:      cascadeOriginY + offset,
			Width:  size.width,
			Height: size.height,
		},
		Payload: payload,
	}
	m.windows = append(m.windows, win)
	m.focused = win.ID
	return win.ID
}

// Close removes the window. If it was focused, focus becomes none.
func (m *Manager) Close(id string) {
	for i, win := range m.windows {
		if win.ID == id {
			m.windows = append(m.windows[:i], m.windows[i+1:]...)
			if m.focused == id {
				m.focused = ""
			}
			return
		}
	}
}

// UpdateGeometry moves and optionally resizes a window. Width or height
// of zero retains the previous value.
func (m *Manager) UpdateGeometry(id string, x, y, width, height int) {
	for i, win := range m.windows {
		if win.ID != id {
			continue
		}
		pos := win.Position
		pos.X = x
		pos.Y = y
		if width != 0 {
			pos.Width = width
		}
		if height != 0 {
			pos.Height = height
		}
		m.windows[i].Position = pos
		return
	}
}

// MergePayload applies a partial payload update to a window. Fields the
// patch does not mention keep their previous values. A patch whose kind
// does not match the window type is ignored.
func (m *Manager) MergePayload(id string, patch model.Patch) {
	if patch == nil {
		return
	}
	for i, win := range m.windows {
		if win.ID != id {
			continue
		}
		if win.Type != patch.Kind() {
			return
		}
		m.windows[i].Payload = mergePayload(win.Payload, patch)
		return
	}
}

// Focus sets the focused window id. Focusing an unknown id is a no-op.
func (m *Manager) Focus(id string) {
	for _, win := range m.windows {
		if win.ID == id {
			m.focused = id
			return
		}
	}
}

// Focused returns the focused window id, or empty when none is focused.
func (m *Manager) Focused() string {
	return m.focused
}

// Get returns the window with the given id.
func (m *Manager) Get(id string) (model.Window, bool) {
	for _, win := range m.windows {
		if win.ID == id {
			return win, true
		}
	}
	return model.Window{}, false
}

// Windows returns all open windows in creation order. The focused window
// renders above all others; Stacked returns render order.
func (m *Manager) Windows() []model.Window {
	out := make([]model.Window, len(m.windows))
	copy(out, m.windows)
	return out
}

// Stacked returns the windows in render order, focused window last.
func (m *Manager) Stacked() []model.Window {
	out := make([]model.Window, 0, len(m.windows))
	var top *model.Window
	for i := range m.windows {
		if m.windows[i].ID == m.focused {
			top = &m.windows[i]
			continue
		}
		out = append(out, m.windows[i])
	}
	if top != nil {
		out = append(out, *top)
	}
	return out
}

// FindByType returns the first window of the given type.
func (m *Manager) FindByType(kind model.WindowType) (model.Window, bool) {
	for _, win := range m.windows {
		if win.Type == kind {
			return win, true
		}
	}
	return model.Window{}, false
}

// ParagraphFor returns the paragraph window referencing the given reader
// window, if any.
func (m *Manager) ParagraphFor(readerID string) (model.Window, bool) {
	for _, win := range m.windows {
		p, ok := win.Payload.(model.ParagraphPayload)
		if ok && p.ParentID == readerID {
			return win, true
		}
	}
	return model.Window{}, false
}

// Clear removes every window and drops focus.
func (m *Manager) Clear() {
	m.windows = nil
	m.focused = ""
}

// Restore replaces the window set wholesale, used when loading a persisted
// workspace snapshot. Focus is preserved only if the id still exists.
func (m *Manager) Restore(windows []model.Window, focused string) {
	m.windows = make([]model.Window, len(windows))
	copy(m.windows, windows)
	m.focused = ""
	for _, win := range m.windows {
		if win.ID == focused {
			m.focused = focused
			break
		}
	}
}
