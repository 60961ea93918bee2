package session

import (
	"sync"
)

// Session is the state owned by one browser. The progress listener mutates
// only its own session; the file list itself is rebuilt from the filesystem
// on every refresh.
type Session struct {
	UserID string
	Bus    *Bus

	mu             sync.Mutex
	update         *JobStatus // listener patch, applied at render time
	fileInProgress string
	knownErrors    int

	// Server-side editor state set by open-editor.
	editorFile    string
	editorContent string
}

func NewSession(userID string) *Session {
	return &Session{UserID: userID, Bus: NewBus()}
}

// SetUpdate stores the listener's patch for the in-flight job.
func (s *Session) SetUpdate(patch *JobStatus) {
	s.mu.Lock()
	s.update = patch
	s.mu.Unlock()
}

// Update returns the current listener patch, or nil.
func (s *Session) Update() *JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update
}

// FileInProgress tracks which job the listener last saw running, so the
// results view refreshes exactly when the running job changes.
func (s *Session) FileInProgress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileInProgress
}

func (s *Session) SetFileInProgress(file string) {
	s.mu.Lock()
	s.fileInProgress = file
	s.mu.Unlock()
}

// ObserveErrors records the current error count and reports whether new
// errors appeared since the last observation.
func (s *Session) ObserveErrors(count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	grew := count > s.knownErrors
	s.knownErrors = count
	return grew
}

// OpenEditor stages the server-side editor content for /editor.
func (s *Session) OpenEditor(file, content string) {
	s.mu.Lock()
	s.editorFile = file
	s.editorContent = content
	s.mu.Unlock()
}

// Editor returns the staged editor file and content; ok is false when no
// open-editor call populated the session (expired session).
func (s *Session) Editor() (file, content string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editorFile, s.editorContent, s.editorFile != ""
}

// Manager tracks sessions by their opaque browser id.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Get returns the session for a browser id, creating it on first sight.
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := NewSession(userID)
	m.sessions[userID] = s
	return s
}
