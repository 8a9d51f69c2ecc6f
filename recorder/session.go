package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
	"github.com/Appsurify/rrweb/idgen"
)

// Session is one named recording over one document.
type Session struct {
	ID        string
	PageURL   string
	Handle    *Handle
	Doc       *dom.Document
	StartedAt int64

	events atomic.Int64
}

// Events returns the number of events emitted so far.
func (s *Session) Events() int64 { return s.events.Load() }

// DocumentOpener materializes a live document for a URL — wired by the
// daemon to the browser bridge.
type DocumentOpener func(ctx context.Context, url, pageID string) (*dom.Document, error)

// SessionManager tracks named recordings. It is the surface the daemon
// and the MCP tools drive.
type SessionManager struct {
	mu       sync.Mutex
	logger   *slog.Logger
	sessions map[string]*Session
	newID    idgen.Generator
	opener   DocumentOpener
}

// NewSessionManager creates an empty manager.
func NewSessionManager(logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		logger:   logger,
		sessions: make(map[string]*Session),
		newID:    idgen.Prefixed("rec_", idgen.Default),
	}
}

// SetOpener wires the document opener used by StartURL.
func (m *SessionManager) SetOpener(open DocumentOpener) {
	m.mu.Lock()
	m.opener = open
	m.mu.Unlock()
}

// Start begins a recording session over an existing document. An empty
// id is generated. The options' Emit is wrapped to count events.
func (m *SessionManager) Start(id string, doc *dom.Document, opts Options) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.newID()
	}
	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("recorder: session %q already active", id)
	}

	sess := &Session{ID: id, PageURL: doc.Href(), Doc: doc}
	opts.Document = doc

	userEmit := opts.Emit
	if userEmit != nil {
		opts.Emit = func(e *event.Event, isCheckout bool) {
			sess.events.Add(1)
			userEmit(e, isCheckout)
		}
	}

	handle, err := Record(opts)
	if err != nil {
		return nil, err
	}
	sess.Handle = handle
	sess.StartedAt = doc.Scheduler().NowMillis()
	m.sessions[id] = sess

	m.logger.Info("recorder: session started", "id", id, "url", sess.PageURL)
	return sess, nil
}

// StartURL opens the URL through the configured opener and records it.
func (m *SessionManager) StartURL(ctx context.Context, url, id string, opts Options) (*Session, error) {
	m.mu.Lock()
	open := m.opener
	m.mu.Unlock()
	if open == nil {
		return nil, fmt.Errorf("recorder: no document opener configured")
	}
	doc, err := open(ctx, url, id)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", url, err)
	}
	opts.Document = doc
	return m.Start(id, doc, opts)
}

// Get returns a session by id.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Stop ends a session. Unknown ids error; stopping is idempotent at
// the handle level.
func (m *SessionManager) Stop(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("recorder: unknown session %q", id)
	}
	sess.Handle.Stop()
	m.logger.Info("recorder: session stopped", "id", id, "events", sess.Events())
	return nil
}

// StopAll ends every session.
func (m *SessionManager) StopAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for id, sess := range sessions {
		sess.Handle.Stop()
		m.logger.Info("recorder: session stopped", "id", id, "events", sess.Events())
	}
}

// SessionStats is the reporting shape for one session.
type SessionStats struct {
	ID        string `json:"id"`
	PageURL   string `json:"page_url"`
	StartedAt int64  `json:"started_at"`
	Events    int64  `json:"events"`
}

// Stats lists all active sessions.
func (m *SessionManager) Stats() []SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SessionStats, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, SessionStats{
			ID: s.ID, PageURL: s.PageURL,
			StartedAt: s.StartedAt, Events: s.Events(),
		})
	}
	return out
}
