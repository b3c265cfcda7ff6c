// Package interview provides the session manager for hosting multiple
// concurrent interview controllers.
package interview

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Manager owns a set of interview controllers keyed by session ID. Sessions
// live in memory only and are discarded when deleted or when the process
// exits.
type Manager struct {
	svc Service

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewManager creates a manager that backs new controllers with the given
// question service.
func NewManager(svc Service) *Manager {
	return &Manager{svc: svc, controllers: make(map[string]*Controller)}
}

// Create allocates a new controller and returns its session ID.
func (m *Manager) Create(ctx context.Context) (string, *Controller) {
	id := uuid.NewString()
	controller := NewController(ctx, m.svc)

	m.mu.Lock()
	m.controllers[id] = controller
	m.mu.Unlock()

	slog.Info("Manager created interview session", "session_id", id)
	return id, controller
}

// Get returns the controller for a session ID.
func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	controller, ok := m.controllers[id]
	return controller, ok
}

// Delete discards a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.controllers, id)
	m.mu.Unlock()
	slog.Debug("Manager deleted interview session", "session_id", id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}
