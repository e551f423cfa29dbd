package project

import (
	"fmt"
	"os"
	"sync"

	svcconfig "github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/internal/watch"
	"github.com/drover-dev/drover/pkg/config"
	"github.com/drover-dev/drover/pkg/session"
	"github.com/drover-dev/drover/pkg/task"
)

// Manager handles project lifecycle: registration, state watching, and
// per-project access to documents and sessions.
type Manager struct {
	cfg      *svcconfig.Config
	registry *Registry
	watchers map[string]*watch.Watcher
	mu       sync.RWMutex
}

// NewManager creates a new project manager.
func NewManager(cfg *svcconfig.Config, registry *Registry) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: registry,
		watchers: make(map[string]*watch.Watcher),
	}
}

// Initialize starts state watchers for all registered projects.
func (m *Manager) Initialize() error {
	for _, p := range m.registry.List() {
		if err := m.watchProject(p); err != nil {
			logger.GetLogger().Warn().Err(err).Str("project", p.ID).Msg("Failed to watch project")
		}
	}
	return nil
}

// watchProject starts the state watcher for one project.
func (m *Manager) watchProject(p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(p.Path); os.IsNotExist(err) {
		return fmt.Errorf("project path does not exist: %s", p.Path)
	}
	paths := m.Paths(p)
	if _, err := os.Stat(paths.DataDir()); os.IsNotExist(err) {
		// Not initialized yet; nothing to observe.
		return nil
	}

	id := p.ID
	w, err := watch.New(paths, func(e watch.Event) {
		logger.GetLogger().Debug().
			Str("project", id).
			Str("kind", string(e.Kind)).
			Msg("Project state changed")
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	m.watchers[p.ID] = w
	return nil
}

// RegisterProject registers a new project and starts watching it.
func (m *Manager) RegisterProject(path string) (*Project, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory")
	}

	p, err := m.registry.Register(path)
	if err != nil {
		return nil, err
	}
	if err := m.registry.Save(); err != nil {
		m.registry.Remove(p.ID)
		return nil, fmt.Errorf("save registry: %w", err)
	}

	if err := m.watchProject(p); err != nil {
		logger.GetLogger().Warn().Err(err).Str("project", p.ID).Msg("Failed to watch new project")
	}
	return p, nil
}

// UnregisterProject removes a project and stops its watcher. Project
// state under .drover stays on disk.
func (m *Manager) UnregisterProject(id string) error {
	m.mu.Lock()
	if w, ok := m.watchers[id]; ok {
		w.Stop()
		delete(m.watchers, id)
	}
	m.mu.Unlock()

	if err := m.registry.Remove(id); err != nil {
		return err
	}
	if err := m.registry.Save(); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// Paths resolves the data layout for a project.
func (m *Manager) Paths(p *Project) config.Paths {
	return config.Paths{ProjectDir: p.Path}
}

// Store returns the implementation document store for a project.
func (m *Manager) Store(p *Project) *task.Store {
	return task.NewStore(m.Paths(p).Document())
}

// Sessions returns the session manager for a project.
func (m *Manager) Sessions(p *Project) *session.Manager {
	return session.NewManager(m.Paths(p).SessionFile())
}

// Status is a point-in-time snapshot of one project's state.
type Status struct {
	Project *Project         `json:"project"`
	Session *session.Session `json:"session,omitempty"`
	Counts  map[task.Status]int `json:"counts,omitempty"`
	Planned bool             `json:"planned"`
}

// StatusOf reads a project's current document and session state.
func (m *Manager) StatusOf(p *Project) (*Status, error) {
	st := &Status{Project: p}

	doc, err := m.Store(p).Load()
	if err != nil {
		return nil, err
	}
	if doc != nil {
		st.Planned = true
		st.Counts = doc.Counts()
	}

	sess, err := m.Sessions(p).Load()
	if err != nil {
		return nil, err
	}
	st.Session = sess
	return st, nil
}

// Shutdown stops all watchers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, w := range m.watchers {
		w.Stop()
		delete(m.watchers, id)
	}
}
