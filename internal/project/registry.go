// Package project tracks the projects drover-service manages and gives
// per-project access to their documents and sessions.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/fileutil"
)

// Project represents a registered project.
type Project struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Registry manages the collection of registered projects.
type Registry struct {
	mu       sync.RWMutex
	projects map[string]*Project
	path     string
}

// NewRegistry creates a registry persisting to the service registry file.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		projects: make(map[string]*Project),
		path:     cfg.RegistryPath(),
	}
}

// Load loads the registry from disk. A missing file is an empty registry.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read registry: %w", err)
	}

	var projects []*Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return fmt.Errorf("parse registry: %w", err)
	}
	for _, p := range projects {
		r.projects[p.ID] = p
	}
	return nil
}

// Save persists the registry to disk.
func (r *Registry) Save() error {
	projects := r.List()

	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := fileutil.WriteFileAtomic(r.path, data); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// Register adds a project rooted at path, deriving its id from the
// normalized path. Registering the same path twice returns the existing
// project.
func (r *Registry) Register(path string) (*Project, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.projects {
		if p.Path == absPath {
			return p, nil
		}
	}

	p := &Project{
		ID:           config.ProjectHash(absPath),
		Path:         absPath,
		Name:         filepath.Base(absPath),
		RegisteredAt: time.Now().UTC(),
	}
	r.projects[p.ID] = p
	return p, nil
}

// Remove removes a project from the registry.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[id]; !ok {
		return fmt.Errorf("project not found: %s", id)
	}
	delete(r.projects, id)
	return nil
}

// Get returns a project by ID.
func (r *Registry) Get(id string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	return p, nil
}

// List returns all registered projects, sorted by name.
func (r *Registry) List() []*Project {
	r.mu.RLock()
	defer r.mu.RUnlock()

	projects := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects
}

// Count returns the number of registered projects.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.projects)
}
