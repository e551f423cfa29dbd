// Package session tracks the one live agent-driving run per project: a
// persisted session record, the child process behind it, and the
// graceful-then-forceful stop protocol.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/drover-dev/drover/internal/fileutil"
)

// Mode distinguishes planning runs from build runs.
type Mode string

const (
	ModePlan  Mode = "plan"
	ModeBuild Mode = "build"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
)

// Session is the persisted record of one run. The record on disk is the
// source of truth: a restarted controller recovers from it, not from
// anything held in memory.
type Session struct {
	ID        string     `json:"id"`
	Mode      Mode       `json:"mode"`
	Status    Status     `json:"status"`
	Iteration int        `json:"iteration"`
	StartedAt time.Time  `json:"startedAt"`
	StoppedAt *time.Time `json:"stoppedAt,omitempty"`
	AgentType string     `json:"agentType"`
	Model     string     `json:"model,omitempty"`
	ProcessID int        `json:"processId,omitempty"`
}

var (
	// ErrAlreadyRunning means a live session already exists for this project.
	ErrAlreadyRunning = errors.New("a session is already running for this project")

	// ErrNotRunning means there is no live session to stop.
	ErrNotRunning = errors.New("no running session")

	// ErrStillAlive means the process survived the grace period after
	// SIGTERM; removing it now requires an explicit Kill.
	ErrStillAlive = errors.New("process still alive after grace period")
)

// Manager owns the session record for one project.
type Manager struct {
	path string
}

// NewManager returns a manager persisting to sessionPath.
func NewManager(sessionPath string) *Manager {
	return &Manager{path: sessionPath}
}

// Path returns the session record path.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the current session record, or nil if none exists.
func (m *Manager) Load() (*Session, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return &s, nil
}

// Save rewrites the session record atomically.
func (m *Manager) Save(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := fileutil.WriteFileAtomic(m.path, data); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Start creates and persists a new running session. It refuses when the
// record shows a running session whose process is still alive; a stale
// running record whose process is gone is reclaimed.
func (m *Manager) Start(mode Mode, agentType, model string) (*Session, error) {
	existing, err := m.Load()
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == StatusRunning &&
		existing.ProcessID != 0 && Alive(existing.ProcessID) {
		return nil, ErrAlreadyRunning
	}

	now := time.Now().UTC()
	s := &Session{
		ID:        fmt.Sprintf("%s-%s", mode, now.Format("20060102-150405")),
		Mode:      mode,
		Status:    StatusRunning,
		StartedAt: now,
		AgentType: agentType,
		Model:     model,
	}
	if err := m.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// SetProcess records the live child process id.
func (m *Manager) SetProcess(s *Session, pid int) error {
	s.ProcessID = pid
	return m.Save(s)
}

// ClearProcess clears the child process id once the child has exited.
func (m *Manager) ClearProcess(s *Session) error {
	s.ProcessID = 0
	return m.Save(s)
}

// SetIteration persists the current iteration count.
func (m *Manager) SetIteration(s *Session, n int) error {
	s.Iteration = n
	return m.Save(s)
}

// Complete marks the session completed. This terminal write is the last
// mutation a finished run performs.
func (m *Manager) Complete(s *Session) error {
	return m.finalize(s, StatusCompleted)
}

// MarkStopped marks the session stopped with a stop timestamp.
func (m *Manager) MarkStopped(s *Session) error {
	return m.finalize(s, StatusStopped)
}

func (m *Manager) finalize(s *Session, status Status) error {
	now := time.Now().UTC()
	s.Status = status
	s.StoppedAt = &now
	s.ProcessID = 0
	return m.Save(s)
}

// Alive probes a process with signal 0.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// LogPathFor returns the append-only log path for a session id, in a
// logs directory next to the session record.
func (m *Manager) LogPathFor(id string) string {
	return filepath.Join(filepath.Dir(m.path), "logs", "session-"+id+".log")
}
