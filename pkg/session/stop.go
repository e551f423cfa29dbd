package session

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// DefaultGracePeriod is how long Terminate waits for a process to exit
// after SIGTERM before giving up.
const DefaultGracePeriod = 5 * time.Second

const alivePollInterval = 100 * time.Millisecond

// Terminate sends SIGTERM to pid and polls until the process exits or
// the grace period elapses. A process that is already gone counts as
// success. ErrStillAlive means the caller must decide to Kill.
func Terminate(pid int, grace time.Duration) error {
	if !Alive(pid) {
		return nil
	}
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if !Alive(pid) {
			return nil
		}
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !Alive(pid) {
			return nil
		}
		time.Sleep(alivePollInterval)
	}
	if !Alive(pid) {
		return nil
	}
	return ErrStillAlive
}

// Kill sends SIGKILL to pid. Forceful termination never happens
// implicitly; callers reach for it only after Terminate returned
// ErrStillAlive.
func Kill(pid int) error {
	if !Alive(pid) {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Kill(); err != nil && Alive(pid) {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}

// Stop performs the stop protocol against the recorded session: SIGTERM
// the child, wait out the grace period, and finalize the record as
// stopped. When force is set a surviving child is killed instead of
// returning ErrStillAlive.
func (m *Manager) Stop(grace time.Duration, force bool) (*Session, error) {
	s, err := m.Load()
	if err != nil {
		return nil, err
	}
	if s == nil || s.Status != StatusRunning {
		return nil, ErrNotRunning
	}

	how := "no live agent process"
	if s.ProcessID != 0 {
		how = "terminated gracefully"
		err := Terminate(s.ProcessID, grace)
		if err == ErrStillAlive {
			if !force {
				return s, ErrStillAlive
			}
			if err := Kill(s.ProcessID); err != nil {
				return s, err
			}
			how = "killed after grace period"
		} else if err != nil {
			return s, err
		}
	}

	if err := m.MarkStopped(s); err != nil {
		return s, err
	}

	// The log records which termination path ended the session.
	slog, err := OpenLog(m.LogPathFor(s.ID))
	if err != nil {
		return s, err
	}
	if err := slog.Event("session %s stopped (%s)", s.ID, how); err != nil {
		return s, err
	}
	return s, nil
}
