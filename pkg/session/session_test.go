package session

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(filepath.Join(t.TempDir(), "session.json"))
}

func TestStart_CreatesRunningSession(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Start(ModeBuild, "claude", "opus")
	require.NoError(t, err)

	assert.Equal(t, StatusRunning, s.Status)
	assert.Equal(t, ModeBuild, s.Mode)
	assert.Equal(t, "claude", s.AgentType)
	assert.Equal(t, "opus", s.Model)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.StartedAt.IsZero())
	assert.Nil(t, s.StoppedAt)

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, s.ID, loaded.ID)
}

func TestStart_RefusesWhileProcessAlive(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Start(ModeBuild, "claude", "")
	require.NoError(t, err)
	// Our own pid is certainly alive.
	require.NoError(t, m.SetProcess(s, os.Getpid()))

	_, err = m.Start(ModeBuild, "claude", "")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestStart_ReclaimsStaleRecord(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Start(ModeBuild, "claude", "")
	require.NoError(t, err)

	// A running record pointing at a dead pid must not block a new start.
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())
	require.NoError(t, m.SetProcess(s, pid))

	s2, err := m.Start(ModePlan, "codex", "")
	require.NoError(t, err)
	assert.Equal(t, ModePlan, s2.Mode)
}

func TestLoad_AbsentReturnsNil(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestComplete_SetsTerminalState(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Start(ModeBuild, "gemini", "")
	require.NoError(t, err)
	require.NoError(t, m.SetProcess(s, 12345))
	require.NoError(t, m.Complete(s))

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, loaded.Status)
	require.NotNil(t, loaded.StoppedAt)
	assert.Zero(t, loaded.ProcessID)
}

func TestAlive(t *testing.T) {
	assert.True(t, Alive(os.Getpid()))
	assert.False(t, Alive(0))
	assert.False(t, Alive(-1))

	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())
	assert.False(t, Alive(pid))
}

func TestTerminate_GracefulExit(t *testing.T) {
	// sleep exits promptly on SIGTERM.
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	defer cmd.Process.Kill()
	go cmd.Wait()

	err := Terminate(pid, 3*time.Second)
	assert.NoError(t, err)
	assert.False(t, Alive(pid))
}

func TestTerminate_AlreadyDeadIsSuccess(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())

	assert.NoError(t, Terminate(pid, time.Second))
}

func TestTerminate_SurvivorReportsStillAlive(t *testing.T) {
	// The child ignores SIGTERM, so the grace period must elapse and the
	// survivor must be reported rather than killed implicitly.
	cmd := exec.Command("sh", "-c", "trap '' TERM; sleep 30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()
	time.Sleep(200 * time.Millisecond) // let the trap install

	err := Terminate(pid, 500*time.Millisecond)
	assert.ErrorIs(t, err, ErrStillAlive)
	assert.True(t, Alive(pid), "graceful stop must not SIGKILL")

	require.NoError(t, Kill(pid))
	go cmd.Wait()
	assert.Eventually(t, func() bool { return !Alive(pid) },
		3*time.Second, 50*time.Millisecond)
}

func TestStop_FinalizesRecord(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Start(ModeBuild, "claude", "")
	require.NoError(t, err)

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()
	go cmd.Wait()
	require.NoError(t, m.SetProcess(s, cmd.Process.Pid))

	stopped, err := m.Stop(3*time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, stopped.Status)
	require.NotNil(t, stopped.StoppedAt)

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, loaded.Status)
	assert.Zero(t, loaded.ProcessID)
}

func TestStop_LogsGracefulTermination(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Start(ModeBuild, "claude", "")
	require.NoError(t, err)

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()
	go cmd.Wait()
	require.NoError(t, m.SetProcess(s, cmd.Process.Pid))

	stopped, err := m.Stop(3*time.Second, false)
	require.NoError(t, err)

	l, err := OpenLog(m.LogPathFor(stopped.ID))
	require.NoError(t, err)
	lines, err := l.Tail(10)
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1],
		"session "+stopped.ID+" stopped (terminated gracefully)")
}

func TestStop_LogsForcedKill(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Start(ModeBuild, "claude", "")
	require.NoError(t, err)

	cmd := exec.Command("sh", "-c", "trap '' TERM; sleep 30")
	require.NoError(t, cmd.Start())
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()
	time.Sleep(200 * time.Millisecond) // let the trap install
	require.NoError(t, m.SetProcess(s, cmd.Process.Pid))

	stopped, err := m.Stop(500*time.Millisecond, true)
	require.NoError(t, err)

	l, err := OpenLog(m.LogPathFor(stopped.ID))
	require.NoError(t, err)
	lines, err := l.Tail(10)
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1],
		"session "+stopped.ID+" stopped (killed after grace period)")
}

func TestStop_NoSession(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Stop(time.Second, false)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestLog_AppendAndTail(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenLog(filepath.Join(dir, "logs", "session-x.log"))
	require.NoError(t, err)

	require.NoError(t, l.Append("agent line one"))
	require.NoError(t, l.Append("agent line two"))
	require.NoError(t, l.Event("session stopped by user"))

	lines, err := l.Tail(10)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "agent line one")
	assert.Contains(t, lines[2], "=== session stopped by user ===")

	last, err := l.Tail(1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Contains(t, last[0], "stopped by user")
}

func TestLog_TailMissingFile(t *testing.T) {
	l := &Log{path: filepath.Join(t.TempDir(), "nope.log")}
	lines, err := l.Tail(5)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestLogPathFor(t *testing.T) {
	m := NewManager("/data/proj/.drover/session.json")
	assert.Equal(t, "/data/proj/.drover/logs/session-build-1.log", m.LogPathFor("build-1"))
}
