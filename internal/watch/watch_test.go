package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drover-dev/drover/pkg/config"
)

func TestWatcher_NotifiesOnDocumentChange(t *testing.T) {
	dir := t.TempDir()
	paths := config.Paths{ProjectDir: dir}
	require.NoError(t, os.MkdirAll(paths.DataDir(), 0o755))

	var mu sync.Mutex
	var events []Event
	w, err := New(paths, func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(paths.Document(), []byte("{}"), 0o644))
	// Unrelated files never surface.
	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir(), "scratch.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1 && events[0].Kind == KindDocument
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	paths := config.Paths{ProjectDir: dir}
	require.NoError(t, os.MkdirAll(paths.DataDir(), 0o755))

	var mu sync.Mutex
	count := 0
	w, err := New(paths, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(paths.SessionFile(), []byte("{}"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 1
	}, 3*time.Second, 50*time.Millisecond)

	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, count, 3, "a burst of writes must collapse")
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	paths := config.Paths{ProjectDir: dir}
	require.NoError(t, os.MkdirAll(paths.DataDir(), 0o755))

	w, err := New(paths, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	require.NoError(t, w.Stop())
}
