package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NotInitialized(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInit_CreatesLayout(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Init(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultAgentType, cfg.Agent.Type)

	p := Paths{ProjectDir: dir}
	for _, path := range []string{p.ConfigFile(), p.LogsDir(), p.MemoryDir(), p.SpecsDir()} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	_, err = Init(dir)
	assert.Error(t, err, "second init must refuse")
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DataDirName), 0o755))

	doc := `
[agent]
type = "codex"
model = "gpt-5"

[loop]
iteration_timeout = "5m"

[[gates]]
name = "typecheck"
command = "npx tsc --noEmit"
required = true

[[gates]]
command = "npm run lint"
required = false
`
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, DataDirName, ConfigFileName), []byte(doc), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "codex", cfg.Agent.Type)
	assert.Equal(t, "gpt-5", cfg.Agent.Model)
	assert.Equal(t, 5*time.Minute, cfg.Loop.IterationTimeout.Duration())
	// Unset fields keep their defaults.
	assert.Equal(t, DefaultMaxIterations, cfg.Loop.MaxIterations)
	assert.Equal(t, DefaultMaxRetries, cfg.Loop.MaxRetries)
	assert.Equal(t, DefaultGracePeriod, cfg.Loop.GracePeriod.Duration())

	require.Len(t, cfg.Gates, 2)
	assert.Equal(t, "typecheck", cfg.Gates[0].Name)
	assert.True(t, cfg.Gates[0].Required)
	assert.False(t, cfg.Gates[1].Required)
}

func TestLoad_BadDuration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DataDirName), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, DataDirName, ConfigFileName),
		[]byte("[loop]\ncooldown = \"soon\"\n"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.Agent.Type = "gemini"
	cfg.Gates = []GateEntry{{Name: "test", Command: "go test ./...", Required: true}}
	require.NoError(t, Save(cfg, dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "gemini", loaded.Agent.Type)
	require.Len(t, loaded.Gates, 1)
	assert.Equal(t, "go test ./...", loaded.Gates[0].Command)
}

func TestPaths(t *testing.T) {
	p := Paths{ProjectDir: "/work/app"}
	assert.Equal(t, "/work/app/.drover/implementation.json", p.Document())
	assert.Equal(t, "/work/app/.drover/session.json", p.SessionFile())
	assert.Equal(t, "/work/app/.drover/logs", p.LogsDir())
}
