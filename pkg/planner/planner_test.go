package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drover-dev/drover/internal/memory"
	"github.com/drover-dev/drover/pkg/task"
)

func TestDecompositionPrompt(t *testing.T) {
	src := Source{File: "auth.md", Content: "Users must be able to log in."}
	out := decompositionPrompt(src, nil)

	assert.Contains(t, out, "auth.md")
	assert.Contains(t, out, "Users must be able to log in.")
	assert.Contains(t, out, `"tasks"`)
	assert.Contains(t, out, "ONLY a JSON object")
	assert.NotContains(t, out, "Work already completed",
		"no prior-work section without prior work")
}

func TestDecompositionPrompt_IncludesPriorWork(t *testing.T) {
	src := Source{File: "auth.md", Content: "Users must be able to log in."}
	prior := []memory.Related{
		{TaskID: "auth-1", Description: "Add login route"},
		{TaskID: "auth-2", Description: "Add logout route"},
	}
	out := decompositionPrompt(src, prior)

	assert.Contains(t, out, "Work already completed")
	assert.Contains(t, out, "[auth-1] Add login route")
	assert.Contains(t, out, "[auth-2] Add logout route")
}

func TestPriorWork_NilStoreYieldsNone(t *testing.T) {
	p := &Planner{}
	src := Source{File: "auth.md", Content: "Users must be able to log in."}
	assert.Empty(t, p.priorWork(context.Background(), src))
}

func TestParsePlan_PlainJSON(t *testing.T) {
	raw := `{"id":"auth","name":"Auth","context":"c","tasks":[{"description":"do it"}]}`
	payload, err := parsePlan(raw)
	require.NoError(t, err)
	assert.Equal(t, "auth", payload.ID)
	require.Len(t, payload.Tasks, 1)
}

func TestParsePlan_FencedAndProse(t *testing.T) {
	raw := "Sure! Here is the plan:\n```json\n" +
		`{"id":"auth","name":"Auth","tasks":[{"description":"a"},{"description":"b"}]}` +
		"\n```\nLet me know if you need changes."
	payload, err := parsePlan(raw)
	require.NoError(t, err)
	assert.Len(t, payload.Tasks, 2)
}

func TestParsePlan_Rejections(t *testing.T) {
	_, err := parsePlan("no json here")
	assert.Error(t, err)

	_, err = parsePlan(`{"id":"x","name":"X","tasks":[]}`)
	assert.Error(t, err, "a plan without tasks is useless")

	_, err = parsePlan(`{"id": broken`)
	assert.Error(t, err)
}

func TestBuildSpec_SequentialTaskIDs(t *testing.T) {
	payload, err := parsePlan(`{
		"id": "User Auth", "name": "User Auth",
		"tasks": [{"description": "first"}, {"description": "second"}]
	}`)
	require.NoError(t, err)

	spec := buildSpec("auth.md", payload, 3)
	assert.Equal(t, "user-auth", spec.ID)
	assert.Equal(t, 3, spec.Priority)
	assert.Equal(t, task.StatusPending, spec.Status)
	require.Len(t, spec.Tasks, 2)
	assert.Equal(t, "user-auth-1", spec.Tasks[0].ID)
	assert.Equal(t, "user-auth-2", spec.Tasks[1].ID)
	assert.Equal(t, task.StatusPending, spec.Tasks[1].Status)
}

func TestBuildSpec_IDFallsBackToFileName(t *testing.T) {
	payload, err := parsePlan(`{"tasks": [{"description": "only"}]}`)
	require.NoError(t, err)

	spec := buildSpec("03_billing_flow.md", payload, 1)
	assert.Equal(t, "03-billing-flow", spec.ID)
	assert.Equal(t, "03-billing-flow", spec.Name)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"User Auth":        "user-auth",
		"  spaced  out  ":  "spaced-out",
		"Already-Kebab":    "already-kebab",
		"Sym!bols#every?":  "sym-bols-every",
		"---":              "",
		"MixedCASE Things": "mixedcase-things",
	}
	for in, want := range cases {
		assert.Equal(t, want, slugify(in), in)
	}
}

func TestLoadSources_SortedMarkdownOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02-b.md"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01-a.md"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	sources, err := LoadSources(dir)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "01-a.md", sources[0].File)
	assert.Equal(t, "02-b.md", sources[1].File)
}

func TestLoadSources_EmptyDirIsError(t *testing.T) {
	_, err := LoadSources(t.TempDir())
	assert.Error(t, err)
}
