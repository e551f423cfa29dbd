package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadAbsent(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "implementation.json"))

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, doc, "never-planned project has no document")
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "implementation.json"))

	doc := NewDocument()
	doc.Specs = append(doc.Specs, &Spec{
		ID: "search-index", File: "specs/search-index.md", Name: "Search index",
		Priority: 1, Status: StatusPending,
		Context: "see internal/index",
		Tasks: []*Task{
			{ID: "search-index-1", Description: "Add inverted index", Status: StatusPending,
				AcceptanceCriteria: []string{"queries return in <100ms"}},
		},
	})

	require.NoError(t, store.Save(doc, ActorPlan))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, ActorPlan, loaded.UpdatedBy)
	assert.False(t, loaded.UpdatedAt.IsZero())
	require.Len(t, loaded.Specs, 1)
	assert.Equal(t, "search-index", loaded.Specs[0].ID)
	require.Len(t, loaded.Specs[0].Tasks, 1)
	assert.Equal(t, "Add inverted index", loaded.Specs[0].Tasks[0].Description)
}

func TestStore_SaveStampsActor(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "implementation.json"))
	doc := NewDocument()

	require.NoError(t, store.Save(doc, ActorPlan))
	require.NoError(t, store.Save(doc, ActorBuild))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, ActorBuild, loaded.UpdatedBy)
}

func TestStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "implementation.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewStore(path).Load()
	assert.Error(t, err)
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "implementation.json"))

	require.NoError(t, store.Save(NewDocument(), ActorUser))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "implementation.json", entries[0].Name())
}
