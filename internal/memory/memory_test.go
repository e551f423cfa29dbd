package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drover-dev/drover/pkg/task"
)

// Embedding-backed paths need an API key, so tests cover the nil-store
// contract the loop relies on.
func TestNilStoreIsInert(t *testing.T) {
	var s *Store

	err := s.RecordCompletion(context.Background(),
		&task.Spec{ID: "x"}, &task.Task{ID: "x-1"})
	assert.NoError(t, err)

	related, err := s.FindRelated(context.Background(), "anything", 5)
	assert.NoError(t, err)
	assert.Empty(t, related)

	assert.Zero(t, s.Count())
}
