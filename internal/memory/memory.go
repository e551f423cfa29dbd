// Package memory keeps a persistent record of completed tasks in a local
// vector store, so later sessions can surface related prior work.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/drover-dev/drover/pkg/task"
)

const collectionName = "completions"

// Store is the completion memory. A nil *Store is valid and does
// nothing, so callers can wire it unconditionally.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// Open opens (or creates) the memory store under dir. Embeddings use
// chromem's default embedding function, which needs OPENAI_API_KEY;
// without one, callers should skip opening and pass a nil store.
func Open(dir string) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, chromem.NewEmbeddingFuncDefault())
	if err != nil {
		return nil, fmt.Errorf("open memory collection: %w", err)
	}

	return &Store{db: db, collection: collection}, nil
}

// RecordCompletion stores one completed task.
func (s *Store) RecordCompletion(ctx context.Context, spec *task.Spec, t *task.Task) error {
	if s == nil {
		return nil
	}

	completedAt := time.Now().UTC()
	if t.CompletedAt != nil {
		completedAt = *t.CompletedAt
	}

	doc := chromem.Document{
		ID:      t.ID,
		Content: t.Description,
		Metadata: map[string]string{
			"spec_id":      spec.ID,
			"spec_name":    spec.Name,
			"completed_at": completedAt.Format(time.RFC3339),
			"retries":      strconv.Itoa(t.RetryCount),
		},
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// Related is one prior completion relevant to a query.
type Related struct {
	TaskID      string
	SpecID      string
	Description string
	Similarity  float32
}

// FindRelated returns up to limit prior completions similar to the
// query, most similar first.
func (s *Store) FindRelated(ctx context.Context, query string, limit int) ([]Related, error) {
	if s == nil || limit <= 0 {
		return nil, nil
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	docs, err := s.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}

	results := make([]Related, 0, len(docs))
	for _, doc := range docs {
		results = append(results, Related{
			TaskID:      doc.ID,
			SpecID:      doc.Metadata["spec_id"],
			Description: doc.Content,
			Similarity:  doc.Similarity,
		})
	}
	return results, nil
}

// Count returns the number of recorded completions.
func (s *Store) Count() int {
	if s == nil {
		return 0
	}
	return s.collection.Count()
}
