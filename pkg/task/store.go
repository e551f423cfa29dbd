package task

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/drover-dev/drover/internal/fileutil"
)

// Store persists the implementation document as a single JSON file.
// Reads and writes are whole-document; Save rewrites atomically via a
// temp-file rename so a crash never leaves a torn document behind.
type Store struct {
	path string
}

// NewStore creates a store for the given document path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document. A project that was never planned has no
// document; that is reported as (nil, nil) so callers can distinguish
// "not initialized" from corruption.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if err := Validate(&doc); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	return &doc, nil
}

// Save rewrites the whole document, stamping updatedAt and the writing
// actor.
func (s *Store) Save(doc *Document, by Actor) error {
	doc.UpdatedAt = time.Now().UTC()
	doc.UpdatedBy = by

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	if err := fileutil.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}
