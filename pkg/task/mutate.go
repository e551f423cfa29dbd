package task

import (
	"fmt"
	"sort"
	"time"
)

// The mutation helpers below are total functions over an in-memory document:
// a missing spec or task id is a silent no-op, since callers are expected to
// have just fetched the id from the same document. Persistence happens
// separately through Store.Save.

// NextPendingTask selects the next runnable task. At most one spec is
// in_progress at a time; when none is, the pending spec with the lowest
// priority is promoted. A task is runnable when it is pending, or when it
// was left in_progress by a crashed run. When the active spec has no
// runnable task left it is finalized (completed if every task completed,
// blocked otherwise) and selection recurses to the next spec.
func NextPendingTask(doc *Document) (*Spec, *Task) {
	active := activeSpec(doc)
	if active == nil {
		active = promoteNext(doc)
	}
	if active == nil {
		return nil, nil
	}

	for _, t := range active.Tasks {
		if t.Status == StatusPending || t.Status == StatusInProgress {
			return active, t
		}
	}

	if active.AllCompleted() {
		active.Status = StatusCompleted
	} else {
		active.Status = StatusBlocked
	}
	return NextPendingTask(doc)
}

// activeSpec returns the spec currently in_progress, if any.
func activeSpec(doc *Document) *Spec {
	for _, s := range doc.Specs {
		if s.Status == StatusInProgress {
			return s
		}
	}
	return nil
}

// promoteNext promotes the pending spec with the lowest priority.
func promoteNext(doc *Document) *Spec {
	pending := make([]*Spec, 0, len(doc.Specs))
	for _, s := range doc.Specs {
		if s.Status == StatusPending {
			pending = append(pending, s)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority < pending[j].Priority
	})
	pending[0].Status = StatusInProgress
	return pending[0]
}

// MarkInProgress moves a task to in_progress. Terminal states are left
// alone; retrying a failed task goes through here after the failure was
// recorded.
func MarkInProgress(doc *Document, specID, taskID string) {
	t := doc.FindTask(specID, taskID)
	if t == nil {
		return
	}
	switch t.Status {
	case StatusPending, StatusFailed, StatusInProgress:
		t.Status = StatusInProgress
	default:
		return
	}
	if s := doc.FindSpec(specID); s != nil && s.Status != StatusInProgress {
		s.Status = StatusInProgress
	}
}

// MarkCompleted moves a task to completed, stamping completedAt exactly
// once, and cascades spec completion when it was the last open task.
func MarkCompleted(doc *Document, specID, taskID string) {
	t := doc.FindTask(specID, taskID)
	if t == nil || t.Status == StatusCompleted {
		return
	}
	t.Status = StatusCompleted
	t.BlockedReason = ""
	if t.CompletedAt == nil {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}

	if s := doc.FindSpec(specID); s != nil && s.AllCompleted() {
		s.Status = StatusCompleted
	}
}

// MarkBlocked moves a task to blocked with the agent-reported reason.
func MarkBlocked(doc *Document, specID, taskID, reason string) {
	t := doc.FindTask(specID, taskID)
	if t == nil || t.Status == StatusCompleted {
		return
	}
	t.Status = StatusBlocked
	t.BlockedReason = reason
}

// MarkFailed records a failed verification attempt and bumps the retry
// counter.
func MarkFailed(doc *Document, specID, taskID string) {
	t := doc.FindTask(specID, taskID)
	if t == nil || t.Status == StatusCompleted {
		return
	}
	t.Status = StatusFailed
	t.RetryCount++
}

// ResetToPending is the one sanctioned backward transition: an operator
// clears a failed or blocked task (or one orphaned in_progress by a crash)
// back to pending for a future retry.
func ResetToPending(doc *Document, specID, taskID string) {
	t := doc.FindTask(specID, taskID)
	if t == nil || t.Status == StatusCompleted {
		return
	}
	t.Status = StatusPending
	t.BlockedReason = ""

	// A finalized spec with runnable work again goes back to pending so the
	// scheduler can promote it.
	if s := doc.FindSpec(specID); s != nil && s.Status == StatusBlocked {
		s.Status = StatusPending
	}
}

// Validate checks document-level invariants. It is used by the store on
// load to reject corrupt documents early.
func Validate(doc *Document) error {
	if doc.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d", doc.SchemaVersion)
	}

	inProgress := 0
	specIDs := make(map[string]bool)
	for _, s := range doc.Specs {
		if specIDs[s.ID] {
			return fmt.Errorf("duplicate spec id %q", s.ID)
		}
		specIDs[s.ID] = true
		if s.Status == StatusInProgress {
			inProgress++
		}

		taskIDs := make(map[string]bool)
		for _, t := range s.Tasks {
			if taskIDs[t.ID] {
				return fmt.Errorf("duplicate task id %q in spec %q", t.ID, s.ID)
			}
			taskIDs[t.ID] = true
			if (t.CompletedAt != nil) != (t.Status == StatusCompleted) {
				return fmt.Errorf("task %q: completedAt set without completed status", t.ID)
			}
		}
	}
	if inProgress > 1 {
		return fmt.Errorf("%d specs in_progress, want at most 1", inProgress)
	}
	return nil
}
