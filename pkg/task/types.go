// Package task defines the persisted implementation document: an ordered
// list of specs, each owning an ordered list of tasks, plus the pure
// mutation helpers the build loop drives the state machine with.
package task

import "time"

// SchemaVersion is the current implementation document schema.
const SchemaVersion = 1

// Status is the lifecycle state of a spec or task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusFailed     Status = "failed"
)

// Actor identifies which writer last touched the document.
type Actor string

const (
	ActorPlan  Actor = "plan"
	ActorBuild Actor = "build"
	ActorUser  Actor = "user"
)

// Document is the single persisted root. The whole document is rewritten on
// every mutation, so readers always see a consistent snapshot.
type Document struct {
	SchemaVersion int       `json:"schemaVersion"`
	UpdatedAt     time.Time `json:"updatedAt"`
	UpdatedBy     Actor     `json:"updatedBy"`
	Specs         []*Spec   `json:"specs"`
}

// Spec is one unit of feature requirements, decomposed into tasks.
type Spec struct {
	ID                 string   `json:"id"`
	File               string   `json:"file"`
	Name               string   `json:"name"`
	Priority           int      `json:"priority"`
	Status             Status   `json:"status"`
	Context            string   `json:"context,omitempty"`
	Tasks              []*Task  `json:"tasks"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty"`
}

// Task is the smallest schedulable unit of work, assigned to exactly one
// agent invocation per attempt.
type Task struct {
	ID                 string     `json:"id"`
	Description        string     `json:"description"`
	Status             Status     `json:"status"`
	AcceptanceCriteria []string   `json:"acceptanceCriteria,omitempty"`
	BlockedReason      string     `json:"blockedReason,omitempty"`
	RetryCount         int        `json:"retryCount,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

// NewDocument creates an empty document at the current schema version.
func NewDocument() *Document {
	return &Document{
		SchemaVersion: SchemaVersion,
		Specs:         []*Spec{},
	}
}

// FindSpec returns the spec with the given id, or nil.
func (d *Document) FindSpec(id string) *Spec {
	for _, s := range d.Specs {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// FindTask returns the task with the given id inside the given spec, or nil.
func (d *Document) FindTask(specID, taskID string) *Task {
	s := d.FindSpec(specID)
	if s == nil {
		return nil
	}
	for _, t := range s.Tasks {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

// CompletedTasks returns the spec's completed tasks in document order.
func (s *Spec) CompletedTasks() []*Task {
	var done []*Task
	for _, t := range s.Tasks {
		if t.Status == StatusCompleted {
			done = append(done, t)
		}
	}
	return done
}

// AllCompleted reports whether every task in the spec is completed.
func (s *Spec) AllCompleted() bool {
	if len(s.Tasks) == 0 {
		return false
	}
	for _, t := range s.Tasks {
		if t.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Counts returns the number of tasks per status.
func (s *Spec) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, t := range s.Tasks {
		counts[t.Status]++
	}
	return counts
}

// Counts returns task counts per status across every spec.
func (d *Document) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, s := range d.Specs {
		for _, t := range s.Tasks {
			counts[t.Status]++
		}
	}
	return counts
}
