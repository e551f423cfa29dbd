package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoSpecDoc() *Document {
	return &Document{
		SchemaVersion: SchemaVersion,
		Specs: []*Spec{
			{
				ID: "auth-service", Name: "Auth service", Priority: 2, Status: StatusPending,
				Tasks: []*Task{
					{ID: "auth-service-1", Description: "Add login endpoint", Status: StatusPending},
					{ID: "auth-service-2", Description: "Add logout endpoint", Status: StatusPending},
				},
			},
			{
				ID: "rate-limiter", Name: "Rate limiter", Priority: 1, Status: StatusPending,
				Tasks: []*Task{
					{ID: "rate-limiter-1", Description: "Implement token bucket", Status: StatusPending},
				},
			},
		},
	}
}

func TestNextPendingTask_PromotesLowestPriority(t *testing.T) {
	doc := twoSpecDoc()

	spec, tsk := NextPendingTask(doc)
	require.NotNil(t, spec)
	require.NotNil(t, tsk)

	assert.Equal(t, "rate-limiter", spec.ID)
	assert.Equal(t, "rate-limiter-1", tsk.ID)
	assert.Equal(t, StatusInProgress, spec.Status)
}

func TestNextPendingTask_KeepsActiveSpec(t *testing.T) {
	doc := twoSpecDoc()
	doc.Specs[0].Status = StatusInProgress

	// The higher-priority pending spec must not preempt the active one.
	spec, _ := NextPendingTask(doc)
	assert.Equal(t, "auth-service", spec.ID)
}

func TestNextPendingTask_ResumesInProgressTask(t *testing.T) {
	doc := twoSpecDoc()
	doc.Specs[1].Status = StatusInProgress
	doc.Specs[1].Tasks[0].Status = StatusInProgress

	// A task orphaned in_progress by a crash is picked up again.
	spec, tsk := NextPendingTask(doc)
	assert.Equal(t, "rate-limiter", spec.ID)
	assert.Equal(t, "rate-limiter-1", tsk.ID)
}

func TestNextPendingTask_SkipsExhaustedSpec(t *testing.T) {
	doc := twoSpecDoc()
	doc.Specs[1].Status = StatusInProgress
	MarkCompleted(doc, "rate-limiter", "rate-limiter-1")

	// One call skips past the just-completed spec to the next one.
	spec, tsk := NextPendingTask(doc)
	require.NotNil(t, tsk)
	assert.Equal(t, "auth-service", spec.ID)
	assert.Equal(t, "auth-service-1", tsk.ID)
	assert.Equal(t, StatusCompleted, doc.Specs[1].Status)
}

func TestNextPendingTask_BlockedSpecIsFinalized(t *testing.T) {
	doc := twoSpecDoc()
	doc.Specs[1].Status = StatusInProgress
	MarkBlocked(doc, "rate-limiter", "rate-limiter-1", "missing API key")

	spec, tsk := NextPendingTask(doc)
	require.NotNil(t, tsk)
	assert.Equal(t, "auth-service", spec.ID)
	assert.Equal(t, StatusBlocked, doc.Specs[1].Status)
}

func TestNextPendingTask_NoWorkLeft(t *testing.T) {
	doc := twoSpecDoc()
	for _, s := range doc.Specs {
		for _, tk := range s.Tasks {
			now := time.Now().UTC()
			tk.Status = StatusCompleted
			tk.CompletedAt = &now
		}
		s.Status = StatusCompleted
	}

	spec, tsk := NextPendingTask(doc)
	assert.Nil(t, spec)
	assert.Nil(t, tsk)
}

func TestNextPendingTask_AtMostOneSpecInProgress(t *testing.T) {
	doc := twoSpecDoc()

	for i := 0; i < 5; i++ {
		spec, tsk := NextPendingTask(doc)
		if tsk == nil {
			break
		}
		MarkInProgress(doc, spec.ID, tsk.ID)
		MarkCompleted(doc, spec.ID, tsk.ID)

		inProgress := 0
		for _, s := range doc.Specs {
			if s.Status == StatusInProgress {
				inProgress++
			}
		}
		assert.LessOrEqual(t, inProgress, 1)
	}
}

func TestMarkCompleted_StampsCompletedAtOnce(t *testing.T) {
	doc := twoSpecDoc()
	before := time.Now().UTC()
	MarkCompleted(doc, "rate-limiter", "rate-limiter-1")

	tsk := doc.FindTask("rate-limiter", "rate-limiter-1")
	require.NotNil(t, tsk.CompletedAt)
	first := *tsk.CompletedAt
	assert.False(t, first.Before(before))

	// A second call must not move the timestamp.
	MarkCompleted(doc, "rate-limiter", "rate-limiter-1")
	assert.Equal(t, first, *tsk.CompletedAt)
}

func TestMarkCompleted_CascadesSpecCompletion(t *testing.T) {
	doc := twoSpecDoc()
	doc.Specs[0].Status = StatusInProgress

	MarkCompleted(doc, "auth-service", "auth-service-1")
	assert.Equal(t, StatusInProgress, doc.Specs[0].Status, "spec completes only when every task has")

	MarkCompleted(doc, "auth-service", "auth-service-2")
	assert.Equal(t, StatusCompleted, doc.Specs[0].Status)
}

func TestMarkFailed_IncrementsRetryCount(t *testing.T) {
	doc := twoSpecDoc()

	MarkFailed(doc, "rate-limiter", "rate-limiter-1")
	MarkFailed(doc, "rate-limiter", "rate-limiter-1")

	tsk := doc.FindTask("rate-limiter", "rate-limiter-1")
	assert.Equal(t, StatusFailed, tsk.Status)
	assert.Equal(t, 2, tsk.RetryCount)
}

func TestMarkBlocked_StoresReasonVerbatim(t *testing.T) {
	doc := twoSpecDoc()
	reason := `missing API key: set GEMINI_API_KEY ('quotes', unicode ✓)`

	MarkBlocked(doc, "rate-limiter", "rate-limiter-1", reason)

	tsk := doc.FindTask("rate-limiter", "rate-limiter-1")
	assert.Equal(t, StatusBlocked, tsk.Status)
	assert.Equal(t, reason, tsk.BlockedReason)
}

func TestCompletedNeverTransitionsBackward(t *testing.T) {
	doc := twoSpecDoc()
	MarkCompleted(doc, "rate-limiter", "rate-limiter-1")
	tsk := doc.FindTask("rate-limiter", "rate-limiter-1")

	MarkBlocked(doc, "rate-limiter", "rate-limiter-1", "nope")
	assert.Equal(t, StatusCompleted, tsk.Status)

	MarkFailed(doc, "rate-limiter", "rate-limiter-1")
	assert.Equal(t, StatusCompleted, tsk.Status)

	ResetToPending(doc, "rate-limiter", "rate-limiter-1")
	assert.Equal(t, StatusCompleted, tsk.Status)
}

func TestResetToPending_ClearsFailure(t *testing.T) {
	doc := twoSpecDoc()
	MarkBlocked(doc, "rate-limiter", "rate-limiter-1", "flaky network")

	ResetToPending(doc, "rate-limiter", "rate-limiter-1")

	tsk := doc.FindTask("rate-limiter", "rate-limiter-1")
	assert.Equal(t, StatusPending, tsk.Status)
	assert.Empty(t, tsk.BlockedReason)
}

func TestResetToPending_ReopensBlockedSpec(t *testing.T) {
	doc := twoSpecDoc()
	doc.Specs[1].Status = StatusInProgress
	MarkBlocked(doc, "rate-limiter", "rate-limiter-1", "stuck")
	NextPendingTask(doc) // finalizes the blocked spec

	require.Equal(t, StatusBlocked, doc.Specs[1].Status)

	ResetToPending(doc, "rate-limiter", "rate-limiter-1")
	assert.Equal(t, StatusPending, doc.Specs[1].Status)
}

func TestMutationsAreNoOpsOnMissingIDs(t *testing.T) {
	doc := twoSpecDoc()

	MarkInProgress(doc, "nope", "nope-1")
	MarkCompleted(doc, "rate-limiter", "rate-limiter-99")
	MarkBlocked(doc, "missing", "missing-1", "x")
	MarkFailed(doc, "auth-service", "other-1")
	ResetToPending(doc, "auth-service", "")

	for _, s := range doc.Specs {
		assert.Equal(t, StatusPending, s.Status)
		for _, tk := range s.Tasks {
			assert.Equal(t, StatusPending, tk.Status)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Document)
		wantErr string
	}{
		{"valid", func(d *Document) {}, ""},
		{"bad schema", func(d *Document) { d.SchemaVersion = 99 }, "schema version"},
		{"duplicate spec", func(d *Document) { d.Specs[0].ID = "rate-limiter" }, "duplicate spec"},
		{"duplicate task", func(d *Document) { d.Specs[0].Tasks[1].ID = "auth-service-1" }, "duplicate task"},
		{
			"two specs in progress",
			func(d *Document) {
				d.Specs[0].Status = StatusInProgress
				d.Specs[1].Status = StatusInProgress
			},
			"in_progress",
		},
		{
			"stray completedAt",
			func(d *Document) {
				now := time.Now()
				d.Specs[0].Tasks[0].CompletedAt = &now
			},
			"completedAt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := twoSpecDoc()
			tt.mutate(doc)
			err := Validate(doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
