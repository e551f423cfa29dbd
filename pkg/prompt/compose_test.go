package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drover-dev/drover/pkg/gates"
	"github.com/drover-dev/drover/pkg/task"
)

func threeTaskSpec() *task.Spec {
	return &task.Spec{
		ID: "payments", Name: "Payments", Status: task.StatusInProgress,
		Context: "Stripe integration lives under internal/billing",
		Tasks: []*task.Task{
			{ID: "payments-1", Description: "Create charge endpoint", Status: task.StatusCompleted},
			{ID: "payments-2", Description: "Add refund endpoint", Status: task.StatusPending,
				AcceptanceCriteria: []string{"refunds are idempotent"}},
			{ID: "payments-3", Description: "Wire webhook retries", Status: task.StatusPending},
		},
	}
}

func TestCompose_TaskIsolation(t *testing.T) {
	spec := threeTaskSpec()
	out := Compose(spec, spec.Tasks[1])

	// Target description appears under the Assignment heading.
	idx := strings.Index(out, "## Assignment")
	require.Greater(t, idx, 0)
	assert.Contains(t, out[idx:], "Add refund endpoint")

	// Completed predecessors appear; later tasks never do.
	assert.Contains(t, out, "- [x] Create charge endpoint")
	assert.NotContains(t, out, "Wire webhook retries")
}

func TestCompose_SpecNameAndContext(t *testing.T) {
	spec := threeTaskSpec()
	out := Compose(spec, spec.Tasks[1])

	assert.Contains(t, out, "# Spec: Payments")
	assert.Contains(t, out, "internal/billing")
}

func TestCompose_Placeholders(t *testing.T) {
	spec := threeTaskSpec()
	spec.Tasks[0].Status = task.StatusPending

	out := Compose(spec, spec.Tasks[2])
	assert.Contains(t, out, "(none yet)")
	assert.Contains(t, out, "(none specified)")
}

func TestCompose_AcceptanceCriteria(t *testing.T) {
	spec := threeTaskSpec()
	out := Compose(spec, spec.Tasks[1])
	assert.Contains(t, out, "- refunds are idempotent")
}

func TestCompose_NamesBothMarkers(t *testing.T) {
	spec := threeTaskSpec()
	out := Compose(spec, spec.Tasks[1])

	assert.Contains(t, out, DoneMarker)
	assert.Contains(t, out, BlockedMarker)
}

func TestCompose_NoVersionControl(t *testing.T) {
	spec := threeTaskSpec()
	out := Compose(spec, spec.Tasks[1])
	assert.Contains(t, out, "version control")
}

func TestComposeRetry_ContainsFailureEvidence(t *testing.T) {
	spec := threeTaskSpec()
	failures := []gates.Result{
		{Name: "typecheck", ExitCode: 1, Output: "src/billing.ts:12 typecheck: error TS123"},
	}

	out := ComposeRetry(spec, spec.Tasks[1], failures, 2)

	assert.Contains(t, out, "typecheck: error TS123")
	assert.Contains(t, out, `Gate "typecheck" failed (exit code 1)`)
	assert.Contains(t, out, "retry attempt #2")
}

func TestComposeRetry_TruncatesOversizedOutput(t *testing.T) {
	spec := threeTaskSpec()
	head := strings.Repeat("A", 3000)
	tail := "FINAL ERROR LINE"
	failures := []gates.Result{
		{Name: "test", ExitCode: 1, Output: head + strings.Repeat("B", 3000) + tail},
	}

	out := ComposeRetry(spec, spec.Tasks[1], failures, 3)

	assert.Contains(t, out, "[... output truncated ...]")
	assert.Contains(t, out, tail, "tail of the output survives truncation")
	assert.Less(t, len(out), 8000)
}

func TestComposeRetry_StartsFromBasePrompt(t *testing.T) {
	spec := threeTaskSpec()
	out := ComposeRetry(spec, spec.Tasks[1], nil, 2)

	assert.True(t, strings.Contains(out, "## Assignment"))
	assert.Contains(t, out, "Add refund endpoint")
	assert.NotContains(t, out, "Wire webhook retries")
}

func TestIsDone(t *testing.T) {
	assert.True(t, IsDone("some json then "+DoneMarker))
	assert.False(t, IsDone("nothing to see"))
}

func TestParseBlocked_RoundTrip(t *testing.T) {
	reasons := []string{
		"missing API key",
		"can't find config — unicode ✓ and 'quotes'",
		"punctuation: <>&;|$(){}",
	}

	for _, want := range reasons {
		line := BlockedMarker + ` reason="` + want + `"`
		got, ok := ParseBlocked(line)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestParseBlocked_NoReasonAttribute(t *testing.T) {
	got, ok := ParseBlocked(BlockedMarker + " and nothing else")
	assert.True(t, ok)
	assert.Empty(t, got)

	_, ok = ParseBlocked("an ordinary line")
	assert.False(t, ok)
}
