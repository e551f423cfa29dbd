package prompt

import (
	"fmt"
	"strings"

	"github.com/drover-dev/drover/pkg/gates"
	"github.com/drover-dev/drover/pkg/task"
)

// Output from a failed gate is excerpted head+tail so retry prompts stay
// bounded no matter how noisy a test run was.
const (
	maxGateExcerpt  = 4000
	excerptHead     = 2500
	excerptTail     = 1000
	truncationLabel = "\n[... output truncated ...]\n"
)

// Compose builds the prompt for one task. The composed text contains the
// target task's description and the descriptions of already-completed
// tasks, and nothing about any other task: each invocation operates with
// scoped, non-leaking context.
func Compose(spec *task.Spec, target *task.Task) string {
	var b strings.Builder

	b.WriteString("You are completing one assigned task inside a larger body of work.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Work only on the assignment below. Do not start other work.\n")
	b.WriteString("- Before assuming functionality is missing, search the codebase for it.\n")
	b.WriteString("- Do not run any version control operations (commit, push, branch, tag).\n\n")

	b.WriteString("# Spec: " + spec.Name + "\n\n")
	if spec.Context != "" {
		b.WriteString("## Context\n")
		b.WriteString(spec.Context + "\n\n")
	}

	b.WriteString("## Completed so far\n")
	completed := spec.CompletedTasks()
	if len(completed) == 0 {
		b.WriteString("(none yet)\n")
	} else {
		for _, t := range completed {
			b.WriteString("- [x] " + t.Description + "\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("## Assignment\n")
	b.WriteString(target.Description + "\n\n")

	b.WriteString("## Acceptance criteria\n")
	if len(target.AcceptanceCriteria) == 0 {
		b.WriteString("(none specified)\n")
	} else {
		for _, c := range target.AcceptanceCriteria {
			b.WriteString("- " + c + "\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("When the assignment fully meets its acceptance criteria, print\n")
	b.WriteString(DoneMarker + "\n")
	b.WriteString("on its own line. If you cannot proceed, print\n")
	b.WriteString(BlockedMarker + ` reason="<why you are blocked>"` + "\n")
	b.WriteString("and stop.\n")

	return b.String()
}

// ComposeRetry builds the prompt for a repeat attempt: the base prompt
// followed by the previous attempt's failed-gate evidence and the 1-based
// attempt number.
func ComposeRetry(spec *task.Spec, target *task.Task, failures []gates.Result, attempt int) string {
	var b strings.Builder
	b.WriteString(Compose(spec, target))

	b.WriteString("\n## Previous attempt failed\n")
	fmt.Fprintf(&b, "This is retry attempt #%d. The last attempt did not pass verification.\n", attempt)
	for _, f := range failures {
		fmt.Fprintf(&b, "\n### Gate %q failed (exit code %d)\n", f.Name, f.ExitCode)
		b.WriteString("```\n")
		b.WriteString(excerpt(f.Output))
		if !strings.HasSuffix(f.Output, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	b.WriteString("\nFix the reported problems, then complete the assignment as before.\n")

	return b.String()
}

// excerpt keeps the head and tail of oversized gate output with a
// truncation marker between them.
func excerpt(output string) string {
	if len(output) <= maxGateExcerpt {
		return output
	}
	return output[:excerptHead] + truncationLabel + output[len(output)-excerptTail:]
}
