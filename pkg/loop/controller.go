// Package loop drives build sessions: it picks the next runnable task,
// launches one agent process per iteration, verifies the result through
// the configured gates, and records the outcome before moving on.
package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/pkg/agent"
	"github.com/drover-dev/drover/pkg/gates"
	"github.com/drover-dev/drover/pkg/prompt"
	"github.com/drover-dev/drover/pkg/session"
	"github.com/drover-dev/drover/pkg/task"
)

// Reason explains why a run ended.
type Reason string

const (
	// ReasonAllDone means every spec completed.
	ReasonAllDone Reason = "all specs completed"

	// ReasonNoRunnableTasks means the remaining work is blocked or failed
	// and nothing can be scheduled.
	ReasonNoRunnableTasks Reason = "no runnable tasks remain"

	// ReasonIterationLimit means the iteration cap was reached with work
	// still open.
	ReasonIterationLimit Reason = "iteration limit reached"

	// ReasonCanceled means the run was stopped from outside.
	ReasonCanceled Reason = "canceled"
)

// Outcome summarizes a finished run.
type Outcome struct {
	Reason     Reason
	Iterations int
	SessionID  string
}

// CompletionRecorder receives completed tasks for long-term memory.
// A nil recorder disables recording.
type CompletionRecorder interface {
	RecordCompletion(ctx context.Context, spec *task.Spec, t *task.Task) error
}

// Controller runs the build loop for one project.
type Controller struct {
	// ProjectDir is the working directory agents and gates run in.
	ProjectDir string

	Store    *task.Store
	Sessions *session.Manager
	Builder  agent.Builder
	Request  agent.Request
	Gates    []gates.Gate

	MaxIterations    int
	MaxRetries       int
	IterationTimeout time.Duration
	Cooldown         time.Duration

	// Memory, when set, receives every completed task.
	Memory CompletionRecorder

	// Command, when set, replaces the builder's command entirely. Tests
	// use it to substitute a scripted agent.
	Command *agent.Command

	Log arbor.ILogger
}

// retryState carries failed-gate evidence from one attempt to the next
// prompt for the same task. It lives in memory only; the document keeps
// the durable retry count.
type retryState struct {
	taskID   string
	failures []gates.Result
}

// Run executes iterations until every spec is resolved, the iteration
// cap is hit, or ctx is canceled. Document and session state are
// persisted before and after every agent launch, so a killed controller
// can resume from disk.
func (c *Controller) Run(ctx context.Context) (*Outcome, error) {
	if c.Log == nil {
		c.Log = logger.GetLogger()
	}
	if c.MaxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive")
	}
	if c.MaxRetries <= 0 {
		return nil, fmt.Errorf("max retries must be positive")
	}

	s, err := c.Sessions.Start(session.ModeBuild, string(c.Builder.Type()), c.Request.Model)
	if err != nil {
		return nil, err
	}
	slog, err := session.OpenLog(c.Sessions.LogPathFor(s.ID))
	if err != nil {
		return nil, err
	}
	slog.Event("session %s started", s.ID)

	runner := &gates.Runner{Dir: c.ProjectDir}
	var retry *retryState

	for iteration := 1; iteration <= c.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return c.finishStopped(s, slog, iteration-1)
		}
		if err := c.Sessions.SetIteration(s, iteration); err != nil {
			return nil, err
		}

		doc, err := c.Store.Load()
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, fmt.Errorf("no implementation document at %s", c.Store.Path())
		}

		spec, target := c.selectTask(doc, retry)
		if target == nil {
			if err := c.Store.Save(doc, task.ActorBuild); err != nil {
				return nil, err
			}
			return c.finishResolved(s, slog, doc, iteration-1)
		}

		// The claim is on disk before the agent starts, so a crash mid
		// iteration leaves a resumable in_progress task, never a lost one.
		task.MarkInProgress(doc, spec.ID, target.ID)
		if err := c.Store.Save(doc, task.ActorBuild); err != nil {
			return nil, err
		}

		text := c.composePrompt(spec, target, retry)
		c.Log.Info().
			Str("task", target.ID).
			Int("iteration", iteration).
			Int("retries", target.RetryCount).
			Msg("Launching agent")
		slog.Event("iteration %d: task %s", iteration, target.ID)

		res := c.runAgent(ctx, text, slog, s)
		if ctx.Err() != nil {
			return c.finishStopped(s, slog, iteration)
		}

		retry = c.applyResult(ctx, doc, spec, target, res, retry, runner, slog)
		if err := c.Store.Save(doc, task.ActorBuild); err != nil {
			return nil, err
		}

		if !c.sleep(ctx) {
			return c.finishStopped(s, slog, iteration)
		}
	}

	slog.Event("iteration limit (%d) reached", c.MaxIterations)
	if err := c.Sessions.Complete(s); err != nil {
		return nil, err
	}
	return &Outcome{Reason: ReasonIterationLimit, Iterations: c.MaxIterations, SessionID: s.ID}, nil
}

// selectTask returns the task to run this iteration: the retried task if
// one is pending another attempt, otherwise the scheduler's pick.
func (c *Controller) selectTask(doc *task.Document, retry *retryState) (*task.Spec, *task.Task) {
	if retry != nil {
		for _, s := range doc.Specs {
			if t := doc.FindTask(s.ID, retry.taskID); t != nil && t.Status == task.StatusFailed {
				return s, t
			}
		}
	}
	return task.NextPendingTask(doc)
}

// composePrompt builds the iteration prompt, folding in failed-gate
// evidence when this is a repeat attempt.
func (c *Controller) composePrompt(spec *task.Spec, target *task.Task, retry *retryState) string {
	if retry != nil && retry.taskID == target.ID {
		return prompt.ComposeRetry(spec, target, retry.failures, target.RetryCount+1)
	}
	return prompt.Compose(spec, target)
}

// applyResult records the iteration's outcome on the document and
// returns the retry state for the next iteration, if any.
func (c *Controller) applyResult(ctx context.Context, doc *task.Document, spec *task.Spec,
	target *task.Task, res agentResult, retry *retryState, runner *gates.Runner, slog *session.Log) *retryState {

	switch {
	case res.blocked:
		task.MarkBlocked(doc, spec.ID, target.ID, res.reason)
		c.Log.Warn().Str("task", target.ID).Str("reason", res.reason).Msg("Task blocked by agent")
		slog.Event("task %s blocked: %s", target.ID, res.reason)
		return nil

	case res.done:
		results := c.runGates(ctx, runner, slog)
		if gates.AllRequiredPassed(results, c.Gates) {
			task.MarkCompleted(doc, spec.ID, target.ID)
			c.Log.Info().Str("task", target.ID).Msg("Task completed")
			slog.Event("task %s completed", target.ID)
			if c.Memory != nil {
				if err := c.Memory.RecordCompletion(ctx, spec, target); err != nil {
					c.Log.Warn().Err(err).Str("task", target.ID).Msg("Failed to record completion memory")
				}
			}
			return nil
		}
		failed := gates.FailedGates(results)
		slog.Event("task %s failed verification (%d gates)", target.ID, len(failed))
		return c.recordFailure(doc, spec, target, failed)

	case res.timedOut:
		why := fmt.Sprintf("iteration timed out after %s", c.IterationTimeout)
		slog.Event("task %s attempt failed: %s", target.ID, why)
		c.Log.Warn().Str("task", target.ID).Str("cause", why).Msg("Agent attempt failed")
		return c.recordFailure(doc, spec, target, nil)

	default:
		// No terminal marker: the exit is treated as transient. The task
		// stays in_progress and is picked up again next iteration; the
		// iteration cap bounds how long this can repeat.
		why := "agent exited without a completion marker"
		if res.err != nil {
			why = res.err.Error()
		}
		slog.Event("task %s: %s; task stays in progress", target.ID, why)
		c.Log.Warn().Str("task", target.ID).Str("cause", why).Msg("Agent exited without marker")
		return retry
	}
}

// recordFailure bumps the retry counter and either schedules another
// attempt or blocks the task at the retry ceiling.
func (c *Controller) recordFailure(doc *task.Document, spec *task.Spec,
	target *task.Task, failures []gates.Result) *retryState {

	task.MarkFailed(doc, spec.ID, target.ID)
	if target.RetryCount >= c.MaxRetries {
		reason := fmt.Sprintf("exceeded retry limit (%d attempts)", c.MaxRetries)
		task.MarkBlocked(doc, spec.ID, target.ID, reason)
		c.Log.Warn().Str("task", target.ID).Msg("Retry limit exceeded, task blocked")
		return nil
	}
	return &retryState{taskID: target.ID, failures: failures}
}

// runGates executes the configured gates and mirrors their output into
// the session log.
func (c *Controller) runGates(ctx context.Context, runner *gates.Runner, slog *session.Log) []gates.Result {
	if len(c.Gates) == 0 {
		return nil
	}
	results := runner.Run(ctx, c.Gates)
	for _, r := range results {
		verdict := "passed"
		if !r.Passed {
			verdict = fmt.Sprintf("failed (exit %d)", r.ExitCode)
		}
		slog.Event("gate %s %s", r.Name, verdict)
	}
	return results
}

func (c *Controller) finishResolved(s *session.Session, slog *session.Log,
	doc *task.Document, iterations int) (*Outcome, error) {

	reason := ReasonAllDone
	for _, spec := range doc.Specs {
		if spec.Status != task.StatusCompleted {
			reason = ReasonNoRunnableTasks
			break
		}
	}
	slog.Event("session finished: %s", reason)
	if err := c.Sessions.Complete(s); err != nil {
		return nil, err
	}
	return &Outcome{Reason: reason, Iterations: iterations, SessionID: s.ID}, nil
}

func (c *Controller) finishStopped(s *session.Session, slog *session.Log, iterations int) (*Outcome, error) {
	slog.Event("session stopped")
	if err := c.Sessions.MarkStopped(s); err != nil {
		return nil, err
	}
	return &Outcome{Reason: ReasonCanceled, Iterations: iterations, SessionID: s.ID}, nil
}

// sleep waits out the cooldown, returning false when ctx ended first.
func (c *Controller) sleep(ctx context.Context) bool {
	if c.Cooldown <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(c.Cooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
