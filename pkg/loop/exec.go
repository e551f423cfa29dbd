package loop

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/drover-dev/drover/pkg/agent"
	"github.com/drover-dev/drover/pkg/prompt"
	"github.com/drover-dev/drover/pkg/session"
)

// agentResult is what one agent launch produced.
type agentResult struct {
	done     bool
	blocked  bool
	reason   string
	timedOut bool
	err      error
}

// scanBufSize bounds a single agent output line. Stream-JSON agents can
// emit very long lines.
const scanBufSize = 4 * 1024 * 1024

// runAgent launches one agent process with the prompt on stdin, streams
// its combined output into the session log, and watches for the terminal
// markers. The child's pid is persisted while it runs so an external
// stop can signal it.
func (c *Controller) runAgent(ctx context.Context, text string, slog *session.Log, s *session.Session) agentResult {
	command := c.agentCommand()

	iterCtx := ctx
	if c.IterationTimeout > 0 {
		var cancel context.CancelFunc
		iterCtx, cancel = context.WithTimeout(ctx, c.IterationTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(iterCtx, command.Program, command.Args...)
	cmd.Dir = c.ProjectDir
	cmd.Stdin = strings.NewReader(text)

	// One pipe carries stdout and stderr interleaved, the way a terminal
	// would show them.
	pr, pw, err := os.Pipe()
	if err != nil {
		return agentResult{err: err}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return agentResult{err: err}
	}
	// The parent's write end must close or the scanner never sees EOF.
	pw.Close()

	if err := c.Sessions.SetProcess(s, cmd.Process.Pid); err != nil {
		c.Log.Warn().Err(err).Msg("Failed to persist agent pid")
	}

	var res agentResult
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), scanBufSize)
	for scanner.Scan() {
		line := scanner.Text()
		if err := slog.Append(line); err != nil {
			c.Log.Warn().Err(err).Msg("Failed to append session log")
		}
		if !res.done && !res.blocked {
			if reason, ok := prompt.ParseBlocked(line); ok {
				res.blocked = true
				res.reason = reason
			} else if prompt.IsDone(line) {
				res.done = true
			}
		}
	}
	pr.Close()

	waitErr := cmd.Wait()
	if err := c.Sessions.ClearProcess(s); err != nil {
		c.Log.Warn().Err(err).Msg("Failed to clear agent pid")
	}

	if iterCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		res.timedOut = true
		res.done = false
		res.blocked = false
		return res
	}
	if waitErr != nil && !res.done && !res.blocked {
		res.err = waitErr
	}
	return res
}

// agentCommand resolves the command to launch: the test override when
// set, otherwise the builder's.
func (c *Controller) agentCommand() agent.Command {
	if c.Command != nil {
		return *c.Command
	}
	return c.Builder.Build(c.Request)
}
