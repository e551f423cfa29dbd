package gates

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

const (
	// DefaultTimeout bounds a single gate command.
	DefaultTimeout = 10 * time.Minute

	// DefaultMaxOutput bounds the captured combined output per gate.
	DefaultMaxOutput = 256 * 1024
)

// Runner executes gates in order inside a working directory.
type Runner struct {
	// Dir is the working directory for every gate command.
	Dir string

	// Timeout bounds each gate; zero means DefaultTimeout.
	Timeout time.Duration

	// MaxOutput caps captured output per gate; zero means DefaultMaxOutput.
	MaxOutput int

	// RunAll keeps running after a required failure instead of stopping.
	RunAll bool
}

// Run executes the gates in order. It stops at the first required gate
// that fails unless RunAll is set; results for gates that were not run are
// simply absent.
func (r *Runner) Run(ctx context.Context, gates []Gate) []Result {
	results := make([]Result, 0, len(gates))
	for _, g := range gates {
		res := r.runOne(ctx, g)
		results = append(results, res)
		if !res.Passed && res.Required && !r.RunAll {
			break
		}
	}
	return results
}

// runOne launches a single gate command with a bounded timeout and output
// buffer. A zero exit code is a pass; timeouts and launch errors fail with
// whatever output was captured plus the error message appended.
func (r *Runner) runOne(ctx context.Context, g Gate) Result {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxOutput := r.MaxOutput
	if maxOutput == 0 {
		maxOutput = DefaultMaxOutput
	}

	res := Result{
		Name:     g.DisplayName(),
		Command:  g.Command,
		Required: g.Required,
	}

	gateCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(gateCtx, "sh", "-c", g.Command)
	cmd.Dir = r.Dir

	output, err := cmd.CombinedOutput()
	if len(output) > maxOutput {
		output = output[:maxOutput]
	}
	res.Output = string(output)

	if gateCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		res.Output += fmt.Sprintf("\n[gate timed out after %s]", timeout)
		return res
	}

	if err == nil {
		res.Passed = true
		return res
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
	} else {
		// Launch failure (e.g. shell missing); no exit code to report.
		res.ExitCode = -1
		res.Output += "\n[launch error: " + err.Error() + "]"
	}
	return res
}
