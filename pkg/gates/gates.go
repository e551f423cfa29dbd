// Package gates runs a project's verification commands after an agent
// claims a task is done. Each gate is an external shell command whose exit
// code decides whether the claimed completion is accepted.
package gates

import (
	"strings"
)

// Gate is one verification command.
type Gate struct {
	// Name labels the gate in logs and retry prompts. When empty, a name
	// is derived from the command's trailing token.
	Name string

	// Command is executed through the shell in the project directory.
	Command string

	// Required gates gatekeep completion; optional gates are informational.
	Required bool
}

// DisplayName returns the gate's name, deriving one from the command's
// trailing token when none was configured ("go test ./..." -> "./...").
func (g Gate) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	fields := strings.Fields(g.Command)
	if len(fields) == 0 {
		return "(empty)"
	}
	return fields[len(fields)-1]
}

// Result is the outcome of one gate run.
type Result struct {
	Name     string
	Command  string
	Required bool
	Passed   bool
	ExitCode int
	Output   string
	TimedOut bool
}

// AllRequiredPassed reports whether every required gate has a passing
// result. Results align positionally with gates: the runner executes
// gates in order, so a short results slice means the trailing gates
// never ran, and an unrun required gate counts as not passed. Names are
// not used for matching since derived names can collide.
func AllRequiredPassed(results []Result, gates []Gate) bool {
	for i, g := range gates {
		if !g.Required {
			continue
		}
		if i >= len(results) || !results[i].Passed {
			return false
		}
	}
	return true
}

// FailedGates filters the results down to failures, in run order.
func FailedGates(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
