// Package agent maps a logical "run this task" request onto a concrete
// command line for one of the supported coding-agent CLIs. Builders are
// pure: no state, no I/O, the same request always yields the same command.
package agent

import (
	"fmt"
	"os/exec"
	"sort"
)

// Type identifies a supported agent CLI.
type Type string

const (
	TypeClaude   Type = "claude"
	TypeCodex    Type = "codex"
	TypeGemini   Type = "gemini"
	TypeCursor   Type = "cursor"
	TypeOpencode Type = "opencode"
	TypeQwen     Type = "qwen"
	TypeCopilot  Type = "copilot"
)

// Request is the logical run request. The prompt itself travels over the
// process's stdin, so it is not part of the command line.
type Request struct {
	// Model selects a non-default model. Builders whose CLI uses semantic
	// modes rather than free-form model names silently drop values they do
	// not recognize.
	Model string

	// Verbose asks the agent for diagnostic output where supported.
	Verbose bool
}

// Command is a concrete external-command invocation.
type Command struct {
	Program string
	Args    []string
}

// String renders the invocation for logs.
func (c Command) String() string {
	s := c.Program
	for _, a := range c.Args {
		s += " " + a
	}
	return s
}

// Builder is the per-variant capability: build the command line, probe
// whether the CLI is installed, and describe how to install it. Installed
// and InstallHint are advisory and never fail.
type Builder interface {
	Type() Type
	Build(req Request) Command
	Installed() bool
	InstallHint() string
}

// builders is the variant lookup table. Selection is a map keyed on the
// Type enum; no hierarchy.
var builders = map[Type]Builder{
	TypeClaude:   claudeBuilder{},
	TypeCodex:    codexBuilder{},
	TypeGemini:   geminiBuilder{},
	TypeCursor:   cursorBuilder{},
	TypeOpencode: opencodeBuilder{},
	TypeQwen:     qwenBuilder{},
	TypeCopilot:  copilotBuilder{},
}

// Lookup returns the builder for a type.
func Lookup(t Type) (Builder, bool) {
	b, ok := builders[t]
	return b, ok
}

// ParseType validates a configured agent type string.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := builders[t]; !ok {
		return "", fmt.Errorf("unknown agent type %q", s)
	}
	return t, nil
}

// Types returns all supported agent types, sorted.
func Types() []Type {
	out := make([]Type, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// installed reports whether a program resolves on PATH.
func installed(program string) bool {
	_, err := lookPath(program)
	return err == nil
}
