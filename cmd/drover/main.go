// Package main provides the drover CLI.
//
// drover plans and builds software with coding-agent CLIs: a planning
// model decomposes markdown specs into tasks, and a build loop drives
// one agent process per task, verifying each result through configured
// gates before recording it.
//
// Usage:
//
//	drover init                      Initialize .drover/ in the current directory
//	drover plan                      Decompose .drover/specs/*.md into a task plan
//	drover build                     Run the build loop until done or stopped
//	drover status                    Show plan progress and session state
//	drover stop [--force]            Stop the running session
//	drover gates                     Run all configured gates once
//	drover agents                    List supported agent CLIs
//	drover reset <spec> <task>       Reset a blocked or failed task to pending
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drover-dev/drover/pkg/agent"
	"github.com/drover-dev/drover/pkg/config"
	"github.com/drover-dev/drover/pkg/gates"
	"github.com/drover-dev/drover/pkg/loop"
	"github.com/drover-dev/drover/pkg/session"
	"github.com/drover-dev/drover/pkg/task"
)

// version is set via -ldflags at build time
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = cmdInit()
	case "plan":
		err = cmdPlan()
	case "build":
		err = cmdBuild()
	case "status":
		err = cmdStatus()
	case "stop":
		err = cmdStop(args)
	case "gates":
		err = cmdGates()
	case "agents":
		err = cmdAgents()
	case "reset":
		err = cmdReset(args)
	case "version", "-v", "--version":
		fmt.Printf("drover version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`drover - autonomous coding-agent session orchestrator

Usage:
  drover <command> [args]

Commands:
  init                      Initialize .drover/ in the current directory
  plan                      Decompose .drover/specs/*.md into a task plan
  build                     Run the build loop until done or stopped
  status                    Show plan progress and session state
  stop [--force]            Stop the running session
  gates                     Run all configured gates once
  agents                    List supported agent CLIs
  reset <spec> <task>       Reset a blocked or failed task to pending
  version                   Show version
  help                      Show this help

Environment:
  GEMINI_API_KEY    API key for the planning model (plan command)
  OPENAI_API_KEY    Enables completion memory embeddings (optional)`)
}

// workspace resolves the current project's config and paths.
func workspace() (*config.Config, config.Paths, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, config.Paths{}, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, config.Paths{}, err
	}
	return cfg, config.Paths{ProjectDir: dir}, nil
}

func cmdInit() error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg, err := config.Init(dir)
	if err != nil {
		return err
	}

	fmt.Printf("Initialized %s\n", config.DataDirName)
	fmt.Printf("  agent: %s\n", cfg.Agent.Type)
	fmt.Printf("  specs: %s/specs/ (add markdown specs here, then run 'drover plan')\n", config.DataDirName)
	return nil
}

func cmdStatus() error {
	_, paths, err := workspace()
	if err != nil {
		return err
	}

	doc, err := task.NewStore(paths.Document()).Load()
	if err != nil {
		return err
	}
	if doc == nil {
		fmt.Println("No plan yet. Run 'drover plan' first.")
	} else {
		fmt.Printf("Plan updated %s by %s\n\n", doc.UpdatedAt.Format(time.RFC3339), doc.UpdatedBy)
		for _, spec := range doc.Specs {
			counts := spec.Counts()
			fmt.Printf("[%s] %s (%s)\n", spec.Status, spec.Name, spec.ID)
			fmt.Printf("  %d/%d tasks completed", counts[task.StatusCompleted], len(spec.Tasks))
			if n := counts[task.StatusBlocked]; n > 0 {
				fmt.Printf(", %d blocked", n)
			}
			fmt.Println()
			for _, t := range spec.Tasks {
				if t.Status == task.StatusBlocked {
					fmt.Printf("  ! %s: %s\n", t.ID, t.BlockedReason)
				}
			}
		}
		fmt.Println()
	}

	sess, err := session.NewManager(paths.SessionFile()).Load()
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Println("No session yet.")
		return nil
	}
	fmt.Printf("Session %s: %s (%s mode, iteration %d)\n",
		sess.ID, sess.Status, sess.Mode, sess.Iteration)
	if sess.Status == session.StatusRunning && sess.ProcessID != 0 {
		alive := "dead"
		if session.Alive(sess.ProcessID) {
			alive = "alive"
		}
		fmt.Printf("Agent process %d is %s\n", sess.ProcessID, alive)
	}
	return nil
}

func cmdStop(args []string) error {
	cfg, paths, err := workspace()
	if err != nil {
		return err
	}

	force := len(args) > 0 && args[0] == "--force"
	sessions := session.NewManager(paths.SessionFile())

	sess, err := sessions.Stop(cfg.Loop.GracePeriod.Duration(), force)
	switch {
	case errors.Is(err, session.ErrNotRunning):
		fmt.Println("No running session.")
		return nil
	case errors.Is(err, session.ErrStillAlive):
		return fmt.Errorf("agent survived the grace period; run 'drover stop --force' to kill it")
	case err != nil:
		return err
	}

	fmt.Printf("Session %s stopped.\n", sess.ID)
	return nil
}

func cmdGates() error {
	cfg, paths, err := workspace()
	if err != nil {
		return err
	}
	if len(cfg.Gates) == 0 {
		fmt.Println("No gates configured.")
		return nil
	}

	runner := &gates.Runner{Dir: paths.ProjectDir, RunAll: true}
	results := runner.Run(context.Background(), toGates(cfg.Gates))

	failed := 0
	for _, r := range results {
		mark := "ok"
		if !r.Passed {
			mark = fmt.Sprintf("FAIL (exit %d)", r.ExitCode)
			failed++
		}
		fmt.Printf("%-20s %s\n", r.Name, mark)
	}
	if failed > 0 {
		return fmt.Errorf("%d gate(s) failed", failed)
	}
	return nil
}

func cmdAgents() error {
	for _, t := range agent.Types() {
		b, _ := agent.Lookup(t)
		status := "not installed"
		if b.Installed() {
			status = "installed"
		}
		fmt.Printf("%-10s %-14s %s\n", t, status, b.InstallHint())
	}
	return nil
}

func cmdReset(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: drover reset <spec-id> <task-id>")
	}
	_, paths, err := workspace()
	if err != nil {
		return err
	}

	store := task.NewStore(paths.Document())
	doc, err := store.Load()
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("no plan yet")
	}

	target := doc.FindTask(args[0], args[1])
	if target == nil {
		return fmt.Errorf("task %s/%s not found", args[0], args[1])
	}
	if target.Status == task.StatusCompleted {
		return fmt.Errorf("completed tasks cannot be reset")
	}

	task.ResetToPending(doc, args[0], args[1])
	if err := store.Save(doc, task.ActorUser); err != nil {
		return err
	}
	fmt.Printf("Task %s reset to pending.\n", target.ID)
	return nil
}

func toGates(entries []config.GateEntry) []gates.Gate {
	out := make([]gates.Gate, 0, len(entries))
	for _, e := range entries {
		out = append(out, gates.Gate{
			Name:     e.Name,
			Command:  e.Command,
			Required: e.Required,
		})
	}
	return out
}

// signalContext cancels on SIGINT/SIGTERM so a Ctrl-C lands as a clean
// session stop.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func cmdBuild() error {
	cfg, paths, err := workspace()
	if err != nil {
		return err
	}

	agentType, err := agent.ParseType(cfg.Agent.Type)
	if err != nil {
		return err
	}
	builder, _ := agent.Lookup(agentType)
	if !builder.Installed() {
		return fmt.Errorf("agent %q is not installed (%s)", agentType, builder.InstallHint())
	}

	ctx, cancel := signalContext()
	defer cancel()

	var recorder loop.CompletionRecorder
	if mem := openMemory(paths); mem != nil {
		recorder = mem
	}

	controller := &loop.Controller{
		ProjectDir:       paths.ProjectDir,
		Store:            task.NewStore(paths.Document()),
		Sessions:         session.NewManager(paths.SessionFile()),
		Builder:          builder,
		Request:          agent.Request{Model: cfg.Agent.Model, Verbose: cfg.Agent.Verbose},
		Gates:            toGates(cfg.Gates),
		MaxIterations:    cfg.Loop.MaxIterations,
		MaxRetries:       cfg.Loop.MaxRetries,
		IterationTimeout: cfg.Loop.IterationTimeout.Duration(),
		Cooldown:         cfg.Loop.Cooldown.Duration(),
		Memory:           recorder,
	}

	outcome, err := controller.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Build finished after %d iteration(s): %s\n", outcome.Iterations, outcome.Reason)
	fmt.Printf("Session log: %s\n", controller.Sessions.LogPathFor(outcome.SessionID))
	return nil
}
