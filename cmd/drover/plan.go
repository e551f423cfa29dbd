package main

import (
	"fmt"
	"os"

	"github.com/drover-dev/drover/internal/memory"
	"github.com/drover-dev/drover/pkg/config"
	"github.com/drover-dev/drover/pkg/planner"
	"github.com/drover-dev/drover/pkg/session"
	"github.com/drover-dev/drover/pkg/task"
)

func cmdPlan() error {
	cfg, paths, err := workspace()
	if err != nil {
		return err
	}

	sources, err := planner.LoadSources(paths.SpecsDir())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := planner.New(ctx, planner.Config{
		APIKey:   os.Getenv("GEMINI_API_KEY"),
		Model:    cfg.Plan.Model,
		Thinking: cfg.Plan.ThinkingLevel,
		Memory:   openMemory(paths),
	})
	if err != nil {
		return err
	}

	sessions := session.NewManager(paths.SessionFile())
	sess, err := sessions.Start(session.ModePlan, "planner", cfg.Plan.Model)
	if err != nil {
		return err
	}

	doc, err := p.Plan(ctx, sources)
	if err != nil {
		sessions.MarkStopped(sess)
		return err
	}

	if err := task.NewStore(paths.Document()).Save(doc, task.ActorPlan); err != nil {
		sessions.MarkStopped(sess)
		return err
	}
	if err := sessions.Complete(sess); err != nil {
		return err
	}

	total := 0
	for _, spec := range doc.Specs {
		total += len(spec.Tasks)
	}
	fmt.Printf("Planned %d spec(s), %d task(s).\n", len(doc.Specs), total)
	for _, spec := range doc.Specs {
		fmt.Printf("  %d. %s (%d tasks)\n", spec.Priority, spec.Name, len(spec.Tasks))
	}
	return nil
}

// openMemory opens the completion memory when embeddings are available.
// Memory is optional; a nil store disables it cleanly.
func openMemory(paths config.Paths) *memory.Store {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil
	}
	store, err := memory.Open(paths.MemoryDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: completion memory disabled: %v\n", err)
		return nil
	}
	return store
}
