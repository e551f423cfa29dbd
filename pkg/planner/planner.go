// Package planner turns markdown spec files into the implementation
// document: one spec entry per file, decomposed into ordered tasks by a
// planning model.
package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/drover-dev/drover/internal/memory"
	"github.com/drover-dev/drover/pkg/task"
)

// Config configures the planning model.
type Config struct {
	APIKey   string
	Model    string
	Thinking string // NONE, LOW, NORMAL, HIGH
	Timeout  time.Duration

	// Memory, when set, surfaces prior completed work as extra context
	// for each spec. A nil store disables enrichment.
	Memory *memory.Store
}

// Planner drives the planning model.
type Planner struct {
	client   *genai.Client
	model    string
	thinking string
	timeout  time.Duration
	memory   *memory.Store
}

// New creates a planner. The API key is required; everything else has a
// default.
func New(ctx context.Context, cfg Config) (*Planner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("planning model API key not configured")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-pro"
	}
	if cfg.Thinking == "" {
		cfg.Thinking = "NORMAL"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Planner{
		client:   client,
		model:    cfg.Model,
		thinking: cfg.Thinking,
		timeout:  cfg.Timeout,
		memory:   cfg.Memory,
	}, nil
}

// thinkingLevel converts the configured thinking level to the SDK enum.
func thinkingLevel(level string) genai.ThinkingLevel {
	switch strings.ToUpper(level) {
	case "NONE":
		return genai.ThinkingLevelMinimal
	case "LOW":
		return genai.ThinkingLevelLow
	case "NORMAL":
		return genai.ThinkingLevelMedium
	case "HIGH":
		return genai.ThinkingLevelHigh
	default:
		return genai.ThinkingLevelMedium
	}
}

// generate sends one prompt to the planning model.
func (p *Planner) generate(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingLevel: thinkingLevel(p.thinking),
		},
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(text), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return "", fmt.Errorf("empty response from API")
	}

	var out string
	if result.Candidates[0].Content != nil {
		for _, part := range result.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				out += part.Text
			}
		}
	}
	if out == "" {
		return "", fmt.Errorf("no text in response")
	}
	return out, nil
}

// Source is one markdown spec file to plan from.
type Source struct {
	File    string
	Content string
}

// LoadSources reads every markdown file in dir, sorted by name so plan
// priority follows file order.
func LoadSources(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read specs dir: %w", err)
	}

	var sources []Source
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read spec %s: %w", e.Name(), err)
		}
		sources = append(sources, Source{File: e.Name(), Content: string(data)})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].File < sources[j].File })
	if len(sources) == 0 {
		return nil, fmt.Errorf("no markdown specs in %s", dir)
	}
	return sources, nil
}

// relatedLimit bounds how many prior completions enrich one spec prompt.
const relatedLimit = 5

// priorWork queries the completion memory for work related to a source.
// Memory is optional enrichment: a missing or failing store yields none.
func (p *Planner) priorWork(ctx context.Context, src Source) []memory.Related {
	query := src.Content
	if len(query) > 2000 {
		query = query[:2000]
	}
	related, err := p.memory.FindRelated(ctx, query, relatedLimit)
	if err != nil {
		return nil
	}
	return related
}

// Plan decomposes each source into a spec with ordered tasks and
// assembles the implementation document. Priorities follow source
// order, starting at 1.
func (p *Planner) Plan(ctx context.Context, sources []Source) (*task.Document, error) {
	doc := task.NewDocument()
	seen := make(map[string]bool)

	for i, src := range sources {
		raw, err := p.generate(ctx, decompositionPrompt(src, p.priorWork(ctx, src)))
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", src.File, err)
		}
		payload, err := parsePlan(raw)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", src.File, err)
		}

		spec := buildSpec(src.File, payload, i+1)
		if seen[spec.ID] {
			spec.ID = fmt.Sprintf("%s-%d", spec.ID, i+1)
			renumberTasks(spec)
		}
		seen[spec.ID] = true
		doc.Specs = append(doc.Specs, spec)
	}

	if err := task.Validate(doc); err != nil {
		return nil, fmt.Errorf("planned document invalid: %w", err)
	}
	return doc, nil
}
