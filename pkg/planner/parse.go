package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/drover-dev/drover/internal/memory"
	"github.com/drover-dev/drover/pkg/task"
)

// planPayload is the JSON shape the planning model is asked to produce
// for one spec file.
type planPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Context string `json:"context"`
	Tasks   []struct {
		Description        string   `json:"description"`
		AcceptanceCriteria []string `json:"acceptanceCriteria"`
	} `json:"tasks"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
}

// decompositionPrompt builds the instruction for one spec file. Prior
// completed work, when any is known, is included so the model does not
// plan tasks that redo it.
func decompositionPrompt(src Source, prior []memory.Related) string {
	var b strings.Builder
	b.WriteString("You are a planning assistant. Decompose the spec below into small,\n")
	b.WriteString("independently verifiable implementation tasks, ordered so each task\n")
	b.WriteString("builds on the previous ones.\n\n")
	b.WriteString("Respond with ONLY a JSON object, no prose, in this shape:\n")
	b.WriteString(`{
  "id": "kebab-case-identifier",
  "name": "Human readable name",
  "context": "one paragraph of background an implementer needs",
  "acceptanceCriteria": ["spec level criteria"],
  "tasks": [
    {"description": "what to do", "acceptanceCriteria": ["how to verify"]}
  ]
}` + "\n\n")
	if len(prior) > 0 {
		b.WriteString("Work already completed in this project (build on it, do not replan it):\n")
		for _, r := range prior {
			b.WriteString(fmt.Sprintf("- [%s] %s\n", r.TaskID, r.Description))
		}
		b.WriteString("\n")
	}
	b.WriteString("# Spec file: " + src.File + "\n\n")
	b.WriteString(src.Content)
	return b.String()
}

// parsePlan extracts the JSON object from a model response, tolerating
// markdown fences and surrounding prose.
func parsePlan(raw string) (*planPayload, error) {
	body := extractJSON(raw)
	if body == "" {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var payload planPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("parse plan JSON: %w", err)
	}
	if len(payload.Tasks) == 0 {
		return nil, fmt.Errorf("plan contains no tasks")
	}
	return &payload, nil
}

// extractJSON returns the outermost {...} span of s.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// buildSpec converts a parsed payload into a pending spec. Task ids are
// sequential under the spec id.
func buildSpec(file string, payload *planPayload, priority int) *task.Spec {
	id := slugify(payload.ID)
	if id == "" {
		id = slugify(payload.Name)
	}
	if id == "" {
		id = slugify(strings.TrimSuffix(file, ".md"))
	}

	name := payload.Name
	if name == "" {
		name = id
	}

	spec := &task.Spec{
		ID:                 id,
		File:               file,
		Name:               name,
		Priority:           priority,
		Status:             task.StatusPending,
		Context:            payload.Context,
		AcceptanceCriteria: payload.AcceptanceCriteria,
	}
	for i, pt := range payload.Tasks {
		spec.Tasks = append(spec.Tasks, &task.Task{
			ID:                 fmt.Sprintf("%s-%d", id, i+1),
			Description:        pt.Description,
			Status:             task.StatusPending,
			AcceptanceCriteria: pt.AcceptanceCriteria,
		})
	}
	return spec
}

// renumberTasks rewrites task ids after a spec id change.
func renumberTasks(spec *task.Spec) {
	for i, t := range spec.Tasks {
		t.ID = fmt.Sprintf("%s-%d", spec.ID, i+1)
	}
}

// slugify lowercases and kebab-cases an identifier candidate.
func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
