package agent

// Each builder bakes in the flags that unattended operation needs all at
// once: non-interactive input, machine-readable output, and no interactive
// approval prompts. Only the model flag is conditional, and its name
// differs per CLI.

type claudeBuilder struct{}

func (claudeBuilder) Type() Type { return TypeClaude }

func (claudeBuilder) Build(req Request) Command {
	args := []string{
		"-p",
		"--output-format", "stream-json",
		"--dangerously-skip-permissions",
	}
	if req.Verbose {
		args = append(args, "--verbose")
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	return Command{Program: "claude", Args: args}
}

func (claudeBuilder) Installed() bool { return installed("claude") }

func (claudeBuilder) InstallHint() string {
	return "npm install -g @anthropic-ai/claude-code"
}

type codexBuilder struct{}

func (codexBuilder) Type() Type { return TypeCodex }

func (codexBuilder) Build(req Request) Command {
	args := []string{
		"exec",
		"--json",
		"--dangerously-bypass-approvals-and-sandbox",
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	return Command{Program: "codex", Args: args}
}

func (codexBuilder) Installed() bool { return installed("codex") }

func (codexBuilder) InstallHint() string {
	return "npm install -g @openai/codex"
}

type geminiBuilder struct{}

func (geminiBuilder) Type() Type { return TypeGemini }

func (geminiBuilder) Build(req Request) Command {
	args := []string{
		"--yolo",
		"--output-format", "json",
	}
	if req.Verbose {
		args = append(args, "--debug")
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	return Command{Program: "gemini", Args: args}
}

func (geminiBuilder) Installed() bool { return installed("gemini") }

func (geminiBuilder) InstallHint() string {
	return "npm install -g @google/gemini-cli"
}

type cursorBuilder struct{}

func (cursorBuilder) Type() Type { return TypeCursor }

func (cursorBuilder) Build(req Request) Command {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--force",
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	return Command{Program: "cursor-agent", Args: args}
}

func (cursorBuilder) Installed() bool { return installed("cursor-agent") }

func (cursorBuilder) InstallHint() string {
	return "curl https://cursor.com/install -fsS | bash"
}

type opencodeBuilder struct{}

func (opencodeBuilder) Type() Type { return TypeOpencode }

func (opencodeBuilder) Build(req Request) Command {
	args := []string{"run", "--print-logs"}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	return Command{Program: "opencode", Args: args}
}

func (opencodeBuilder) Installed() bool { return installed("opencode") }

func (opencodeBuilder) InstallHint() string {
	return "npm install -g opencode-ai"
}

type qwenBuilder struct{}

func (qwenBuilder) Type() Type { return TypeQwen }

func (qwenBuilder) Build(req Request) Command {
	args := []string{"--yolo"}
	if req.Verbose {
		args = append(args, "--debug")
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	return Command{Program: "qwen", Args: args}
}

func (qwenBuilder) Installed() bool { return installed("qwen") }

func (qwenBuilder) InstallHint() string {
	return "npm install -g @qwen-code/qwen-code"
}

// copilotModes are the semantic model modes the Copilot CLI accepts. Any
// other requested model is dropped so the agent runs at its default rather
// than failing an unattended session.
var copilotModes = map[string]bool{
	"gpt-5":             true,
	"claude-sonnet-4":   true,
	"claude-sonnet-4.5": true,
}

type copilotBuilder struct{}

func (copilotBuilder) Type() Type { return TypeCopilot }

func (copilotBuilder) Build(req Request) Command {
	args := []string{
		"--allow-all-tools",
		"--no-color",
	}
	if req.Model != "" && copilotModes[req.Model] {
		args = append(args, "--model", req.Model)
	}
	return Command{Program: "copilot", Args: args}
}

func (copilotBuilder) Installed() bool { return installed("copilot") }

func (copilotBuilder) InstallHint() string {
	return "npm install -g @github/copilot"
}
