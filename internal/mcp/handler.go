// Package mcp exposes drover project state to AI assistants over the
// Model Context Protocol. All tools are read-only: assistants observe
// plans and sessions, they never mutate them.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/drover-dev/drover/internal/project"
	"github.com/drover-dev/drover/pkg/session"
	"github.com/drover-dev/drover/pkg/task"
)

// Server wraps the project manager behind MCP tools.
type Server struct {
	registry *project.Registry
	manager  *project.Manager
	server   *server.MCPServer
}

// NewServer creates the MCP server and registers its tools.
func NewServer(registry *project.Registry, manager *project.Manager) *Server {
	s := &Server{
		registry: registry,
		manager:  manager,
	}

	mcpServer := server.NewMCPServer(
		"drover",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.server = mcpServer
	return s
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("list_projects",
			mcp.WithDescription("List all projects drover manages."),
		),
		s.handleListProjects,
	)

	mcpServer.AddTool(
		mcp.NewTool("project_status",
			mcp.WithDescription("Get a project's plan progress and current session state."),
			mcp.WithString("project_id",
				mcp.Required(),
				mcp.Description("Project ID from list_projects"),
			),
		),
		s.handleProjectStatus,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_document",
			mcp.WithDescription("Get a project's full implementation document: specs, tasks, statuses, blocked reasons."),
			mcp.WithString("project_id",
				mcp.Required(),
				mcp.Description("Project ID from list_projects"),
			),
		),
		s.handleGetDocument,
	)

	mcpServer.AddTool(
		mcp.NewTool("next_task",
			mcp.WithDescription("Show the task a build session would run next, without claiming it."),
			mcp.WithString("project_id",
				mcp.Required(),
				mcp.Description("Project ID from list_projects"),
			),
		),
		s.handleNextTask,
	)

	mcpServer.AddTool(
		mcp.NewTool("session_log",
			mcp.WithDescription("Tail the current session's log."),
			mcp.WithString("project_id",
				mcp.Required(),
				mcp.Description("Project ID from list_projects"),
			),
			mcp.WithNumber("lines",
				mcp.Description("Number of trailing lines (default: 50)"),
			),
		),
		s.handleSessionLog,
	)
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects := s.registry.List()
	if len(projects) == 0 {
		return mcp.NewToolResultText("No projects registered."), nil
	}

	var sb strings.Builder
	sb.WriteString("Registered projects:\n\n")
	for _, p := range projects {
		sb.WriteString(fmt.Sprintf("- **%s** (ID: %s)\n  Path: %s\n  Registered: %s\n\n",
			p.Name, p.ID, p.Path, p.RegisteredAt.Format(time.RFC3339)))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleProjectStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, result := s.lookupProject(request)
	if result != nil {
		return result, nil
	}

	status, err := s.manager.StatusOf(p)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read status failed: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Project %s (%s)\n", p.Name, p.ID))
	if !status.Planned {
		sb.WriteString("No implementation plan yet.\n")
	} else {
		sb.WriteString("Task counts:\n")
		for _, st := range []task.Status{
			task.StatusPending, task.StatusInProgress, task.StatusCompleted,
			task.StatusBlocked, task.StatusFailed,
		} {
			if n := status.Counts[st]; n > 0 {
				sb.WriteString(fmt.Sprintf("- %s: %d\n", st, n))
			}
		}
	}
	if status.Session != nil {
		sb.WriteString(fmt.Sprintf("Session %s: %s (%s mode, iteration %d)\n",
			status.Session.ID, status.Session.Status, status.Session.Mode, status.Session.Iteration))
	} else {
		sb.WriteString("No session yet.\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, result := s.lookupProject(request)
	if result != nil {
		return result, nil
	}

	doc, err := s.manager.Store(p).Load()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load document failed: %v", err)), nil
	}
	if doc == nil {
		return mcp.NewToolResultError("project has no implementation document"), nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal document failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleNextTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, result := s.lookupProject(request)
	if result != nil {
		return result, nil
	}

	doc, err := s.manager.Store(p).Load()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load document failed: %v", err)), nil
	}
	if doc == nil {
		return mcp.NewToolResultError("project has no implementation document"), nil
	}

	// Selection mutates spec statuses in memory; the document is not
	// saved, so this is a pure preview.
	spec, next := task.NextPendingTask(doc)
	if next == nil {
		return mcp.NewToolResultText("No runnable tasks remain."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Next task: %s (spec %q)\n%s", next.ID, spec.Name, next.Description)), nil
}

func (s *Server) handleSessionLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, result := s.lookupProject(request)
	if result != nil {
		return result, nil
	}

	sessions := s.manager.Sessions(p)
	sess, err := sessions.Load()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load session failed: %v", err)), nil
	}
	if sess == nil {
		return mcp.NewToolResultError("project has no session"), nil
	}

	lines := request.GetInt("lines", 50)
	log, err := session.OpenLog(sessions.LogPathFor(sess.ID))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open log failed: %v", err)), nil
	}
	tail, err := log.Tail(lines)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read log failed: %v", err)), nil
	}
	if len(tail) == 0 {
		return mcp.NewToolResultText("Log is empty."), nil
	}
	return mcp.NewToolResultText(strings.Join(tail, "\n")), nil
}

// lookupProject resolves the project_id argument; the second return is
// non-nil when the lookup failed and holds the error result.
func (s *Server) lookupProject(request mcp.CallToolRequest) (*project.Project, *mcp.CallToolResult) {
	id := request.GetString("project_id", "")
	if id == "" {
		return nil, mcp.NewToolResultError("project_id parameter is required")
	}
	p, err := s.registry.Get(id)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("project not found: %s", id))
	}
	return p, nil
}

// ServeStdio starts the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.server)
}
