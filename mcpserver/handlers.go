package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jonwraymond/localops/govern"
	"github.com/jonwraymond/localops/identity"
	"github.com/jonwraymond/localops/observe"
	"github.com/jonwraymond/localops/validate"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the contents of a file inside the allowed directories"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the file")),
	), s.instrument("read_file", s.config.FileOpsCategory, s.handleReadFile))

	s.mcp.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Write content to a file inside the allowed directories"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the file")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Content to write")),
	), s.instrument("write_file", s.config.FileOpsCategory, s.handleWriteFile))

	s.mcp.AddTool(mcp.NewTool("list_directory",
		mcp.WithDescription("List the entries of a directory inside the allowed directories"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the directory")),
	), s.instrument("list_directory", s.config.FileOpsCategory, s.handleListDirectory))

	s.mcp.AddTool(mcp.NewTool("search_files",
		mcp.WithDescription("Search files under a directory for lines containing a pattern"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Directory to search under")),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Substring to search for")),
	), s.instrument("search_files", s.config.SearchesCategory, s.handleSearchFiles))

	s.mcp.AddTool(mcp.NewTool("run_command",
		mcp.WithDescription("Run an allowed command and return its output"),
		mcp.WithString("command", mcp.Required(), mcp.Description("Command binary to run")),
		mcp.WithString("args", mcp.Description("Whitespace-separated arguments")),
	), s.instrument("run_command", s.config.CommandsCategory, s.handleRunCommand))

	s.mcp.AddTool(mcp.NewTool("system_info",
		mcp.WithDescription("Report host and runtime information"),
	), s.instrument("system_info", s.config.FileOpsCategory, s.handleSystemInfo))

	s.mcp.AddTool(mcp.NewTool("ai_assist",
		mcp.WithDescription("Ask the configured AI backend a question"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Question or task for the assistant")),
	), s.instrument("ai_assist", s.config.AssistCategory, s.handleAIAssist))

	s.mcp.AddTool(mcp.NewTool("server_status",
		mcp.WithDescription("Report server uptime, limits and cache statistics"),
	), s.instrument("server_status", s.config.FileOpsCategory, s.handleServerStatus))
}

// instrument wraps a handler with tracing, metrics and logging, and
// attaches the connection's session so handlers key governance decisions
// off the request context. Governance rejections are reported as tool
// errors, not protocol errors, so the wrapped call only fails on
// transport-level problems.
func (s *Server) instrument(name, category string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess := s.Session()
		ctx = identity.WithSession(ctx, sess)
		meta := observe.OpMeta{Name: name, Category: category, Identity: sess.Key()}
		var result *mcp.CallToolResult
		err := s.mw.Wrap(func(ctx context.Context, _ observe.OpMeta) error {
			var herr error
			result, herr = h(ctx, req)
			return herr
		})(ctx, meta)
		return result, err
	}
}

// toolError translates a governance or service failure into a tool error
// result. Rate limit rejections carry the retry delay so clients can back
// off; validation rejections are permanent for the same input.
func (s *Server) toolError(ctx context.Context, meta observe.OpMeta, err error) *mcp.CallToolResult {
	var rle *govern.RateLimitError
	if errors.As(err, &rle) {
		s.deps.Metrics.RecordRateLimited(ctx, meta)
		return mcp.NewToolResultError(fmt.Sprintf(
			"rate limited: retry after %d seconds", rle.RetryAfterSeconds()))
	}
	var verr *validate.Error
	if errors.As(err, &verr) {
		s.deps.Metrics.RecordValidationRejected(ctx, meta, string(verr.Reason))
		return mcp.NewToolResultError("rejected: " + verr.Error())
	}
	if errors.Is(err, govern.ErrTimeout) {
		return mcp.NewToolResultError("operation timed out")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) meta(ctx context.Context, name, category string) observe.OpMeta {
	return observe.OpMeta{Name: name, Category: category, Identity: identity.FromContext(ctx).Key()}
}

func (s *Server) handleReadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var content string
	gerr := s.deps.Gate.Do(ctx, govern.Request{
		Category: s.config.FileOpsCategory,
		Identity: identity.FromContext(ctx).Key(),
		Paths:    []string{path},
	}, func(ctx context.Context, grant govern.Grant) error {
		var rerr error
		content, rerr = s.deps.Files.Read(ctx, grant.Paths[0])
		return rerr
	})
	if gerr != nil {
		return s.toolError(ctx, s.meta(ctx, "read_file", s.config.FileOpsCategory), gerr), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) handleWriteFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var written int
	gerr := s.deps.Gate.Do(ctx, govern.Request{
		Category: s.config.FileOpsCategory,
		Identity: identity.FromContext(ctx).Key(),
		Paths:    []string{path},
	}, func(ctx context.Context, grant govern.Grant) error {
		var werr error
		written, werr = s.deps.Files.Write(ctx, grant.Paths[0], content)
		return werr
	})
	if gerr != nil {
		return s.toolError(ctx, s.meta(ctx, "write_file", s.config.FileOpsCategory), gerr), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("wrote %d bytes to %s", written, path)), nil
}

func (s *Server) handleListDirectory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var listing string
	gerr := s.deps.Gate.Do(ctx, govern.Request{
		Category: s.config.FileOpsCategory,
		Identity: identity.FromContext(ctx).Key(),
		Paths:    []string{path},
	}, func(ctx context.Context, grant govern.Grant) error {
		entries, lerr := s.deps.Files.List(ctx, grant.Paths[0])
		if lerr != nil {
			return lerr
		}
		var b strings.Builder
		for _, e := range entries {
			if e.IsDir {
				fmt.Fprintf(&b, "%s/\n", e.Name)
			} else {
				fmt.Fprintf(&b, "%s\t%d\n", e.Name, e.Size)
			}
		}
		listing = b.String()
		return nil
	})
	if gerr != nil {
		return s.toolError(ctx, s.meta(ctx, "list_directory", s.config.FileOpsCategory), gerr), nil
	}
	if listing == "" {
		listing = "(empty directory)"
	}
	return mcp.NewToolResultText(listing), nil
}

func (s *Server) handleSearchFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var report string
	gerr := s.deps.Gate.Do(ctx, govern.Request{
		Category: s.config.SearchesCategory,
		Identity: identity.FromContext(ctx).Key(),
		Paths:    []string{path},
	}, func(ctx context.Context, grant govern.Grant) error {
		matches, serr := s.deps.Files.Search(ctx, grant.Paths[0], pattern)
		if serr != nil {
			return serr
		}
		var b strings.Builder
		for _, m := range matches {
			fmt.Fprintf(&b, "%s:%d: %s\n", m.Path, m.Line, m.Text)
		}
		report = b.String()
		return nil
	})
	if gerr != nil {
		return s.toolError(ctx, s.meta(ctx, "search_files", s.config.SearchesCategory), gerr), nil
	}
	if report == "" {
		report = "no matches"
	}
	return mcp.NewToolResultText(report), nil
}

func (s *Server) handleRunCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := strings.Fields(req.GetString("args", ""))

	var out string
	gerr := s.deps.Gate.Do(ctx, govern.Request{
		Category: s.config.CommandsCategory,
		Identity: identity.FromContext(ctx).Key(),
		Command:  name,
		Args:     args,
		Timeout:  s.config.CommandTimeout,
	}, func(ctx context.Context, _ govern.Grant) error {
		res, rerr := s.deps.Commands.Run(ctx, name, args)
		if rerr != nil {
			return rerr
		}
		out = formatCommandResult(res.Stdout, res.Stderr, res.ExitCode, res.Truncated)
		return nil
	})
	if gerr != nil {
		return s.toolError(ctx, s.meta(ctx, "run_command", s.config.CommandsCategory), gerr), nil
	}
	return mcp.NewToolResultText(out), nil
}

func formatCommandResult(stdout, stderr string, exitCode int, truncated bool) string {
	var b strings.Builder
	b.WriteString(stdout)
	if stderr != "" {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[stderr]\n%s", stderr)
	}
	if exitCode != 0 {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[exit code %d]", exitCode)
	}
	if truncated {
		if !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		b.WriteString("[output truncated]")
	}
	return b.String()
}

func (s *Server) handleSystemInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var payload []byte
	gerr := s.deps.Gate.Do(ctx, govern.Request{
		Category: s.config.FileOpsCategory,
		Identity: identity.FromContext(ctx).Key(),
	}, func(ctx context.Context, _ govern.Grant) error {
		snap, serr := s.deps.System.Snapshot(ctx)
		if serr != nil {
			return serr
		}
		var merr error
		payload, merr = json.MarshalIndent(snap, "", "  ")
		return merr
	})
	if gerr != nil {
		return s.toolError(ctx, s.meta(ctx, "system_info", s.config.FileOpsCategory), gerr), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleAIAssist(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var text string
	gerr := s.deps.Gate.Do(ctx, govern.Request{
		Category: s.config.AssistCategory,
		Identity: identity.FromContext(ctx).Key(),
		Timeout:  s.config.AssistTimeout,
	}, func(ctx context.Context, _ govern.Grant) error {
		resp, aerr := s.deps.Assist.Ask(ctx, prompt)
		if aerr != nil {
			return aerr
		}
		text = resp.Content
		if resp.Source == "local" {
			text += "\n\n[answered locally: AI backend unavailable]"
		}
		return nil
	})
	if gerr != nil {
		return s.toolError(ctx, s.meta(ctx, "ai_assist", s.config.AssistCategory), gerr), nil
	}
	return mcp.NewToolResultText(text), nil
}

// serverStatus is the report shape returned by the server_status tool.
type serverStatus struct {
	Name       string                            `json:"name"`
	Version    string                            `json:"version"`
	Uptime     string                            `json:"uptime"`
	Client     string                            `json:"client"`
	RateLimit  *govern.RateLimiterMetrics        `json:"rate_limit,omitempty"`
	Categories map[string]govern.CategoryMetrics `json:"categories,omitempty"`
	Sections   map[string]any                    `json:"sections,omitempty"`
}

func (s *Server) handleServerStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := serverStatus{
		Name:    s.config.Name,
		Version: s.config.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Client:  s.Session().Key(),
	}
	if s.deps.Limiter != nil {
		m := s.deps.Limiter.Metrics()
		status.RateLimit = &m
	}
	if s.deps.Bulkhead != nil {
		status.Categories = s.deps.Bulkhead.Metrics()
	}
	if len(s.deps.Stats) > 0 {
		status.Sections = make(map[string]any, len(s.deps.Stats))
		for _, src := range s.deps.Stats {
			if src.Collect != nil {
				status.Sections[src.Name] = src.Collect()
			}
		}
	}

	payload, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
