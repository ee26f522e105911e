package mcpserver

import (
	"context"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jonwraymond/localops/assist"
	"github.com/jonwraymond/localops/command"
	"github.com/jonwraymond/localops/fileops"
	"github.com/jonwraymond/localops/govern"
	"github.com/jonwraymond/localops/identity"
	"github.com/jonwraymond/localops/observe"
	"github.com/jonwraymond/localops/sysinfo"
)

// Config holds server identification and per-tool limits.
type Config struct {
	// Name and Version identify the server to MCP clients.
	Name    string
	Version string

	// CommandTimeout bounds run_command; AssistTimeout bounds ai_assist.
	CommandTimeout time.Duration
	AssistTimeout  time.Duration

	// Categories maps each tool family to its bulkhead category name.
	FileOpsCategory  string
	SearchesCategory string
	CommandsCategory string
	AssistCategory   string
}

// Deps are the services the tool handlers delegate to.
type Deps struct {
	Gate     *govern.Gate
	Files    *fileops.Service
	Commands *command.Runner
	System   *sysinfo.Service
	Assist   *assist.Service

	// Status sources for the server_status tool. Any may be nil.
	Limiter  *govern.RateLimiter
	Bulkhead *govern.Bulkhead
	Stats    []StatusSource

	// Observability. Nil components fall back to noops.
	Logger  observe.Logger
	Metrics observe.Metrics
	Tracer  observe.Tracer
}

// StatusSource contributes one named section to server_status output.
type StatusSource struct {
	Name    string
	Collect func() any
}

// Server exposes governed local operations over the MCP stdio transport.
type Server struct {
	config  Config
	deps    Deps
	mcp     *server.MCPServer
	mw      *observe.Middleware
	started time.Time

	mu      sync.RWMutex
	session *identity.Session
}

// New creates the MCP server and registers all tools.
func New(config Config, deps Deps) *Server {
	if config.Name == "" {
		config.Name = "localops"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = 30 * time.Second
	}
	if config.AssistTimeout <= 0 {
		config.AssistTimeout = 60 * time.Second
	}
	if config.FileOpsCategory == "" {
		config.FileOpsCategory = "file_ops"
	}
	if config.SearchesCategory == "" {
		config.SearchesCategory = "searches"
	}
	if config.CommandsCategory == "" {
		config.CommandsCategory = "commands"
	}
	if config.AssistCategory == "" {
		config.AssistCategory = "assist"
	}

	if deps.Logger == nil {
		deps.Logger = observe.NewLogger("info")
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.NoopMetrics()
	}
	if deps.Tracer == nil {
		deps.Tracer = observe.NewNoopTracer()
	}

	s := &Server{
		config:  config,
		deps:    deps,
		mw:      observe.NewMiddleware(deps.Tracer, deps.Metrics, deps.Logger),
		started: time.Now(),
		session: identity.Anonymous(),
	}

	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(s.onInitialize)

	s.mcp = server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(hooks),
	)

	s.registerTools()
	return s
}

// ServeStdio runs the server over stdin/stdout until the stream closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCP exposes the underlying server for in-process transports in tests.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// onInitialize captures the client identity announced in the handshake.
// The rate limiter keys on it for the rest of the session.
func (s *Server) onInitialize(ctx context.Context, id any, message *mcp.InitializeRequest, result *mcp.InitializeResult) {
	sess := identity.NewSession(message.Params.ClientInfo.Name, message.Params.ClientInfo.Version)

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.deps.Logger.Info(ctx, "client connected",
		observe.Field{Key: "client", Value: sess.Key()},
		observe.Field{Key: "session_id", Value: sess.ID},
	)
}

// Session returns the current client session.
func (s *Server) Session() *identity.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}
