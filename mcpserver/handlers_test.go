package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jonwraymond/localops/assist"
	"github.com/jonwraymond/localops/command"
	"github.com/jonwraymond/localops/fileops"
	"github.com/jonwraymond/localops/govern"
	"github.com/jonwraymond/localops/identity"
	"github.com/jonwraymond/localops/sysinfo"
	"github.com/jonwraymond/localops/validate"
)

func newTestServer(t *testing.T, maxRequests int) (*Server, string) {
	t.Helper()
	dir := t.TempDir()

	v, err := validate.New(validate.Config{AllowedDirs: []string{dir}})
	if err != nil {
		t.Fatalf("validate.New: %v", err)
	}
	limiter := govern.NewRateLimiter(govern.RateLimiterConfig{
		Window:      time.Minute,
		MaxRequests: maxRequests,
	})
	bulkhead, err := govern.NewBulkhead(govern.BulkheadConfig{Categories: map[string]int{
		"file_ops": 10,
		"searches": 3,
		"commands": 2,
		"assist":   1,
	}})
	if err != nil {
		t.Fatalf("govern.NewBulkhead: %v", err)
	}

	s := New(Config{Name: "localops-test", Version: "0.0.1"}, Deps{
		Gate:     govern.NewGate(v, limiter, bulkhead),
		Files:    fileops.New(fileops.Config{}, nil, nil),
		Commands: command.New(command.Config{Timeout: 5 * time.Second}),
		System:   sysinfo.New("/", nil),
		Assist:   assist.New(assist.Config{}, nil, nil, nil),
		Limiter:  limiter,
		Bulkhead: bulkhead,
	})
	return s, dir
}

func callReq(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestReadFile(t *testing.T) {
	s, dir := newTestServer(t, 100)
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello governance"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.handleReadFile(context.Background(), callReq("read_file", map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("handleReadFile: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", textOf(t, res))
	}
	if got := textOf(t, res); got != "hello governance" {
		t.Errorf("content = %q, want %q", got, "hello governance")
	}
}

func TestReadFile_MissingArgument(t *testing.T) {
	s, _ := newTestServer(t, 100)

	res, err := s.handleReadFile(context.Background(), callReq("read_file", map[string]any{}))
	if err != nil {
		t.Fatalf("handleReadFile: %v", err)
	}
	if !res.IsError {
		t.Error("expected tool error for missing path")
	}
}

func TestReadFile_BlockedPath(t *testing.T) {
	s, _ := newTestServer(t, 100)

	res, err := s.handleReadFile(context.Background(), callReq("read_file", map[string]any{"path": "/etc/passwd"}))
	if err != nil {
		t.Fatalf("handleReadFile: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for blocked path")
	}
	if got := textOf(t, res); !strings.HasPrefix(got, "rejected:") {
		t.Errorf("error = %q, want rejected: prefix", got)
	}
}

func TestWriteFile(t *testing.T) {
	s, dir := newTestServer(t, 100)
	path := filepath.Join(dir, "out", "result.txt")

	res, err := s.handleWriteFile(context.Background(), callReq("write_file", map[string]any{
		"path":    path,
		"content": "written",
	}))
	if err != nil {
		t.Fatalf("handleWriteFile: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", textOf(t, res))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if string(data) != "written" {
		t.Errorf("file content = %q, want %q", data, "written")
	}
}

func TestListDirectory(t *testing.T) {
	s, dir := newTestServer(t, 100)
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := s.handleListDirectory(context.Background(), callReq("list_directory", map[string]any{"path": dir}))
	if err != nil {
		t.Fatalf("handleListDirectory: %v", err)
	}
	got := textOf(t, res)
	if !strings.Contains(got, "a.txt") {
		t.Errorf("listing %q missing a.txt", got)
	}
	if !strings.Contains(got, "sub/") {
		t.Errorf("listing %q missing sub/", got)
	}
}

func TestSearchFiles(t *testing.T) {
	s, dir := newTestServer(t, 100)
	if err := os.WriteFile(filepath.Join(dir, "log.txt"), []byte("ok\nneedle here\nok\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.handleSearchFiles(context.Background(), callReq("search_files", map[string]any{
		"path":    dir,
		"pattern": "needle",
	}))
	if err != nil {
		t.Fatalf("handleSearchFiles: %v", err)
	}
	got := textOf(t, res)
	if !strings.Contains(got, "log.txt:2: needle here") {
		t.Errorf("report = %q, want match at log.txt:2", got)
	}
}

func TestSearchFiles_NoMatches(t *testing.T) {
	s, dir := newTestServer(t, 100)

	res, err := s.handleSearchFiles(context.Background(), callReq("search_files", map[string]any{
		"path":    dir,
		"pattern": "absent",
	}))
	if err != nil {
		t.Fatalf("handleSearchFiles: %v", err)
	}
	if got := textOf(t, res); got != "no matches" {
		t.Errorf("report = %q, want %q", got, "no matches")
	}
}

func TestRunCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX shell utilities")
	}
	s, _ := newTestServer(t, 100)

	res, err := s.handleRunCommand(context.Background(), callReq("run_command", map[string]any{
		"command": "echo",
		"args":    "hello world",
	}))
	if err != nil {
		t.Fatalf("handleRunCommand: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", textOf(t, res))
	}
	if got := textOf(t, res); !strings.Contains(got, "hello world") {
		t.Errorf("output = %q, want hello world", got)
	}
}

func TestRunCommand_Blocked(t *testing.T) {
	s, _ := newTestServer(t, 100)

	res, err := s.handleRunCommand(context.Background(), callReq("run_command", map[string]any{
		"command": "rm",
		"args":    "-rf /",
	}))
	if err != nil {
		t.Fatalf("handleRunCommand: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for blocked command")
	}
	if got := textOf(t, res); !strings.HasPrefix(got, "rejected:") {
		t.Errorf("error = %q, want rejected: prefix", got)
	}
}

func TestRateLimited(t *testing.T) {
	s, dir := newTestServer(t, 1)
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	req := callReq("read_file", map[string]any{"path": path})

	res, err := s.handleReadFile(context.Background(), req)
	if err != nil || res.IsError {
		t.Fatalf("first call should pass: err=%v", err)
	}

	res, err = s.handleReadFile(context.Background(), req)
	if err != nil {
		t.Fatalf("handleReadFile: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected rate limit tool error")
	}
	got := textOf(t, res)
	if !strings.Contains(got, "rate limited: retry after") {
		t.Errorf("error = %q, want retry-after message", got)
	}
}

func TestSystemInfo(t *testing.T) {
	s, _ := newTestServer(t, 100)

	res, err := s.handleSystemInfo(context.Background(), callReq("system_info", nil))
	if err != nil {
		t.Fatalf("handleSystemInfo: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", textOf(t, res))
	}
	var snap sysinfo.Snapshot
	if err := json.Unmarshal([]byte(textOf(t, res)), &snap); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if snap.GoVersion == "" {
		t.Error("snapshot missing Go version")
	}
}

func TestAIAssist_LocalFallback(t *testing.T) {
	s, _ := newTestServer(t, 100)

	res, err := s.handleAIAssist(context.Background(), callReq("ai_assist", map[string]any{
		"prompt": "what is a bulkhead",
	}))
	if err != nil {
		t.Fatalf("handleAIAssist: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", textOf(t, res))
	}
	if got := textOf(t, res); !strings.Contains(got, "[answered locally: AI backend unavailable]") {
		t.Errorf("output = %q, want local fallback marker", got)
	}
}

func TestServerStatus(t *testing.T) {
	s, _ := newTestServer(t, 100)
	s.deps.Stats = []StatusSource{{
		Name:    "assist",
		Collect: func() any { return map[string]string{"breaker": "closed"} },
	}}

	res, err := s.handleServerStatus(context.Background(), callReq("server_status", nil))
	if err != nil {
		t.Fatalf("handleServerStatus: %v", err)
	}
	var status serverStatus
	if err := json.Unmarshal([]byte(textOf(t, res)), &status); err != nil {
		t.Fatalf("status is not valid JSON: %v", err)
	}
	if status.Name != "localops-test" {
		t.Errorf("name = %q, want localops-test", status.Name)
	}
	if status.RateLimit == nil {
		t.Error("status missing rate limit metrics")
	}
	if len(status.Categories) != 4 {
		t.Errorf("categories = %d, want 4", len(status.Categories))
	}
	if _, ok := status.Sections["assist"]; !ok {
		t.Error("status missing assist section")
	}
}

func TestIdentityFromContext(t *testing.T) {
	s, dir := newTestServer(t, 1)
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	req := callReq("read_file", map[string]any{"path": path})

	// Exhaust the first client's budget.
	first := identity.WithSession(context.Background(), identity.NewSession("client-a", "1.0"))
	res, err := s.handleReadFile(first, req)
	if err != nil || res.IsError {
		t.Fatalf("first call should pass: err=%v", err)
	}
	res, err = s.handleReadFile(first, req)
	if err != nil {
		t.Fatalf("handleReadFile: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected rate limit tool error for exhausted identity")
	}

	// A different client in the context has its own budget.
	other := identity.WithSession(context.Background(), identity.NewSession("client-b", "1.0"))
	res, err = s.handleReadFile(other, req)
	if err != nil {
		t.Fatalf("handleReadFile: %v", err)
	}
	if res.IsError {
		t.Fatalf("second identity should have a fresh budget: %s", textOf(t, res))
	}
}

func TestInstrumentAttachesSession(t *testing.T) {
	s, dir := newTestServer(t, 1)
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	req := callReq("read_file", map[string]any{"path": path})

	init := &mcp.InitializeRequest{}
	init.Params.ClientInfo = mcp.Implementation{Name: "acme-cli", Version: "2.0"}
	s.onInitialize(context.Background(), 1, init, &mcp.InitializeResult{})

	// The instrumented handler runs under the connected session.
	wrapped := s.instrument("read_file", s.config.FileOpsCategory, s.handleReadFile)
	res, err := wrapped(context.Background(), req)
	if err != nil || res.IsError {
		t.Fatalf("instrumented call should pass: err=%v", err)
	}

	// The session's budget is spent: the same identity supplied directly
	// is rejected.
	same := identity.WithSession(context.Background(), identity.NewSession("acme-cli", "2.0"))
	res, err = s.handleReadFile(same, req)
	if err != nil {
		t.Fatalf("handleReadFile: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected rate limit tool error for the connected session's identity")
	}
}

func TestSessionCapture(t *testing.T) {
	s, _ := newTestServer(t, 100)
	if got := s.Session().Key(); got != "anonymous" {
		t.Fatalf("initial identity = %q, want anonymous", got)
	}

	req := &mcp.InitializeRequest{}
	req.Params.ClientInfo = mcp.Implementation{Name: "claude-desktop", Version: "1.2.3"}
	s.onInitialize(context.Background(), 1, req, &mcp.InitializeResult{})

	if got := s.Session().Key(); got != "claude-desktop/1.2.3" {
		t.Errorf("identity = %q, want claude-desktop/1.2.3", got)
	}
}

func TestNewDefaults(t *testing.T) {
	s := New(Config{}, Deps{Gate: govern.NewGate(nil, nil, nil)})
	if s.config.Name != "localops" {
		t.Errorf("name = %q, want localops", s.config.Name)
	}
	if s.config.CommandTimeout != 30*time.Second {
		t.Errorf("command timeout = %v, want 30s", s.config.CommandTimeout)
	}
	if s.MCP() == nil {
		t.Error("underlying MCP server is nil")
	}
}
