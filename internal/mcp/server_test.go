package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alucardeht/ghview-bridge/internal/tools"
	"github.com/alucardeht/ghview-bridge/pkg/version"
)

type fakeCaller struct {
	result json.RawMessage
	err    error
	block  bool
}

func (f *fakeCaller) Screenshot(ctx context.Context, _ string) (json.RawMessage, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

func newTestServer(t *testing.T, caller tools.ScreenshotCaller, timeout time.Duration) *Server {
	t.Helper()
	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewScreenshotTool(caller)); err != nil {
		t.Fatal(err)
	}
	return NewServer(registry, ServerConfig{
		CallTimeout: timeout,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int64  `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func run(t *testing.T, s *Server, input string) []rpcResponse {
	t.Helper()
	var out bytes.Buffer
	if err := s.ProcessStream(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("ProcessStream() error = %v", err)
	}

	var responses []rpcResponse
	for _, line := range strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("output line is not JSON: %q", line)
		}
		responses = append(responses, resp)
	}
	return responses
}

func one(t *testing.T, s *Server, line string) rpcResponse {
	t.Helper()
	responses := run(t, s, line+"\n")
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	return responses[0]
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func decodeToolResult(t *testing.T, resp rpcResponse) toolResult {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected protocol error: %+v", resp.Error)
	}
	var result toolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("result is not a tool result: %s", resp.Result)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("unexpected content: %s", resp.Result)
	}
	return result
}

func TestInitialize(t *testing.T) {
	s := newTestServer(t, &fakeCaller{}, 0)

	resp := one(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"agent","version":"1.0"}}}`)

	if string(resp.ID) != "1" {
		t.Errorf("id = %s, want 1", resp.ID)
	}

	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		Capabilities    struct {
			Tools map[string]interface{} `json:"tools"`
		} `json:"capabilities"`
		ServerInfo struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
		Instructions string `json:"instructions"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}

	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocolVersion = %s", result.ProtocolVersion)
	}
	if v, ok := result.Capabilities.Tools["listChanged"]; !ok || v != false {
		t.Errorf("tools capability = %v", result.Capabilities.Tools)
	}
	if result.ServerInfo.Name != "ghview-mcp" || result.ServerInfo.Version != version.Version {
		t.Errorf("serverInfo = %+v", result.ServerInfo)
	}
	if !strings.Contains(result.Instructions, "screenshot") {
		t.Errorf("instructions = %q", result.Instructions)
	}
	if info := s.Handler().ClientInfo(); info.Name != "agent" {
		t.Errorf("client info = %+v", info)
	}
}

func TestNegotiateProtocolVersion(t *testing.T) {
	tests := map[string]string{
		"2025-06-18": "2025-06-18",
		"2025-03-26": "2025-03-26",
		"1999-01-01": version.ProtocolVersion,
		"":           version.ProtocolVersion,
	}
	for in, want := range tests {
		if got := negotiateProtocolVersion(in); got != want {
			t.Errorf("negotiateProtocolVersion(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestAcknowledgements(t *testing.T) {
	s := newTestServer(t, &fakeCaller{}, 0)

	for _, method := range []string{"initialized", "ping"} {
		resp := one(t, s, `{"jsonrpc":"2.0","id":"a","method":"`+method+`"}`)
		if resp.Error != nil {
			t.Errorf("%s: unexpected error %+v", method, resp.Error)
		}
		if string(resp.Result) != "{}" {
			t.Errorf("%s: result = %s, want {}", method, resp.Result)
		}
		if string(resp.ID) != `"a"` {
			t.Errorf("%s: id = %s", method, resp.ID)
		}
	}

	if !s.Handler().Initialized() {
		t.Error("initialized flag not set")
	}
}

func TestToolsList(t *testing.T) {
	s := newTestServer(t, &fakeCaller{}, 0)

	resp := one(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)

	var result struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			InputSchema struct {
				Type       string                 `json:"type"`
				Properties map[string]interface{} `json:"properties"`
				Required   []string               `json:"required"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}

	if len(result.Tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(result.Tools))
	}
	tool := result.Tools[0]
	if tool.Name != "screenshot" || tool.Description == "" {
		t.Errorf("tool = %+v", tool)
	}
	if tool.InputSchema.Type != "object" || len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "output_dir" {
		t.Errorf("schema = %+v", tool.InputSchema)
	}
	prop, _ := tool.InputSchema.Properties["output_dir"].(map[string]interface{})
	if prop["type"] != "string" {
		t.Errorf("output_dir property = %v", tool.InputSchema.Properties["output_dir"])
	}
}

func TestToolsCall(t *testing.T) {
	tests := []struct {
		name      string
		caller    *fakeCaller
		line      string
		wantError bool
		wantText  string
	}{
		{
			name:     "success",
			caller:   &fakeCaller{result: json.RawMessage(`{"path":"/tmp/s/ghview-screenshot-1.png"}`)},
			line:     `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"screenshot","arguments":{"output_dir":"/tmp/s"}}}`,
			wantText: "{\n  \"path\": \"/tmp/s/ghview-screenshot-1.png\"\n}",
		},
		{
			name:      "missing output_dir",
			caller:    &fakeCaller{},
			line:      `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"screenshot","arguments":{}}}`,
			wantError: true,
			wantText:  "Missing required argument: output_dir",
		},
		{
			name:      "unknown tool",
			caller:    &fakeCaller{},
			line:      `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"record","arguments":{}}}`,
			wantError: true,
			wantText:  "Unknown tool: record",
		},
		{
			name:      "host not running",
			caller:    &fakeCaller{err: errors.New("ghview is not running. Please start ghview first")},
			line:      `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"screenshot","arguments":{"output_dir":"/tmp/s"}}}`,
			wantError: true,
			wantText:  "Screenshot failed: ghview is not running. Please start ghview first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.caller, 0)
			result := decodeToolResult(t, one(t, s, tt.line))

			if result.IsError != tt.wantError {
				t.Errorf("isError = %v, want %v", result.IsError, tt.wantError)
			}
			if result.Content[0].Text != tt.wantText {
				t.Errorf("text = %q, want %q", result.Content[0].Text, tt.wantText)
			}
		})
	}
}

func TestToolsCall_Timeout(t *testing.T) {
	s := newTestServer(t, &fakeCaller{block: true}, 50*time.Millisecond)

	result := decodeToolResult(t, one(t, s, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"screenshot","arguments":{"output_dir":"x"}}}`))
	if !result.IsError || !strings.Contains(result.Content[0].Text, "deadline exceeded") {
		t.Errorf("result = %+v", result)
	}
}

func TestProtocolErrors(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantCode int64
		wantID   string
		wantMsg  string
	}{
		{"malformed json", `{"jsonrpc":`, -32700, "null", "Parse error"},
		{"missing method", `{"jsonrpc":"2.0","id":4}`, -32700, "null", "Parse error"},
		{"not an object", `[1,2]`, -32700, "null", "Parse error"},
		{"unknown method", `{"jsonrpc":"2.0","id":5,"method":"resources/list"}`, -32601, "5", "Method not found: resources/list"},
		{"call without params", `{"jsonrpc":"2.0","id":6,"method":"tools/call"}`, -32602, "6", "Missing params"},
		{"call with bad params", `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":5}}`, -32602, "7", "Invalid params"},
		{"call without name", `{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"arguments":{}}}`, -32602, "8", "name"},
		{"boolean id", `{"jsonrpc":"2.0","id":true,"method":"ping"}`, -32600, "null", "Invalid request"},
		{"object id", `{"jsonrpc":"2.0","id":{"n":1},"method":"ping"}`, -32600, "null", "Invalid request"},
	}

	s := newTestServer(t, &fakeCaller{}, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := one(t, s, tt.line)
			if resp.Error == nil {
				t.Fatalf("expected error, got result %s", resp.Result)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", resp.Error.Code, tt.wantCode)
			}
			if string(resp.ID) != tt.wantID {
				t.Errorf("id = %s, want %s", resp.ID, tt.wantID)
			}
			if !strings.Contains(resp.Error.Message, tt.wantMsg) {
				t.Errorf("message = %q, want substring %q", resp.Error.Message, tt.wantMsg)
			}
			if resp.Result != nil {
				t.Error("error response must not carry a result")
			}
		})
	}
}

func TestResponseEchoesRequestID(t *testing.T) {
	ids := []string{`0`, `-1`, `1.5`, `1e3`, `9007199254740993`, `"x"`, `""`, `"req-\u00e9"`}

	s := newTestServer(t, &fakeCaller{}, 0)
	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			for _, method := range []string{"ping", "resources/list"} {
				line := `{"jsonrpc":"2.0","id":` + id + `,"method":"` + method + `"}`
				resp := one(t, s, line)
				if string(resp.ID) != id {
					t.Errorf("%s: id = %s, want %s", method, resp.ID, id)
				}
			}
		})
	}
}

func TestProcessStream_OneInOneOut(t *testing.T) {
	s := newTestServer(t, &fakeCaller{result: json.RawMessage(`{"path":"/p.png"}`)}, 0)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		``,
		`{"jsonrpc":"2.0","method":"initialized"}`,
		`   `,
		`garbage`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"screenshot","arguments":{"output_dir":"/"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"ping"}`,
	}, "\n")

	responses := run(t, s, input)
	if len(responses) != 6 {
		t.Fatalf("got %d responses, want 6", len(responses))
	}

	wantIDs := []string{"1", "null", "null", "2", "3", "4"}
	for i, resp := range responses {
		if string(resp.ID) != wantIDs[i] {
			t.Errorf("response %d id = %s, want %s", i, resp.ID, wantIDs[i])
		}
		if resp.JSONRPC != "2.0" {
			t.Errorf("response %d jsonrpc = %q", i, resp.JSONRPC)
		}
	}
	if responses[2].Error == nil || responses[2].Error.Code != -32700 {
		t.Errorf("garbage line should yield a parse error, got %+v", responses[2])
	}
}

func TestProcessStream_EmptyInput(t *testing.T) {
	s := newTestServer(t, &fakeCaller{}, 0)
	if got := run(t, s, ""); len(got) != 0 {
		t.Errorf("got %d responses for empty input", len(got))
	}
}

func TestProcessStream_WriteFailure(t *testing.T) {
	s := newTestServer(t, &fakeCaller{}, 0)

	err := s.ProcessStream(context.Background(), strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), failingWriter{})
	if err == nil {
		t.Error("expected write error")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestParseMethod(t *testing.T) {
	for _, m := range []Method{MethodInitialize, MethodInitialized, MethodToolsList, MethodToolsCall, MethodPing} {
		if got := ParseMethod(m.String()); got != m {
			t.Errorf("ParseMethod(%q) = %v", m.String(), got)
		}
	}
	if ParseMethod("notifications/initialized") != MethodInitialized {
		t.Error("notifications/initialized should map to initialized")
	}
	if ParseMethod("tools/delete") != MethodUnknown {
		t.Error("unexpected method accepted")
	}
}
