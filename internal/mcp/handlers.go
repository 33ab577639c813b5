package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/ghview-bridge/internal/logger"
	"github.com/alucardeht/ghview-bridge/internal/tools"
	"github.com/alucardeht/ghview-bridge/pkg/protocol"
	"github.com/alucardeht/ghview-bridge/pkg/version"
)

const (
	ServerName   = "ghview-mcp"
	Instructions = "MCP server for ghview - a GitHub PR viewer application. Use the 'screenshot' tool to capture the ghview window."
)

type Handler struct {
	registry    *tools.Registry
	callTimeout time.Duration
	log         *slog.Logger

	mu          sync.Mutex
	initialized bool
	clientInfo  ClientInfo
}

// NewHandler builds a handler over registry. callTimeout bounds each
// tools/call; zero leaves calls unbounded.
func NewHandler(registry *tools.Registry, callTimeout time.Duration, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.ForComponent("mcp")
	}
	return &Handler{
		registry:    registry,
		callTimeout: callTimeout,
		log:         log,
	}
}

// Handle answers one request. It always returns a response, including for
// notifications, whose response carries a null id.
func (h *Handler) Handle(ctx context.Context, req *protocol.JSONRPCRequest) (resp *protocol.JSONRPCResponse) {
	id := protocol.RequestID(req)

	defer func() {
		if r := recover(); r != nil {
			h.log.Error("handler panic recovered", "method", req.Method, "panic", r, "stack", string(debug.Stack()))
			resp = protocol.NewError(id, jsonrpc2.CodeInternalError, fmt.Sprintf("Internal error: %v", r))
		}
	}()

	method := ParseMethod(req.Method)
	h.log.Debug("request", "method", req.Method, "notification", req.IsNotification())

	var result interface{}
	switch method {
	case MethodInitialize:
		result = h.handleInitialize(req)
	case MethodInitialized:
		h.mu.Lock()
		h.initialized = true
		h.mu.Unlock()
		result = empty{}
	case MethodToolsList:
		result = ListToolsResult{Tools: h.registry.Definitions()}
	case MethodToolsCall:
		call, rpcErr := parseCallParams(req)
		if rpcErr != nil {
			return &protocol.JSONRPCResponse{JSONRPC: protocol.JSONRPCVersion, ID: id, Error: rpcErr}
		}
		result = h.handleCallTool(ctx, call)
	case MethodPing:
		result = empty{}
	case MethodUnknown:
		return protocol.NewError(id, jsonrpc2.CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}

	out, err := protocol.NewResult(id, result)
	if err != nil {
		return protocol.NewError(id, jsonrpc2.CodeInternalError, fmt.Sprintf("failed to encode result: %v", err))
	}
	return out
}

func (h *Handler) handleInitialize(req *protocol.JSONRPCRequest) InitializeResult {
	var init InitializeRequest
	if req.HasParams() {
		if err := json.Unmarshal(req.Params, &init); err != nil {
			h.log.Warn("ignoring malformed initialize params", "error", err)
		}
	}

	h.mu.Lock()
	h.clientInfo = init.ClientInfo
	h.mu.Unlock()

	negotiated := negotiateProtocolVersion(init.ProtocolVersion)
	h.log.Info("client connected",
		"client", init.ClientInfo.Name,
		"client_version", init.ClientInfo.Version,
		"protocol", negotiated)

	return InitializeResult{
		ProtocolVersion: negotiated,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{ListChanged: false},
		},
		ServerInfo: mcpgo.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		Instructions: Instructions,
	}
}

func negotiateProtocolVersion(clientVersion string) string {
	for _, v := range version.SupportedProtocolVersions {
		if clientVersion == v {
			return v
		}
	}
	return version.ProtocolVersion
}

func parseCallParams(req *protocol.JSONRPCRequest) (*CallToolRequest, *jsonrpc2.Error) {
	if !req.HasParams() {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "Missing params"}
	}

	var call CallToolRequest
	if err := json.Unmarshal(req.Params, &call); err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: fmt.Sprintf("Invalid params: %v", err)}
	}
	if call.Name == nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "Invalid params: missing field `name`"}
	}
	return &call, nil
}

func (h *Handler) handleCallTool(ctx context.Context, call *CallToolRequest) *mcpgo.CallToolResult {
	if h.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.callTimeout)
		defer cancel()
	}

	start := time.Now()
	result := h.registry.Call(ctx, *call.Name, call.Arguments)
	h.log.Info("tool call", "tool", *call.Name, "error", result.IsError, "duration", time.Since(start))
	return result
}

// ClientInfo returns what the client reported in initialize.
func (h *Handler) ClientInfo() ClientInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clientInfo
}

func (h *Handler) Initialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initialized
}
