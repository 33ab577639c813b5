package mcp

import (
	"encoding/json"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// Method is the closed set of tool-protocol methods.
type Method int

const (
	MethodUnknown Method = iota
	MethodInitialize
	MethodInitialized
	MethodToolsList
	MethodToolsCall
	MethodPing
)

func ParseMethod(s string) Method {
	switch s {
	case "initialize":
		return MethodInitialize
	case "initialized", "notifications/initialized":
		return MethodInitialized
	case "tools/list":
		return MethodToolsList
	case "tools/call":
		return MethodToolsCall
	case "ping":
		return MethodPing
	default:
		return MethodUnknown
	}
}

func (m Method) String() string {
	switch m {
	case MethodInitialize:
		return "initialize"
	case MethodInitialized:
		return "initialized"
	case MethodToolsList:
		return "tools/list"
	case MethodToolsCall:
		return "tools/call"
	case MethodPing:
		return "ping"
	default:
		return "unknown"
	}
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeRequest struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

type InitializeResult struct {
	ProtocolVersion string               `json:"protocolVersion"`
	Capabilities    ServerCapabilities   `json:"capabilities"`
	ServerInfo      mcpgo.Implementation `json:"serverInfo"`
	Instructions    string               `json:"instructions,omitempty"`
}

type ListToolsResult struct {
	Tools []mcpgo.Tool `json:"tools"`
}

type CallToolRequest struct {
	Name      *string         `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// empty is the result of methods that only acknowledge.
type empty struct{}
