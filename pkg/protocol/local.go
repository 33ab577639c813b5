package protocol

import (
	"encoding/json"
	"fmt"
)

// Method is the closed set of operations understood on the local channel.
type Method int

const (
	MethodUnknown Method = iota
	MethodPing
	MethodScreenshot
)

func ParseMethod(s string) Method {
	switch s {
	case "ping":
		return MethodPing
	case "screenshot":
		return MethodScreenshot
	default:
		return MethodUnknown
	}
}

func (m Method) String() string {
	switch m {
	case MethodPing:
		return "ping"
	case MethodScreenshot:
		return "screenshot"
	default:
		return "unknown"
	}
}

// Request is one line sent by a local-channel client. There is no id: each
// connection carries exactly one request and one response.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is one line written by the local-channel server. Exactly one of
// Result or Error is set; the other is omitted from the wire form.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func Success(result interface{}) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return Failure("failed to encode result: %v", err)
	}
	return Response{Result: data}
}

func Failure(format string, args ...interface{}) Response {
	return Response{Error: fmt.Sprintf(format, args...)}
}

type ScreenshotParams struct {
	OutputDir string `json:"output_dir"`
}

type ScreenshotResult struct {
	Path string `json:"path"`
}

type PingResult struct {
	Pong bool `json:"pong"`
}
