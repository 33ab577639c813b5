package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

const ScreenshotToolName = "screenshot"

// ScreenshotCaller forwards a capture request to the ghview host.
type ScreenshotCaller interface {
	Screenshot(ctx context.Context, outputDir string) (json.RawMessage, error)
}

type ScreenshotTool struct {
	caller ScreenshotCaller
}

func NewScreenshotTool(caller ScreenshotCaller) *ScreenshotTool {
	return &ScreenshotTool{caller: caller}
}

func (t *ScreenshotTool) Definition() mcpgo.Tool {
	return mcpgo.NewTool(ScreenshotToolName,
		mcpgo.WithDescription("Capture a screenshot of the ghview window and save it to the specified directory"),
		mcpgo.WithString("output_dir",
			mcpgo.Required(),
			mcpgo.Description("Directory to save the screenshot file"),
		),
		mcpgo.WithTitleAnnotation("Screenshot ghview"),
		mcpgo.WithReadOnlyHintAnnotation(false),
		mcpgo.WithDestructiveHintAnnotation(false),
		mcpgo.WithIdempotentHintAnnotation(false),
		mcpgo.WithOpenWorldHintAnnotation(false),
	)
}

func (t *ScreenshotTool) Execute(ctx context.Context, args json.RawMessage) (*mcpgo.CallToolResult, error) {
	if len(bytes.TrimSpace(args)) == 0 || string(bytes.TrimSpace(args)) == "null" {
		return mcpgo.NewToolResultError("Missing arguments"), nil
	}

	// Arguments that are not an object carry no output_dir.
	var input map[string]interface{}
	if err := json.Unmarshal(args, &input); err != nil {
		return mcpgo.NewToolResultError("Missing required argument: output_dir"), nil
	}

	outputDir, ok := input["output_dir"].(string)
	if !ok {
		return mcpgo.NewToolResultError("Missing required argument: output_dir"), nil
	}

	result, err := t.caller.Screenshot(ctx, outputDir)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("Screenshot failed: %v", err)), nil
	}

	return mcpgo.NewToolResultText(indent(result)), nil
}

// indent pretty-prints a JSON result for the agent. An absent result is
// reported as empty text.
func indent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
