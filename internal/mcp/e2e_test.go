//go:build !windows

package mcp

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alucardeht/ghview-bridge/internal/capture"
	"github.com/alucardeht/ghview-bridge/internal/ipc"
	"github.com/alucardeht/ghview-bridge/internal/tools"
)

type hiDPIWindow struct{}

func (hiDPIWindow) ID() uint32              { return 42 }
func (hiDPIWindow) Title() string           { return "ghview - PR #1" }
func (hiDPIWindow) AppName() string         { return "ghview" }
func (hiDPIWindow) Size() (int, int, error) { return 100, 60, nil }

func (hiDPIWindow) CaptureImage() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 200, 120)), nil
}

type oneWindow struct{}

func (oneWindow) Windows() ([]capture.Window, error) { return []capture.Window{hiDPIWindow{}}, nil }

func TestEndToEndScreenshot(t *testing.T) {
	dir, err := os.MkdirTemp("", "ghv")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "ghview.sock")

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	matcher, err := capture.NewMatcher("ghview")
	if err != nil {
		t.Fatal(err)
	}
	pipeline := capture.NewPipeline(oneWindow{}, matcher, capture.Options{Prefix: "ghview-screenshot", Logger: discard})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := ipc.NewClient(socket)
	s := newTestServer(t, client, 5*time.Second)
	outputDir := filepath.Join(t.TempDir(), "new", "dir")
	call := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"screenshot","arguments":{"output_dir":"` + outputDir + `"}}}`

	// host not started yet: tool-level error, protocol still fine
	result := decodeToolResult(t, one(t, s, call))
	if !result.IsError || !strings.Contains(result.Content[0].Text, "ghview is not running") {
		t.Fatalf("result before host start = %+v", result)
	}

	host := ipc.Start(ctx, ipc.ServerConfig{SocketPath: socket, ConnTimeout: 5 * time.Second, Logger: discard}, pipeline)
	defer host.Close()
	if !host.Listening() {
		t.Fatal("host failed to listen")
	}

	result = decodeToolResult(t, one(t, s, call))
	if result.IsError {
		t.Fatalf("screenshot failed: %s", result.Content[0].Text)
	}

	var shot struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &shot); err != nil {
		t.Fatalf("tool text is not the host result: %q", result.Content[0].Text)
	}
	if filepath.Dir(shot.Path) != outputDir || !strings.HasPrefix(filepath.Base(shot.Path), "ghview-screenshot-") {
		t.Errorf("path = %s", shot.Path)
	}

	f, err := os.Open(shot.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 100 || cfg.Height != 60 {
		t.Errorf("image is %dx%d, want logical 100x60", cfg.Width, cfg.Height)
	}
}

var _ tools.ScreenshotCaller = (*ipc.Client)(nil)
