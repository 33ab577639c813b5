//go:build windows

package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/Microsoft/go-winio"
)

// Named pipes are owned by the kernel and vanish with their last handle, so
// there is never a stale artifact to remove.
func listen(path string) (net.Listener, error) {
	listener, err := winio.ListenPipe(path, &winio.PipeConfig{
		InputBufferSize:  maxRequestSize,
		OutputBufferSize: maxResponseSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return listener, nil
}

func dial(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}

func endpointExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !os.IsNotExist(err)
}

func unlinkEndpoint(string) {}

func lockPath(socketPath string) string {
	return filepath.Join(os.TempDir(), filepath.Base(socketPath)+".lock")
}
