package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alucardeht/ghview-bridge/pkg/protocol"
)

// Client issues local-channel calls. It holds no connection between calls.
type Client struct {
	socketPath string
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

func (c *Client) SocketPath() string {
	return c.socketPath
}

// Available reports whether the host endpoint currently exists.
func (c *Client) Available() bool {
	return endpointExists(c.socketPath)
}

// Call sends one request on a fresh connection and returns the result field,
// which is nil when the host sent none or sent null. Application errors reported by the
// host are returned as *RemoteError.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if !endpointExists(c.socketPath) {
		return nil, fmt.Errorf("%w. (Socket not found: %s)", ErrHostNotRunning, c.socketPath)
	}

	raw := json.RawMessage(`{}`)
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode params: %w", err)
		}
		raw = data
	}

	conn, err := dial(ctx, c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ghview: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := protocol.NewFlushWriter(conn).WriteLine(protocol.Request{Method: method, Params: raw}); err != nil {
		return nil, c.transportError(ctx, "failed to send request", err)
	}

	line, err := readLine(bufio.NewReader(conn), maxResponseSize)
	if errors.Is(err, io.EOF) {
		return nil, ErrNoResponse
	}
	if err != nil {
		return nil, c.transportError(ctx, "failed to read response", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("invalid response from ghview: %w", err)
	}
	if resp.Error != "" {
		return nil, &RemoteError{Message: resp.Error}
	}
	if bytes.Equal(bytes.TrimSpace(resp.Result), []byte("null")) {
		return nil, nil
	}
	return resp.Result, nil
}

func (c *Client) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Screenshot asks the host to capture its window into outputDir and returns
// the raw result object.
func (c *Client) Screenshot(ctx context.Context, outputDir string) (json.RawMessage, error) {
	return c.Call(ctx, protocol.MethodScreenshot.String(), protocol.ScreenshotParams{OutputDir: outputDir})
}

func (c *Client) Ping(ctx context.Context) error {
	result, err := c.Call(ctx, protocol.MethodPing.String(), struct{}{})
	if err != nil {
		return err
	}

	var pong protocol.PingResult
	if err := json.Unmarshal(result, &pong); err != nil || !pong.Pong {
		return fmt.Errorf("unexpected ping result: %s", result)
	}
	return nil
}
