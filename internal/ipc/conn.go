package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/alucardeht/ghview-bridge/pkg/protocol"
)

// connState is the lifecycle of one local-channel connection. Every
// connection moves forward only: it reads at most one request, writes at
// most one response, then closes.
type connState int

const (
	stateAwaitingRequest connState = iota
	stateDispatching
	stateAwaitingFlush
	stateClosed
)

func (st connState) String() string {
	switch st {
	case stateAwaitingRequest:
		return "awaiting_request"
	case stateDispatching:
		return "dispatching"
	case stateAwaitingFlush:
		return "awaiting_flush"
	case stateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

type session struct {
	conn  net.Conn
	state connState
	log   *slog.Logger
}

func (c *session) transition(next connState) {
	if next <= c.state {
		panic("ipc: invalid connection state transition " + c.state.String() + " -> " + next.String())
	}
	c.log.Debug("connection state", "from", c.state, "to", next)
	c.state = next
}

func (c *session) close() {
	if c.state != stateClosed {
		c.transition(stateClosed)
	}
	c.conn.Close()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	c := &session{
		conn:  conn,
		state: stateAwaitingRequest,
		log:   s.log.With("conn", uuid.NewString()),
	}
	defer c.close()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("connection handler panic", "panic", r)
		}
	}()

	if s.connTimeout > 0 {
		deadline := time.Now().Add(s.connTimeout)
		conn.SetDeadline(deadline)
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	line, err := readLine(bufio.NewReader(conn), maxRequestSize)
	var resp protocol.Response
	switch {
	case err == nil:
		c.transition(stateDispatching)
		resp = s.dispatchSafe(ctx, line, c.log)
	case errors.Is(err, ErrRequestTooLarge):
		c.transition(stateDispatching)
		resp = protocol.Failure("Invalid request: %v", err)
	case errors.Is(err, io.EOF):
		c.log.Debug("peer closed without a request")
		return
	default:
		c.log.Warn("failed to read request", "error", err)
		return
	}

	c.transition(stateAwaitingFlush)
	if err := protocol.NewFlushWriter(conn).WriteLine(resp); err != nil {
		c.log.Warn("failed to write response", "error", err)
	}
}

func (s *Server) dispatchSafe(ctx context.Context, line []byte, log *slog.Logger) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatch panic", "panic", r)
			resp = protocol.Failure("Internal error: %v", r)
		}
	}()
	return s.dispatch(ctx, line, log)
}

func (s *Server) dispatch(ctx context.Context, line []byte, log *slog.Logger) protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return protocol.Failure("Invalid request: %v", err)
	}

	method := protocol.ParseMethod(req.Method)
	log.Debug("request received", "method", method)

	switch method {
	case protocol.MethodPing:
		return protocol.Success(protocol.PingResult{Pong: true})

	case protocol.MethodScreenshot:
		var params protocol.ScreenshotParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return protocol.Failure("Invalid screenshot params: %v", err)
			}
		}
		if params.OutputDir == "" {
			return protocol.Failure("Invalid screenshot params: missing field `output_dir`")
		}

		path, err := s.capturer.Capture(ctx, params.OutputDir)
		if err != nil {
			log.Warn("screenshot failed", "output_dir", params.OutputDir, "error", err)
			return protocol.Failure("Screenshot failed: %v", err)
		}
		return protocol.Success(protocol.ScreenshotResult{Path: path})

	case protocol.MethodUnknown:
		return protocol.Failure("Unknown method: %s", req.Method)
	}

	return protocol.Failure("Unknown method: %s", req.Method)
}
