package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/ghview-bridge/internal/logger"
	"github.com/alucardeht/ghview-bridge/internal/tools"
	"github.com/alucardeht/ghview-bridge/pkg/protocol"
)

type Server struct {
	registry *tools.Registry
	handler  *Handler
	log      *slog.Logger
}

type ServerConfig struct {
	// CallTimeout bounds each tools/call. Zero disables the bound.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

func NewServer(registry *tools.Registry, cfg ServerConfig) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.ForComponent("mcp")
	}
	return &Server{
		registry: registry,
		handler:  NewHandler(registry, cfg.CallTimeout, log),
		log:      log,
	}
}

// HandleLine decodes one request line and returns its response. Lines that
// are not a request object produce a parse error with a null id.
func (s *Server) HandleLine(ctx context.Context, line []byte) *protocol.JSONRPCResponse {
	var req protocol.JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return protocol.NewError(nil, jsonrpc2.CodeParseError, fmt.Sprintf("Parse error: %v", err))
	}
	if err := req.ValidateID(); err != nil {
		return protocol.NewError(nil, jsonrpc2.CodeInvalidRequest, fmt.Sprintf("Invalid request: %v", err))
	}
	if req.Method == "" {
		return protocol.NewError(nil, jsonrpc2.CodeParseError, "Parse error: missing field `method`")
	}
	return s.handler.Handle(ctx, &req)
}

// ProcessStream serves requests from r until end of stream, writing exactly
// one response line per non-blank input line. Requests are handled one at a
// time in arrival order.
func (s *Server) ProcessStream(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	out := protocol.NewFlushWriter(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("failed to read request: %w", readErr)
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			resp := s.HandleLine(ctx, trimmed)
			if err := out.WriteLine(resp); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
		}

		if errors.Is(readErr, io.EOF) {
			s.log.Debug("input closed")
			return nil
		}
	}
}

func (s *Server) Handler() *Handler {
	return s.handler
}

func (s *Server) Registry() *tools.Registry {
	return s.registry
}
