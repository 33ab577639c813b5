package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alucardeht/ghview-bridge/internal/logger"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Capturer takes a screenshot of the host window into outputDir and returns
// the absolute path of the written file.
type Capturer interface {
	Capture(ctx context.Context, outputDir string) (string, error)
}

type ServerConfig struct {
	SocketPath string
	// ConnTimeout bounds the whole exchange on one connection. Zero disables
	// the deadline.
	ConnTimeout time.Duration
	Logger      *slog.Logger
}

type Server struct {
	socketPath  string
	connTimeout time.Duration
	capturer    Capturer
	log         *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	lock     *LockFile
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup

	closed    atomic.Bool
	closeOnce sync.Once
}

func NewServer(cfg ServerConfig, capturer Capturer) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.ForComponent("ipc")
	}
	return &Server{
		socketPath:  cfg.SocketPath,
		connTimeout: cfg.ConnTimeout,
		capturer:    capturer,
		log:         log,
		conns:       make(map[net.Conn]struct{}),
	}
}

// Start binds the endpoint and serves it in the background until ctx is done.
// A bind failure is logged and leaves the capture capability unavailable; it
// is never returned to the caller.
func Start(ctx context.Context, cfg ServerConfig, capturer Capturer) *Server {
	s := NewServer(cfg, capturer)
	if err := s.Listen(); err != nil {
		s.log.Error("local channel unavailable, screenshots disabled", "socket", cfg.SocketPath, "error", err)
		return s
	}

	go func() {
		if err := s.Serve(ctx); err != nil {
			s.log.Error("local channel stopped", "error", err)
		}
	}()
	return s
}

// Listen takes the instance lock, removes a stale endpoint and binds.
func (s *Server) Listen() error {
	lock := NewLockFile(lockPath(s.socketPath))
	if err := lock.Acquire(); err != nil {
		return fmt.Errorf("failed to acquire instance lock %s: %w", lock.Path(), err)
	}

	listener, err := listen(s.socketPath)
	if err != nil {
		lock.Release()
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.lock = lock
	s.mu.Unlock()

	s.log.Info("local channel listening", "socket", s.socketPath)
	return nil
}

// Listening reports whether the endpoint is bound.
func (s *Server) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil && !s.closed.Load()
}

func (s *Server) Addr() string {
	return s.socketPath
}

// Serve accepts connections until ctx is done or the server is closed, then
// waits for in-flight connections.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return fmt.Errorf("listener not started")
	}

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()
	defer s.wg.Wait()

	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}

			backoff = nextBackoff(backoff)
			s.log.Warn("accept failed", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0

		if !s.track(conn) {
			conn.Close()
			return nil
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	d *= 2
	if d > maxAcceptBackoff {
		d = maxAcceptBackoff
	}
	return d
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Close stops accepting, drops open connections, removes the endpoint and
// releases the instance lock. It is safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		listener := s.listener
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()

		if listener == nil {
			return
		}

		err = listener.Close()
		unlinkEndpoint(s.socketPath)
		if s.lock != nil {
			s.lock.Release()
		}
		s.log.Info("local channel closed", "socket", s.socketPath)
	})
	return err
}
