package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/logging"
)

// requestTimeout bounds how long a client may take to send its command.
const requestTimeout = 2 * time.Second

// Handler answers one control request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

type ServeOption func(*server)

// WithLogger logs each handled command at debug level.
func WithLogger(logger *slog.Logger) ServeOption {
	return func(s *server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type server struct {
	handler Handler
	logger  *slog.Logger
}

// Serve answers clients on listener until ctx ends or the listener closes.
// In-flight requests finish before Serve returns.
func Serve(ctx context.Context, listener net.Listener, handler Handler, opts ...ServeOption) error {
	s := &server{handler: handler, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept control connection: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(requestTimeout))

	var req Request
	readErr, decodeErr := readLine(bufio.NewReader(conn), &req)
	var resp Response
	switch {
	case readErr != nil:
		resp = failure("read request: %v", readErr)
	case decodeErr != nil:
		resp = failure("decode request: %v", decodeErr)
	case strings.TrimSpace(req.Command) == "":
		resp = failure("empty command")
	default:
		resp = s.handler.Handle(ctx, req)
		s.logger.Debug("control command", "command", req.Command, "ok", resp.OK)
	}
	_ = writeLine(conn, resp)
}
