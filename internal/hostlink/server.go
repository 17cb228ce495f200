package hostlink

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/dshills/axscript/internal/dispatch"
	"github.com/dshills/axscript/internal/event"
)

const scopeName = "github.com/dshills/axscript/internal/hostlink"

// DefaultWriteTimeout bounds a single frame write.
const DefaultWriteTimeout = 5 * time.Second

// Dispatcher routes events to script handlers.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *event.UIEvent) dispatch.Result
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWriteTimeout sets the per-frame write timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// WithCheckOrigin overrides the WebSocket origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// conn is one connected host.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Server accepts host connections over WebSocket. Events from one
// connection are dispatched in arrival order, and dispatches from different
// connections never overlap, so handlers see one event at a time. Speech
// written to the server is sent to every connected host.
type Server struct {
	dispatcher   Dispatcher
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	writeTimeout time.Duration

	dispatchMu sync.Mutex

	mu     sync.Mutex
	conns  map[*conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a server dispatching through d.
func NewServer(d Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger:       otelslog.NewLogger(scopeName),
		writeTimeout: DefaultWriteTimeout,
		conns:        make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	ws.SetReadLimit(MaxFrameSize)

	c := &conn{ws: ws}
	if !s.add(c) {
		_ = s.closeConn(c, websocket.CloseGoingAway, "shutting down")
		return
	}
	defer s.remove(c)

	s.logger.Info("host connected", slog.String("remote", r.RemoteAddr))
	s.serve(r.Context(), c)
	s.logger.Info("host disconnected", slog.String("remote", r.RemoteAddr))
}

func (s *Server) serve(ctx context.Context, c *conn) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				s.logger.Debug("websocket read ended", slog.Any("error", err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		f, err := DecodeFrame(data)
		if err != nil {
			s.reject(c, "", err)
			continue
		}
		ev, err := f.Event()
		if err != nil {
			s.reject(c, f.ID, err)
			continue
		}

		s.dispatchMu.Lock()
		result := s.dispatcher.Dispatch(ctx, ev)
		s.dispatchMu.Unlock()
		if err := s.write(c, ResultFrame(ev.ID, result)); err != nil {
			s.logger.Warn("write result failed", slog.Any("error", err))
			return
		}
	}
}

func (s *Server) reject(c *conn, id string, err error) {
	ferr := &FrameError{Err: err}
	s.logger.Warn("rejected frame", slog.Any("error", ferr))
	if werr := s.write(c, ErrorFrame(id, ferr)); werr != nil {
		s.logger.Debug("write error frame failed", slog.Any("error", werr))
	}
}

func (s *Server) write(c *conn, f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var deadline time.Time
	if s.writeTimeout > 0 {
		deadline = time.Now().Add(s.writeTimeout)
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteJSON(f)
}

func (s *Server) add(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) remove(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.ws.Close()
	s.wg.Done()
}

func (s *Server) snapshot() []*conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Connections returns the number of connected hosts.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// broadcast sends f to every connected host. It fails only if no host
// received the frame.
func (s *Server) broadcast(f Frame) error {
	conns := s.snapshot()
	if len(conns) == 0 {
		return ErrNotConnected
	}

	var errs []error
	for _, c := range conns {
		if err := s.write(c, f); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(conns) {
		return errors.Join(errs...)
	}
	return nil
}

// Speak implements speech.Sink.
func (s *Server) Speak(text string, interrupt bool) error {
	return s.broadcast(SpeakFrame(text, interrupt))
}

// SpeakNotification implements speech.Sink.
func (s *Server) SpeakNotification(text string) error {
	return s.broadcast(NotifyFrame(text))
}

func (s *Server) closeConn(c *conn, code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.ws.Close()
	return err
}

// Close disconnects every host and waits for their connections to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	for _, c := range s.snapshot() {
		_ = s.closeConn(c, websocket.CloseGoingAway, "shutting down")
	}
	s.wg.Wait()
	return nil
}

// ListenAndServe serves the host link on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves the host link on ln until ctx ends, then disconnects every
// host. It returns nil after a shutdown triggered by ctx. The endpoint is "/".
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("host link listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by Shutdown.
	_ = s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
