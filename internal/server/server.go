// Package server implements a high-performance TCP server with graceful shutdown capabilities.
// The architecture uses goroutine-per-connection for natural resource management and scales
// efficiently to 100+ concurrent clients. Includes operational metrics, connection timeouts,
// and comprehensive error handling for production observability workloads.
//
// Generalized from the teacher's internal/server.Server (which held a
// concrete *indexer.Indexer) to depend on the store.Store interface, so
// either the memory or filesystem backend can be wired in at startup
// (spec.md §9's "polymorphism over store variants").
package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitsutliff/depindex/internal/store"
	"github.com/kitsutliff/depindex/internal/wire"
)

// readTimeout defines the per-read deadline to mitigate slowloris-style DoS attacks.
const readTimeout = 30 * time.Second

// Server manages TCP connections and coordinates with a store.Store using
// a goroutine-per-connection model.
type Server struct {
	store store.Store
	addr  string
	log   *zap.Logger

	mu       sync.Mutex
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group

	metrics *Metrics
	ready   chan struct{}
}

// New creates a new server bound to addr, dispatching to st.
func New(addr string, st store.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		store:   st,
		addr:    addr,
		log:     log,
		metrics: NewMetrics(),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the listener is bound (or failed to bind),
// letting callers (tests, admin endpoints) wait for startup to settle.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the address the server is actually listening on, useful
// when the server was constructed with an ephemeral port ("host:0").
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start begins listening for connections on the configured address.
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext begins listening for connections with context support
// for graceful shutdown. Context cancellation closes the listener, which
// stops new connections, and closes every open client connection;
// Shutdown waits, up to its context's deadline, for the connection
// handlers to return.
func (s *Server) StartWithContext(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.eg = &errgroup.Group{}

	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		close(s.ready)
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	close(s.ready)

	go func() {
		<-s.ctx.Done()
		s.mu.Lock()
		l := s.listener
		s.mu.Unlock()
		if l != nil {
			_ = l.Close()
		}
	}()

	s.log.Info("listening", zap.String("addr", l.Addr().String()))

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil // graceful shutdown
			default:
				s.log.Warn("accept failed", zap.Error(err))
				continue
			}
		}

		s.eg.Go(func() error {
			s.handleConnection(conn)
			return nil
		})
	}
}

// handleConnection processes all messages from a single client connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil {
			s.log.Debug("error closing connection", zap.Error(err))
		}
	}()
	connID := uuid.NewString()
	s.serveConn(s.ctx, conn, connID)
}

// serveConn contains the core connection processing loop. Lines from one
// connection are strictly ordered: the next line is read only after the
// previous line's reply has been fully written (spec.md §5).
func (s *Server) serveConn(ctx context.Context, conn net.Conn, connID string) {
	clientAddr := conn.RemoteAddr().String()
	s.log.Debug("client connected", zap.String("conn_id", connID), zap.String("addr", clientAddr))
	s.metrics.IncrementConnections()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	reader := bufio.NewReader(conn)

	doneCh := make(chan struct{})
	defer close(doneCh)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-doneCh:
		}
	}()

	var msgID int64
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				s.log.Debug("client disconnected", zap.String("conn_id", connID))
			} else {
				s.log.Debug("read error", zap.String("conn_id", connID), zap.Error(err))
			}
			return
		}

		msgID++
		s.metrics.IncrementCommands()
		response := s.processCommand(line, connID, msgID)

		if _, err := conn.Write([]byte(response.String())); err != nil {
			s.log.Debug("write error", zap.String("conn_id", connID), zap.Error(err))
			return
		}
	}
}

// processCommand parses and executes a single command, updating metrics
// for every terminal outcome (OK/FAIL/ERROR) the way
// _examples/yglcode-code_challenges/index-server/index_server.go tallies
// numOK/numFAIL/numERROR for its STATUS command.
func (s *Server) processCommand(line string, connID string, msgID int64) wire.Response {
	cmd, err := wire.ParseCommand(line)
	if err != nil {
		s.log.Debug("parse error", zap.String("conn_id", connID), zap.Int64("msg_id", msgID), zap.Error(err))
		s.metrics.IncrementErrors()
		return wire.ERROR
	}

	var resp wire.Response
	switch cmd.Type {
	case wire.IndexCommand:
		if s.store.Index(cmd.Package, cmd.Dependencies) {
			s.metrics.IncrementPackages()
			resp = wire.OK
		} else {
			resp = wire.FAIL
		}

	case wire.RemoveCommand:
		switch s.store.Remove(cmd.Package) {
		case store.RemoveOK, store.RemoveNotIndexed:
			resp = wire.OK
		case store.RemoveBlocked:
			resp = wire.FAIL
		}

	case wire.QueryCommand:
		if s.store.Query(cmd.Package) {
			resp = wire.OK
		} else {
			resp = wire.FAIL
		}

	default:
		s.log.Warn("unknown command type", zap.Int("type", int(cmd.Type)))
		s.metrics.IncrementErrors()
		return wire.ERROR
	}

	switch resp {
	case wire.OK:
		s.metrics.IncrementOK()
	case wire.FAIL:
		s.metrics.IncrementFail()
	}
	return resp
}

// GetMetrics returns a snapshot of current server metrics.
func (s *Server) GetMetrics() MetricsSnapshot {
	return s.metrics.GetSnapshot()
}

// Shutdown gracefully shuts down the server: stops accepting, closes the
// listening socket, and waits (up to ctx's deadline) for the connection
// handlers to return. Cancellation also closes each client connection, so
// a reply that a handler is writing at that moment can be cut off.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")

	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		_ = l.Close()
	}

	if s.eg == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		_ = s.eg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("all connections closed gracefully")
		return nil
	case <-ctx.Done():
		s.log.Warn("shutdown timeout exceeded")
		return ctx.Err()
	}
}
