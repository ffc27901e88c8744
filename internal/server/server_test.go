package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsutliff/depindex/internal/store/memstore"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := memstore.New("", nil)
	require.NoError(t, err)
	return New("127.0.0.1:0", st, nil)
}

func startTestServer(t *testing.T) (*Server, context.CancelFunc) {
	t.Helper()
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = s.StartWithContext(ctx)
	}()
	<-s.Ready()
	require.NotEmpty(t, s.Addr())
	return s, cancel
}

func dial(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	return conn, bufio.NewReader(conn)
}

func sendAndRead(t *testing.T, conn net.Conn, reader *bufio.Reader, line string) string {
	t.Helper()
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
	resp, err := reader.ReadString('\n')
	require.NoError(t, err)
	return resp
}

func TestNew(t *testing.T) {
	s := newTestServer(t)
	assert.NotNil(t, s.store)
	assert.Equal(t, "127.0.0.1:0", s.addr)
}

func TestServer_StartWithContext_ListenerError(t *testing.T) {
	st, err := memstore.New("", nil)
	require.NoError(t, err)
	s := New("not-an-address:-1", st, nil)
	err = s.StartWithContext(context.Background())
	assert.Error(t, err)
	// Ready must still close so waiters don't block forever on failure.
	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("Ready() never closed after a listen failure")
	}
}

func TestServer_Lifecycle_StartReadyShutdown(t *testing.T) {
	s, cancel := startTestServer(t)
	defer cancel()

	conn, reader := dial(t, s.Addr())
	defer conn.Close()

	assert.Equal(t, "OK\n", sendAndRead(t, conn, reader, "INDEX|base|"))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	assert.NoError(t, s.Shutdown(shutdownCtx))
}

func TestServer_HandleConnection_EOF(t *testing.T) {
	s, cancel := startTestServer(t)
	defer cancel()

	conn, _ := dial(t, s.Addr())
	require.NoError(t, conn.Close())

	// The server should not crash or hang; give the goroutine time to exit.
	time.Sleep(50 * time.Millisecond)
}

func TestServer_HandleConnection_MalformedMessages(t *testing.T) {
	s, cancel := startTestServer(t)
	defer cancel()

	conn, reader := dial(t, s.Addr())
	defer conn.Close()

	malformed := []string{
		"UPDATE|x|",
		"foo",
		"INDEX||",
		"INDEX|package",
		"INDEX|package|deps|extra",
		"INDEX|pkg,with,comma|",
	}
	for _, line := range malformed {
		assert.Equal(t, "ERROR\n", sendAndRead(t, conn, reader, line), "line %q", line)
	}

	// Connection stays open after an ERROR.
	assert.Equal(t, "OK\n", sendAndRead(t, conn, reader, "INDEX|recovered|"))
}

func TestServer_HandleConnection_ConcurrentConnections(t *testing.T) {
	s, cancel := startTestServer(t)
	defer cancel()

	const clients = 20
	done := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func(n int) {
			conn, reader := dial(t, s.Addr())
			defer conn.Close()
			resp := sendAndRead(t, conn, reader, "INDEX|"+pkgName(n)+"|")
			if resp != "OK\n" {
				done <- assertionError("unexpected INDEX response: " + resp)
				return
			}
			resp = sendAndRead(t, conn, reader, "QUERY|"+pkgName(n)+"|")
			if resp != "OK\n" {
				done <- assertionError("unexpected QUERY response: " + resp)
				return
			}
			done <- nil
		}(i)
	}
	for i := 0; i < clients; i++ {
		require.NoError(t, <-done)
	}
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

func pkgName(n int) string {
	return "concurrent-" + string(rune('a'+n%26)) + string(rune('0'+n/26))
}

func TestServer_Metrics_TrackedThroughRequests(t *testing.T) {
	s, cancel := startTestServer(t)
	defer cancel()

	conn, reader := dial(t, s.Addr())
	defer conn.Close()

	sendAndRead(t, conn, reader, "INDEX|base|")
	sendAndRead(t, conn, reader, "INDEX|invalid|missing")
	sendAndRead(t, conn, reader, "bogus")

	snap := s.GetMetrics()
	assert.EqualValues(t, 1, snap.ConnectionsTotal)
	assert.EqualValues(t, 3, snap.CommandsProcessed)
	assert.EqualValues(t, 1, snap.OKCount)
	assert.EqualValues(t, 1, snap.FailCount)
	assert.EqualValues(t, 1, snap.ErrorCount)
	assert.EqualValues(t, 1, snap.PackagesIndexed)
}

func TestServer_Shutdown_NoActiveConnections(t *testing.T) {
	s, cancel := startTestServer(t)
	defer cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	assert.NoError(t, s.Shutdown(ctx))
}

func TestServer_Shutdown_BeforeStart(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
