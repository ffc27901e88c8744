package main

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ResponseCode mirrors the wire protocol's three terminal reply lines,
// grounded on _examples/.../testing/suite/client.go's ResponseCode.
type ResponseCode string

const (
	OK      ResponseCode = "OK"
	FAIL    ResponseCode = "FAIL"
	ERROR   ResponseCode = "ERROR"
	UNKNOWN ResponseCode = "UNKNOWN"
)

// IndexerClient is the narrow interface the load generator drives,
// letting tests substitute a fake without opening real sockets.
type IndexerClient interface {
	Name() string
	Close() error
	Send(msg string) (ResponseCode, error)
}

// TCPIndexerClient is the production client: one TCP connection, one
// line in flight at a time, matching spec.md §5's per-connection
// ordering guarantee.
type TCPIndexerClient struct {
	id   string
	conn net.Conn
	log  *zap.Logger
}

// DialIndexerClient opens a new connection identified by id (typically
// a uuid per spec.md's DOMAIN STACK wiring of per-run IDs).
func DialIndexerClient(id, host string, port int, log *zap.Logger) (*TCPIndexerClient, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	log.Debug("client connected", zap.String("client_id", id), zap.String("addr", addr))
	return &TCPIndexerClient{id: id, conn: conn, log: log}, nil
}

func (c *TCPIndexerClient) Name() string { return c.id }

func (c *TCPIndexerClient) Close() error {
	c.log.Debug("client disconnecting", zap.String("client_id", c.id))
	return c.conn.Close()
}

// Send writes msg plus a trailing newline and parses the single reply
// line that comes back.
func (c *TCPIndexerClient) Send(msg string) (ResponseCode, error) {
	c.extendDeadline()
	if _, err := fmt.Fprintf(c.conn, "%s\n", msg); err != nil {
		return UNKNOWN, fmt.Errorf("sending message: %w", err)
	}

	c.extendDeadline()
	line, err := bufio.NewReader(c.conn).ReadString('\n')
	if err != nil {
		return UNKNOWN, fmt.Errorf("reading response: %w", err)
	}

	switch strings.TrimRight(line, "\n") {
	case string(OK):
		return OK, nil
	case string(FAIL):
		return FAIL, nil
	case string(ERROR):
		return ERROR, nil
	default:
		return UNKNOWN, fmt.Errorf("unrecognized response %q", line)
	}
}

func (c *TCPIndexerClient) extendDeadline() {
	_ = c.conn.SetDeadline(time.Now().Add(10 * time.Second))
}
