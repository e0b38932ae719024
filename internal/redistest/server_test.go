package redistest

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raniellyferreira/redistmpl/protocol"
	"github.com/raniellyferreira/redistmpl/reply"
)

type testClient struct {
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
}

func newTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{
		conn:   conn,
		reader: protocol.NewReader(bufio.NewReader(conn)),
		writer: protocol.NewWriter(conn),
	}
}

func (c *testClient) do(t *testing.T, args ...string) reply.Node {
	t.Helper()
	argv := make([][]byte, len(args))
	for i, a := range args {
		argv[i] = []byte(a)
	}
	require.NoError(t, c.writer.WriteCommand(argv))
	require.NoError(t, c.writer.Flush())
	n, err := c.reader.ReadNext()
	require.NoError(t, err)
	return n
}

func TestBasicCommands(t *testing.T) {
	s := Start(t)
	c := newTestClient(t, s.Addr())

	tests := []struct {
		name string
		args []string
		want reply.Node
	}{
		{name: "ping", args: []string{"PING"}, want: reply.Status("PONG")},
		{name: "echo", args: []string{"ECHO", "hi"}, want: reply.BulkString("hi")},
		{name: "get missing", args: []string{"GET", "k"}, want: reply.Nil()},
		{name: "set", args: []string{"SET", "k", "v"}, want: reply.Status("OK")},
		{name: "get", args: []string{"get", "k"}, want: reply.BulkString("v")},
		{name: "append", args: []string{"APPEND", "k", "w"}, want: reply.Integer(2)},
		{name: "exists", args: []string{"EXISTS", "k", "nope"}, want: reply.Integer(1)},
		{name: "incr", args: []string{"INCR", "n"}, want: reply.Integer(1)},
		{name: "incr non-integer", args: []string{"INCR", "k"}, want: reply.Error("ERR value is not an integer or out of range")},
		{name: "rpush", args: []string{"RPUSH", "l", "a", "b"}, want: reply.Integer(2)},
		{name: "lrange", args: []string{"LRANGE", "l", "0", "-1"}, want: reply.Array(reply.BulkString("a"), reply.BulkString("b"))},
		{name: "get list", args: []string{"GET", "l"}, want: wrongType()},
		{name: "del", args: []string{"DEL", "k", "l", "nope"}, want: reply.Integer(2)},
		{name: "unknown", args: []string{"FOO"}, want: reply.Error("ERR unknown command 'foo'")},
		{name: "arity", args: []string{"GET"}, want: reply.Error("ERR wrong number of arguments for 'get' command")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.do(t, tt.args...))
		})
	}
}

func TestSelectIsolatesDatabases(t *testing.T) {
	s := Start(t)
	c := newTestClient(t, s.Addr())

	assert.Equal(t, reply.Status("OK"), c.do(t, "SELECT", "2"))
	c.do(t, "SET", "k", "two")

	v, ok := s.Value(2, "k")
	assert.True(t, ok)
	assert.Equal(t, "two", v)

	_, ok = s.Value(0, "k")
	assert.False(t, ok)

	assert.True(t, c.do(t, "SELECT", "99").IsError())
}

func TestSetExRecordsTTL(t *testing.T) {
	s := Start(t)
	c := newTestClient(t, s.Addr())

	assert.Equal(t, reply.Status("OK"), c.do(t, "SETEX", "k", "60", "v"))
	assert.Greater(t, s.TTL(0, "k").Seconds(), 50.0)
	assert.True(t, c.do(t, "SETEX", "k", "0", "v").IsError())
}

func TestHandleOverride(t *testing.T) {
	s := Start(t)
	s.Handle("nested", func(args [][]byte) reply.Node {
		return reply.Array(reply.BulkString("a"), reply.Array(reply.Integer(2), reply.Nil()))
	})
	c := newTestClient(t, s.Addr())

	got := c.do(t, "NESTED")
	assert.Equal(t, 2, got.Depth())

	received := s.Received()
	require.Len(t, received, 1)
	assert.Equal(t, "NESTED", received[0].Name)
	assert.Equal(t, 1, s.Connections())
}

func TestSeed(t *testing.T) {
	s := Start(t)
	s.Seed(0, "k", "seeded")
	c := newTestClient(t, s.Addr())
	assert.Equal(t, reply.BulkString("seeded"), c.do(t, "GET", "k"))
}

type failingListener struct {
	net.Listener
	accepts atomic.Int64
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.accepts.Add(1)
	return nil, errors.New("accept: too many open files")
}

func TestAcceptErrorsBackOff(t *testing.T) {
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	l := &failingListener{Listener: inner}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		listener: l,
		ctx:      ctx,
		cancel:   cancel,
		dbs:      make(map[int]map[string]entry),
		handlers: make(map[string]HandlerFunc),
	}
	s.wg.Add(1)
	go s.acceptConnections()

	time.Sleep(200 * time.Millisecond)
	s.Stop()

	// 5ms doubling delays allow only a handful of attempts in 200ms
	assert.Less(t, l.accepts.Load(), int64(10))
}
