package transport

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/raniellyferreira/redistmpl/protocol"
	"github.com/raniellyferreira/redistmpl/reply"
)

// RESP dials plain TCP connections and speaks the protocol package directly.
// Appended commands stay buffered until the first Receive.
type RESP struct{}

// Dial opens a TCP connection to addr
func (RESP) Dial(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resp: dial %s", addr)
	}
	return &respConn{
		conn:   conn,
		reader: protocol.NewReader(conn),
		writer: protocol.NewWriter(conn),
	}, nil
}

type respConn struct {
	conn    net.Conn
	reader  *protocol.Reader
	writer  *protocol.Writer
	pending int
}

func (c *respConn) Do(ctx context.Context, argv [][]byte) (reply.Node, error) {
	if c.pending > 0 {
		return reply.Node{}, errors.Errorf("resp: %d pipelined replies not received", c.pending)
	}
	if err := c.writer.WriteCommand(argv); err != nil {
		return reply.Node{}, errors.Wrap(err, "resp: write")
	}
	return c.read(ctx)
}

func (c *respConn) Append(_ context.Context, argv [][]byte) error {
	if err := c.writer.WriteCommand(argv); err != nil {
		return errors.Wrap(err, "resp: append")
	}
	c.pending++
	return nil
}

func (c *respConn) Receive(ctx context.Context) (reply.Node, error) {
	if c.pending == 0 {
		return reply.Node{}, errors.New("resp: no pipelined command pending")
	}
	c.pending--
	return c.read(ctx)
}

func (c *respConn) Close() error {
	return c.conn.Close()
}

// read flushes buffered commands and reads one reply, honouring the context deadline
func (c *respConn) read(ctx context.Context) (reply.Node, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return reply.Node{}, errors.Wrap(err, "resp: set deadline")
	}
	if c.writer.Buffered() > 0 {
		if err := c.writer.Flush(); err != nil {
			return reply.Node{}, errors.Wrap(err, "resp: flush")
		}
	}
	n, err := c.reader.ReadNext()
	if err != nil {
		return reply.Node{}, errors.Wrap(err, "resp: read")
	}
	return n, nil
}
