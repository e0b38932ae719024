package transport

import (
	"context"
	"net"
	"time"

	"github.com/mediocregopher/radix.v2/redis"
	"github.com/pkg/errors"

	"github.com/raniellyferreira/redistmpl/reply"
)

// Radix dials connections backed by the radix.v2 client. The radix client is
// synchronous and does not observe contexts.
type Radix struct{}

// Dial opens a TCP connection to addr. timeout bounds the dial only; commands
// have no read or write deadline.
func (Radix) Dial(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	d := net.Dialer{Timeout: timeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "radix: dial %s", addr)
	}
	// redis.DialTimeout would also apply timeout to every read and write
	client, err := redis.NewClient(nc)
	if err != nil {
		_ = nc.Close()
		return nil, errors.Wrapf(err, "radix: dial %s", addr)
	}
	return &radixConn{client: client}, nil
}

type radixConn struct {
	client  *redis.Client
	pending int
}

func (c *radixConn) Do(_ context.Context, argv [][]byte) (reply.Node, error) {
	if len(argv) == 0 {
		return reply.Node{}, errors.New("radix: empty command")
	}
	return fromRadix(c.client.Cmd(string(argv[0]), radixArgs(argv)...))
}

func (c *radixConn) Append(_ context.Context, argv [][]byte) error {
	if len(argv) == 0 {
		return errors.New("radix: empty command")
	}
	c.client.PipeAppend(string(argv[0]), radixArgs(argv)...)
	c.pending++
	return nil
}

func (c *radixConn) Receive(_ context.Context) (reply.Node, error) {
	if c.pending == 0 {
		return reply.Node{}, errors.New("radix: no pipelined command pending")
	}
	c.pending--
	return fromRadix(c.client.PipeResp())
}

func (c *radixConn) Close() error {
	return c.client.Close()
}

func radixArgs(argv [][]byte) []interface{} {
	args := make([]interface{}, len(argv)-1)
	for i, a := range argv[1:] {
		args[i] = a
	}
	return args
}

// fromRadix converts a radix response, recursing into arrays
func fromRadix(r *redis.Resp) (reply.Node, error) {
	switch {
	case r.IsType(redis.IOErr):
		return reply.Node{}, errors.Wrap(r.Err, "radix")
	case r.IsType(redis.AppErr):
		return reply.Error(r.Err.Error()), nil
	case r.IsType(redis.Nil):
		return reply.Nil(), nil
	case r.IsType(redis.Int):
		n, err := r.Int64()
		if err != nil {
			return reply.Node{}, errors.Wrap(err, "radix: integer reply")
		}
		return reply.Integer(n), nil
	case r.IsType(redis.SimpleStr):
		b, err := r.Bytes()
		if err != nil {
			return reply.Node{}, errors.Wrap(err, "radix: status reply")
		}
		return reply.Node{Kind: reply.KindStatus, Str: b}, nil
	case r.IsType(redis.BulkStr):
		b, err := r.Bytes()
		if err != nil {
			return reply.Node{}, errors.Wrap(err, "radix: bulk reply")
		}
		return reply.Bulk(b), nil
	case r.IsType(redis.Array):
		elems, err := r.Array()
		if err != nil {
			return reply.Node{}, errors.Wrap(err, "radix: array reply")
		}
		nodes := make([]reply.Node, len(elems))
		for i, e := range elems {
			if nodes[i], err = fromRadix(e); err != nil {
				return reply.Node{}, err
			}
		}
		return reply.Array(nodes...), nil
	default:
		return reply.Node{}, errors.Errorf("radix: unexpected reply %v", r)
	}
}
