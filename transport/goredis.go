package transport

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/raniellyferreira/redistmpl/reply"
)

// GoRedis dials single-connection go-redis clients speaking RESP2.
//
// go-redis decodes status and bulk replies to the same Go string, so both
// surface as reply.KindString.
type GoRedis struct{}

// Dial creates a client for addr and pings it so that unreachable servers fail
// here. timeout bounds the dial and the ping; commands have no deadline.
func (GoRedis) Dial(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		DialTimeout:     timeout,
		ReadTimeout:     -1,
		WriteTimeout:    -1,
		PoolSize:        1,
		MinIdleConns:    0,
		MaxRetries:      -1,
		Protocol:        2,
		DisableIdentity: true,

		// a deadline on the caller's context still applies
		ContextTimeoutEnabled: true,
	})

	pingCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "goredis: dial %s", addr)
	}
	return &goRedisConn{client: client}, nil
}

type goRedisConn struct {
	client *redis.Client

	// batch collects appended commands until the first Receive executes it
	batch redis.Pipeliner
	queue []*redis.Cmd
	ready []*redis.Cmd
}

func (c *goRedisConn) Do(ctx context.Context, argv [][]byte) (reply.Node, error) {
	return fromGoRedis(c.client.Do(ctx, goRedisArgs(argv)...).Result())
}

func (c *goRedisConn) Append(ctx context.Context, argv [][]byte) error {
	if len(argv) == 0 {
		return errors.New("goredis: empty command")
	}
	if c.batch == nil {
		c.batch = c.client.Pipeline()
	}
	c.queue = append(c.queue, c.batch.Do(ctx, goRedisArgs(argv)...))
	return nil
}

func (c *goRedisConn) Receive(ctx context.Context) (reply.Node, error) {
	if len(c.ready) == 0 && len(c.queue) > 0 {
		// Exec reports the first failing command; every command carries its own result.
		_, _ = c.batch.Exec(ctx)
		c.ready, c.queue, c.batch = c.queue, nil, nil
	}
	if len(c.ready) == 0 {
		return reply.Node{}, errors.New("goredis: no pipelined command pending")
	}
	cmd := c.ready[0]
	c.ready = c.ready[1:]
	return fromGoRedis(cmd.Result())
}

func (c *goRedisConn) Close() error {
	return c.client.Close()
}

func goRedisArgs(argv [][]byte) []interface{} {
	args := make([]interface{}, len(argv))
	for i, a := range argv {
		args[i] = a
	}
	return args
}

// fromGoRedis converts a go-redis result. redis.Nil satisfies redis.Error, so it is checked first.
func fromGoRedis(v interface{}, err error) (reply.Node, error) {
	if err != nil {
		if err == redis.Nil {
			return reply.Nil(), nil
		}
		var rerr redis.Error
		if errors.As(err, &rerr) {
			return reply.Error(rerr.Error()), nil
		}
		return reply.Node{}, errors.Wrap(err, "goredis")
	}
	return goRedisValue(v), nil
}

func goRedisValue(v interface{}) reply.Node {
	switch v := v.(type) {
	case nil:
		return reply.Nil()
	case string:
		return reply.BulkString(v)
	case []byte:
		return reply.Bulk(v)
	case int64:
		return reply.Integer(v)
	case bool:
		if v {
			return reply.Integer(1)
		}
		return reply.Integer(0)
	case float64:
		return reply.BulkString(strconv.FormatFloat(v, 'f', -1, 64))
	case redis.Error:
		return reply.Error(v.Error())
	case error:
		return reply.Error(v.Error())
	case []interface{}:
		elems := make([]reply.Node, len(v))
		for i, e := range v {
			elems[i] = goRedisValue(e)
		}
		return reply.Array(elems...)
	default:
		return reply.Error("unsupported reply type")
	}
}
