package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raniellyferreira/redistmpl/reply"
)

// Conn is one live connection to a Redis server.
//
// An error return means the transport failed and no reply exists. A command
// the server rejected comes back as a reply.KindError node with a nil error.
type Conn interface {
	Do(ctx context.Context, argv [][]byte) (reply.Node, error)
	Append(ctx context.Context, argv [][]byte) error
	Receive(ctx context.Context) (reply.Node, error)
	Close() error
}

// Dialer opens connections
type Dialer interface {
	Dial(ctx context.Context, addr string, timeout time.Duration) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface
type DialerFunc func(ctx context.Context, addr string, timeout time.Duration) (Conn, error)

// Dial calls f
func (f DialerFunc) Dial(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	return f(ctx, addr, timeout)
}

// Names of the built-in dialers
const (
	NameRadix   = "radix"
	NameGoRedis = "goredis"
	NameRESP    = "resp"
)

// Default is the dialer used when none is configured
var Default Dialer = Radix{}

// ByName returns the built-in dialer registered under name. An empty name
// selects the default.
func ByName(name string) (Dialer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameRadix:
		return Radix{}, nil
	case NameGoRedis:
		return GoRedis{}, nil
	case NameRESP:
		return RESP{}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}

// Names returns the names accepted by ByName
func Names() []string {
	return []string{NameRadix, NameGoRedis, NameRESP}
}
