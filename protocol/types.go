package protocol

import (
	"fmt"
	"strings"

	"github.com/raniellyferreira/redistmpl/reply"
)

// RESP type prefixes
const (
	prefixStatus  = '+'
	prefixError   = '-'
	prefixInteger = ':'
	prefixBulk    = '$'
	prefixArray   = '*'
)

// Command represents a Redis command parsed from a RESP array
type Command struct {
	Name string
	Args [][]byte
}

// ParseCommand parses a RESP array node into a Command
func ParseCommand(n reply.Node) (*Command, error) {
	if n.Kind != reply.KindArray || len(n.Elements) == 0 {
		return nil, fmt.Errorf("invalid command format")
	}

	cmd := &Command{
		Args: make([][]byte, len(n.Elements)-1),
	}

	// First element is the command name
	if n.Elements[0].Kind != reply.KindString {
		return nil, fmt.Errorf("command name must be bulk string")
	}
	cmd.Name = strings.ToUpper(string(n.Elements[0].Str))

	for i := 1; i < len(n.Elements); i++ {
		if n.Elements[i].Kind != reply.KindString {
			return nil, fmt.Errorf("command arguments must be bulk strings")
		}
		cmd.Args[i-1] = n.Elements[i].Str
	}

	return cmd, nil
}

// Argv returns the command as a positional argument vector
func (c *Command) Argv() [][]byte {
	argv := make([][]byte, 0, len(c.Args)+1)
	argv = append(argv, []byte(c.Name))
	return append(argv, c.Args...)
}

// String returns a string representation of the command
func (c *Command) String() string {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = string(arg)
	}
	return strings.TrimSpace(c.Name + " " + strings.Join(args, " "))
}
