package reply

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the discriminant of a reply node
type Kind int

const (
	KindString  Kind = 1
	KindArray   Kind = 2
	KindInteger Kind = 3
	KindNil     Kind = 4
	KindStatus  Kind = 5
	KindError   Kind = 6
)

// String returns the lower-case name of the kind
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindInteger:
		return "integer"
	case KindNil:
		return "nil"
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is a single reply value. Only the fields relevant to Kind are set.
type Node struct {
	Kind     Kind
	Str      []byte
	Integer  int64
	Elements []Node
}

// Status returns a status reply node
func Status(s string) Node { return Node{Kind: KindStatus, Str: []byte(s)} }

// Error returns an error reply node
func Error(s string) Node { return Node{Kind: KindError, Str: []byte(s)} }

// Integer returns an integer reply node
func Integer(n int64) Node { return Node{Kind: KindInteger, Integer: n} }

// Bulk returns a bulk string reply node
func Bulk(b []byte) Node { return Node{Kind: KindString, Str: b} }

// BulkString returns a bulk string reply node from a string
func BulkString(s string) Node { return Bulk([]byte(s)) }

// Nil returns a nil reply node
func Nil() Node { return Node{Kind: KindNil} }

// Array returns an array reply node holding elems in order
func Array(elems ...Node) Node {
	if elems == nil {
		elems = []Node{}
	}
	return Node{Kind: KindArray, Elements: elems}
}

// IsNil reports whether the node is a nil reply (or the zero Node)
func (n Node) IsNil() bool { return n.Kind == KindNil || n.Kind == 0 }

// IsError reports whether the node is an error reply
func (n Node) IsError() bool { return n.Kind == KindError }

// Text returns the textual payload of the node. Integers are rendered in base 10.
func (n Node) Text() string {
	if n.Kind == KindInteger {
		return strconv.FormatInt(n.Integer, 10)
	}
	return string(n.Str)
}

// Depth returns the array nesting depth; scalars have depth 0
func (n Node) Depth() int {
	if n.Kind != KindArray {
		return 0
	}
	deepest := 0
	for _, e := range n.Elements {
		if d := e.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// String returns a redis-cli like rendering of the node
func (n Node) String() string {
	switch n.Kind {
	case KindStatus, KindString:
		return string(n.Str)
	case KindError:
		return "(error) " + string(n.Str)
	case KindInteger:
		return "(integer) " + strconv.FormatInt(n.Integer, 10)
	case KindArray:
		parts := make([]string, len(n.Elements))
		for i, e := range n.Elements {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindNil, 0:
		return "(nil)"
	default:
		return fmt.Sprintf("unknown kind %d", int(n.Kind))
	}
}
