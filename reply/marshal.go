package reply

import (
	"fmt"
	"strconv"
	"strings"
)

// Target is an output slot a reply is marshaled into.
//
// Element returns the child slot at a zero-based position, creating it when needed.
// Implementations decide how positions map onto the host (Lua tables use i+1).
type Target interface {
	SetKind(k Kind)
	SetText(b []byte)
	SetInteger(n int64)
	Element(i int) Target
}

// NilPolicy controls how nil replies are written
type NilPolicy int

const (
	// NilMarker tags the target with KindNil and writes no payload
	NilMarker NilPolicy = iota
	// NilSkip leaves the target untouched
	NilSkip
)

// String returns the configuration name of the policy
func (p NilPolicy) String() string {
	switch p {
	case NilMarker:
		return "marker"
	case NilSkip:
		return "skip"
	default:
		return fmt.Sprintf("NilPolicy(%d)", int(p))
	}
}

// ParseNilPolicy parses "marker" or "skip"
func ParseNilPolicy(s string) (NilPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "marker":
		return NilMarker, nil
	case "skip":
		return NilSkip, nil
	default:
		return NilMarker, fmt.Errorf("unknown nil policy %q", s)
	}
}

// Marshaler converts reply nodes into targets
type Marshaler struct {
	Nil NilPolicy
}

// Marshal writes n into t. Arrays are walked recursively with no depth limit.
func (m Marshaler) Marshal(n Node, t Target) {
	switch n.Kind {
	case KindStatus, KindString, KindError:
		t.SetKind(n.Kind)
		t.SetText(n.Str)
	case KindInteger:
		t.SetKind(n.Kind)
		t.SetInteger(n.Integer)
		// the text mirror keeps values beyond float precision intact for hosts with float numbers
		t.SetText([]byte(strconv.FormatInt(n.Integer, 10)))
	case KindArray:
		t.SetKind(n.Kind)
		for i, e := range n.Elements {
			if e.IsNil() && m.Nil == NilSkip {
				// keep the position so later elements do not shift
				t.Element(i)
				continue
			}
			m.Marshal(e, t.Element(i))
		}
	default:
		if m.Nil == NilMarker {
			t.SetKind(KindNil)
		}
	}
}

// Tree is the generic Go output tree
type Tree struct {
	Kind     Kind
	Text     []byte
	Length   int
	Integer  int64
	Children []*Tree
}

// SetKind implements Target
func (t *Tree) SetKind(k Kind) { t.Kind = k }

// SetText implements Target
func (t *Tree) SetText(b []byte) {
	t.Text = append([]byte(nil), b...)
	t.Length = len(b)
}

// SetInteger implements Target
func (t *Tree) SetInteger(n int64) { t.Integer = n }

// Element implements Target
func (t *Tree) Element(i int) Target {
	for len(t.Children) <= i {
		t.Children = append(t.Children, &Tree{})
	}
	return t.Children[i]
}

// Depth returns the nesting depth of the tree; leaves have depth 0
func (t *Tree) Depth() int {
	if t.Kind != KindArray {
		return 0
	}
	deepest := 0
	for _, c := range t.Children {
		if d := c.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// ToTree marshals n into a fresh Tree using the marker nil policy
func ToTree(n Node) *Tree {
	t := &Tree{}
	Marshaler{}.Marshal(n, t)
	return t
}

// Format renders the tree the way redis-cli prints replies
func (t *Tree) Format() string {
	var sb strings.Builder
	t.format(&sb, "")
	return sb.String()
}

func (t *Tree) format(sb *strings.Builder, indent string) {
	switch t.Kind {
	case KindStatus:
		sb.WriteString(string(t.Text))
	case KindString:
		sb.WriteString(strconv.Quote(string(t.Text)))
	case KindError:
		sb.WriteString("(error) " + string(t.Text))
	case KindInteger:
		sb.WriteString("(integer) " + strconv.FormatInt(t.Integer, 10))
	case KindArray:
		if len(t.Children) == 0 {
			sb.WriteString("(empty array)")
			return
		}
		for i, c := range t.Children {
			if i > 0 {
				sb.WriteString("\n" + indent)
			}
			prefix := strconv.Itoa(i+1) + ") "
			sb.WriteString(prefix)
			c.format(sb, indent+strings.Repeat(" ", len(prefix)))
		}
	default:
		sb.WriteString("(nil)")
	}
}
