// Package template compiles Redis command templates and builds the positional argument
// vector sent to the server.
//
// Two placeholder dialects are supported, each as its own compiler:
//
//	Token:  "SET ? ?"        a part that is exactly "?" is a placeholder
//	Printf: "SET user:%s %s" "%s" anywhere inside a part is a placeholder
//
// Variable references are given as one comma-delimited string ("l.key, g.value") and
// are resolved through a scope.Resolver when the argument vector is built.
package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raniellyferreira/redistmpl/scope"
)

// ErrBlankCommand is returned when a template produces no arguments
var ErrBlankCommand = errors.New("blank command")

// CountError reports a placeholder/variable count mismatch
type CountError struct {
	Command      string
	Placeholders int
	Variables    int
}

// Error implements the error interface
func (e *CountError) Error() string {
	return fmt.Sprintf("Redis command '%s' has %d variable substitutions, but you provided %d variables!",
		e.Command, e.Placeholders, e.Variables)
}

// InvalidSpecifierError reports a printf-style specifier other than %s
type InvalidSpecifierError struct {
	Command   string
	Specifier string
	Offset    int
}

// Error implements the error interface
func (e *InvalidSpecifierError) Error() string {
	return fmt.Sprintf("invalid substitution specifier %q at offset %d in command '%s'",
		e.Specifier, e.Offset, e.Command)
}

// TooManySubstitutionsError reports a template exceeding the configured substitution cap
type TooManySubstitutionsError struct {
	Command      string
	Placeholders int
	Max          int
}

// Error implements the error interface
func (e *TooManySubstitutionsError) Error() string {
	return fmt.Sprintf("Redis command '%s' has %d variable substitutions, the maximum is %d",
		e.Command, e.Placeholders, e.Max)
}

// Segment is a literal fragment or a placeholder inside a part
type Segment struct {
	Literal     string
	Placeholder bool
}

// Part is one whitespace-delimited command argument
type Part struct {
	Segments []Segment
}

// Literal returns the part text when it holds no placeholder
func (p Part) Literal() (string, bool) {
	var sb strings.Builder
	for _, s := range p.Segments {
		if s.Placeholder {
			return "", false
		}
		sb.WriteString(s.Literal)
	}
	return sb.String(), true
}

// Template is a compiled command template
type Template struct {
	Source  string
	Dialect Dialect
	Parts   []Part
	Vars    []string
}

// Placeholders returns the number of placeholders in the template
func (t *Template) Placeholders() int {
	n := 0
	for _, p := range t.Parts {
		for _, s := range p.Segments {
			if s.Placeholder {
				n++
			}
		}
	}
	return n
}

// Build merges the template parts with the resolved variables, in order, into the
// argument vector. Unresolvable variables become empty arguments.
func (t *Template) Build(r scope.Resolver) ([][]byte, error) {
	if len(t.Parts) == 0 {
		return nil, ErrBlankCommand
	}
	argv := make([][]byte, 0, len(t.Parts))
	next := 0
	for _, p := range t.Parts {
		var arg []byte
		for _, s := range p.Segments {
			if !s.Placeholder {
				arg = append(arg, s.Literal...)
				continue
			}
			if next >= len(t.Vars) {
				return nil, &CountError{Command: t.Source, Placeholders: t.Placeholders(), Variables: len(t.Vars)}
			}
			arg = append(arg, r.Resolve(t.Vars[next])...)
			next++
		}
		if arg == nil {
			arg = []byte{}
		}
		argv = append(argv, arg)
	}
	return argv, nil
}

// Compiler compiles a command template and its variable list
type Compiler interface {
	Dialect() Dialect
	Compile(command, vars string) (*Template, error)
}

// Option configures a compiler
type Option func(*options)

type options struct {
	maxSubstitutions int
}

// WithMaxSubstitutions caps the number of placeholders a template may hold.
// Zero, the default, means no cap.
func WithMaxSubstitutions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSubstitutions = n
		}
	}
}

// NewCompiler returns the compiler for the given dialect
func NewCompiler(d Dialect, opts ...Option) (Compiler, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	switch d {
	case Token:
		return &tokenCompiler{opts: o}, nil
	case Printf:
		return &printfCompiler{opts: o}, nil
	default:
		return nil, fmt.Errorf("unknown template dialect %d", int(d))
	}
}

// MustCompiler is like NewCompiler but panics on an unknown dialect
func MustCompiler(d Dialect, opts ...Option) Compiler {
	c, err := NewCompiler(d, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// splitParts splits a command on single spaces, trims each part and drops empty ones
func splitParts(command string) []string {
	raw := strings.Split(command, " ")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.Trim(p, " \t\r\n")
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// SplitVars splits a comma-delimited variable list, trimming spaces around each name
func SplitVars(vars string) []string {
	if vars == "" {
		return nil
	}
	names := strings.Split(vars, ",")
	for i := range names {
		names[i] = strings.Trim(names[i], " ")
	}
	return names
}

func checkCounts(t *Template, o *options) error {
	p := t.Placeholders()
	if p != len(t.Vars) {
		return &CountError{Command: t.Source, Placeholders: p, Variables: len(t.Vars)}
	}
	if o.maxSubstitutions > 0 && p > o.maxSubstitutions {
		return &TooManySubstitutionsError{Command: t.Source, Placeholders: p, Max: o.maxSubstitutions}
	}
	return nil
}
