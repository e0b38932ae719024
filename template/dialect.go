package template

import (
	"fmt"
	"strings"
)

// Dialect selects the placeholder syntax
type Dialect int

const (
	// Token marks placeholders with a standalone "?" part
	Token Dialect = iota
	// Printf marks placeholders with "%s"; any other specifier is rejected
	Printf
)

// String returns the configuration name of the dialect
func (d Dialect) String() string {
	switch d {
	case Token:
		return "token"
	case Printf:
		return "printf"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

// ParseDialect parses "token" or "printf"
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "token":
		return Token, nil
	case "printf":
		return Printf, nil
	default:
		return Token, fmt.Errorf("unknown template dialect %q", s)
	}
}

type tokenCompiler struct {
	opts *options
}

func (c *tokenCompiler) Dialect() Dialect { return Token }

func (c *tokenCompiler) Compile(command, vars string) (*Template, error) {
	t := &Template{Source: command, Dialect: Token, Vars: SplitVars(vars)}
	for _, p := range splitParts(command) {
		if p == "?" {
			t.Parts = append(t.Parts, Part{Segments: []Segment{{Placeholder: true}}})
		} else {
			t.Parts = append(t.Parts, Part{Segments: []Segment{{Literal: p}}})
		}
	}
	if err := checkCounts(t, c.opts); err != nil {
		return nil, err
	}
	return t, nil
}

type printfCompiler struct {
	opts *options
}

func (c *printfCompiler) Dialect() Dialect { return Printf }

func (c *printfCompiler) Compile(command, vars string) (*Template, error) {
	t := &Template{Source: command, Dialect: Printf, Vars: SplitVars(vars)}
	offset := 0
	for _, p := range splitParts(command) {
		base := strings.Index(command[offset:], p) + offset
		part, err := scanPrintfPart(command, p, base)
		if err != nil {
			return nil, err
		}
		offset = base + len(p)
		t.Parts = append(t.Parts, part)
	}
	if err := checkCounts(t, c.opts); err != nil {
		return nil, err
	}
	return t, nil
}

// scanPrintfPart splits one part into literal and %s segments. base is the offset of
// the part inside the full command, used for error reporting.
func scanPrintfPart(command, p string, base int) (Part, error) {
	var part Part
	var lit strings.Builder
	for i := 0; i < len(p); i++ {
		if p[i] != '%' {
			lit.WriteByte(p[i])
			continue
		}
		if i+1 >= len(p) {
			return Part{}, &InvalidSpecifierError{Command: command, Specifier: "%", Offset: base + i}
		}
		if p[i+1] != 's' {
			return Part{}, &InvalidSpecifierError{Command: command, Specifier: p[i : i+2], Offset: base + i}
		}
		if lit.Len() > 0 {
			part.Segments = append(part.Segments, Segment{Literal: lit.String()})
			lit.Reset()
		}
		part.Segments = append(part.Segments, Segment{Placeholder: true})
		i++
	}
	if lit.Len() > 0 {
		part.Segments = append(part.Segments, Segment{Literal: lit.String()})
	}
	return part, nil
}
