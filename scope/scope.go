// Package scope resolves template variable references against a local and a global
// variable scope.
//
// A reference has the form "l.<name>" (local) or "g.<name>" (global). Resolution is
// total: malformed references, unknown scopes and missing names all resolve to the
// empty string. Callers that need a variable to be present must check it themselves.
package scope

// Scope is a read-only variable namespace
type Scope interface {
	Lookup(name string) (string, bool)
}

// Map is a Scope backed by a map
type Map map[string]string

// Lookup implements Scope
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Func adapts a function to the Scope interface
type Func func(name string) (string, bool)

// Lookup implements Scope
func (f Func) Lookup(name string) (string, bool) { return f(name) }

// Empty is a scope with no variables
var Empty Scope = Map(nil)

// Tag identifies one of the two scopes
type Tag int

const (
	Local Tag = iota + 1
	Global
)

// String returns the scope name
func (t Tag) String() string {
	switch t {
	case Local:
		return "local"
	case Global:
		return "global"
	default:
		return "unknown"
	}
}

// Reference is a parsed variable reference
type Reference struct {
	Scope Tag
	Name  string
}

// ParseReference parses "l.<name>" or "g.<name>". References shorter than three
// characters or without a recognised prefix are rejected.
func ParseReference(ref string) (Reference, bool) {
	if len(ref) < 3 || ref[1] != '.' {
		return Reference{}, false
	}
	switch ref[0] {
	case 'l':
		return Reference{Scope: Local, Name: ref[2:]}, true
	case 'g':
		return Reference{Scope: Global, Name: ref[2:]}, true
	default:
		return Reference{}, false
	}
}

// Resolver resolves references against a pair of scopes. Nil scopes behave as empty.
type Resolver struct {
	Local  Scope
	Global Scope
}

// NewResolver returns a resolver over the given scopes
func NewResolver(local, global Scope) Resolver {
	return Resolver{Local: local, Global: global}
}

// Resolve returns the value bound to ref, or "" when it cannot be resolved
func (r Resolver) Resolve(ref string) string {
	parsed, ok := ParseReference(ref)
	if !ok {
		return ""
	}
	var s Scope
	switch parsed.Scope {
	case Local:
		s = r.Local
	case Global:
		s = r.Global
	}
	if s == nil {
		return ""
	}
	v, ok := s.Lookup(parsed.Name)
	if !ok {
		return ""
	}
	return v
}
