package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/raniellyferreira/redistmpl/scope"
)

// tableScope looks names up in a Lua table
func tableScope(t *lua.LTable) scope.Scope {
	return scope.Func(func(name string) (string, bool) {
		return stringValue(t.RawGetString(name))
	})
}

// globalScope looks names up in the global table of L
func globalScope(L *lua.LState) scope.Scope {
	return scope.Func(func(name string) (string, bool) {
		return stringValue(L.GetGlobal(name))
	})
}

// callerLocals captures the local variables active in the Lua function that
// called the current Go function. Later declarations shadow earlier ones.
// Calls made through a Go function such as pcall see no locals.
func callerLocals(L *lua.LState) scope.Scope {
	dbg, ok := L.GetStack(1)
	if !ok {
		return scope.Empty
	}
	if _, err := L.GetInfo("S", dbg, lua.LNil); err != nil || dbg.What == "G" {
		return scope.Empty
	}

	locals := scope.Map{}
	for no := 1; ; no++ {
		name, value := L.GetLocal(dbg, no)
		if name == "" {
			break
		}
		// internal loop state such as "(for index)"
		if strings.HasPrefix(name, "(") {
			continue
		}
		if s, ok := stringValue(value); ok {
			locals[name] = s
		} else {
			delete(locals, name)
		}
	}
	return locals
}

// stringValue converts scalar Lua values to their string form
func stringValue(v lua.LValue) (string, bool) {
	switch v := v.(type) {
	case lua.LString:
		return string(v), true
	case lua.LNumber, lua.LBool:
		return v.String(), true
	default:
		return "", false
	}
}
