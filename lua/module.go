package lua

import (
	"context"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/raniellyferreira/redistmpl"
	"github.com/raniellyferreira/redistmpl/reply"
	"github.com/raniellyferreira/redistmpl/scope"
)

// Module exposes a session to Lua as a set of global functions.
//
// Functions return 1 on success and 0 on failure, with the failure available
// through redis_error(). redis_command returns a reply table instead of 1.
// Under the abort error policy a failure raises a Lua error instead.
type Module struct {
	session *redistmpl.Session
}

// NewModule creates a module bound to s
func NewModule(s *redistmpl.Session) *Module {
	return &Module{session: s}
}

// Register installs the module functions as globals of L
func (m *Module) Register(L *lua.LState) {
	for name, fn := range m.functions() {
		L.SetGlobal(name, L.NewFunction(fn))
	}
}

func (m *Module) functions() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"redis_connect":        m.connect,
		"redis_free":           m.free,
		"redis_command":        m.command,
		"redis_command_append": m.commandAppend,
		"redis_get_reply":      m.getReply,
		"redis_error":          m.lastError,
		"redis_error_clear":    m.clearError,
		"redis_get":            m.get,
		"redis_set":            m.set,
		"redis_setex":          m.setex,
		"redis_del":            m.del,
		"redis_append":         m.appendValue,
	}
}

// redis_connect(host, port)
func (m *Module) connect(L *lua.LState) int {
	host := L.CheckString(1)
	port := L.CheckInt(2)
	if err := m.session.Connect(luaContext(L), host, port); err != nil {
		return m.failed(L, err)
	}
	return ok(L)
}

// redis_free()
func (m *Module) free(L *lua.LState) int {
	m.session.Free()
	return ok(L)
}

// redis_command(command, vars [, locals])
func (m *Module) command(L *lua.LState) int {
	command, vars, r := m.templateArgs(L)
	n, err := m.session.Command(luaContext(L), command, vars, r)
	if err != nil {
		return m.failed(L, err)
	}
	L.Push(m.replyTable(L, n, nil))
	return 1
}

// redis_command_append(command, vars [, locals])
func (m *Module) commandAppend(L *lua.LState) int {
	command, vars, r := m.templateArgs(L)
	if err := m.session.Append(luaContext(L), command, vars, r); err != nil {
		return m.failed(L, err)
	}
	return ok(L)
}

// redis_get_reply([out]) returns the pipeline depth before the drain and the
// reply table. A depth of 0 means nothing was pending.
func (m *Module) getReply(L *lua.LState) int {
	out := L.OptTable(1, nil)
	n, depth, err := m.session.GetReply(luaContext(L))
	if err != nil {
		return m.failed(L, err)
	}
	L.Push(lua.LNumber(depth))
	if depth == 0 {
		L.Push(lua.LNil)
		return 2
	}
	L.Push(m.replyTable(L, n, out))
	return 2
}

// redis_error() returns the last error code and message
func (m *Module) lastError(L *lua.LState) int {
	state := m.session.LastError()
	L.Push(lua.LNumber(state.Code))
	L.Push(lua.LString(state.Message))
	return 2
}

// redis_error_clear()
func (m *Module) clearError(L *lua.LState) int {
	m.session.ClearError()
	return ok(L)
}

// redis_get(key) returns 1 and the value, -1 when the key does not exist
func (m *Module) get(L *lua.LState) int {
	value, found, err := m.session.Get(luaContext(L), L.CheckString(1))
	if err != nil {
		return m.failed(L, err)
	}
	if !found {
		L.Push(lua.LNumber(-1))
		return 1
	}
	L.Push(lua.LNumber(1))
	L.Push(lua.LString(value))
	return 2
}

// redis_set(key, value)
func (m *Module) set(L *lua.LState) int {
	if err := m.session.Set(luaContext(L), L.CheckString(1), L.CheckString(2)); err != nil {
		return m.failed(L, err)
	}
	return ok(L)
}

// redis_setex(key, value, seconds)
func (m *Module) setex(L *lua.LState) int {
	ttl := time.Duration(L.CheckInt64(3)) * time.Second
	if err := m.session.SetEx(luaContext(L), L.CheckString(1), L.CheckString(2), ttl); err != nil {
		return m.failed(L, err)
	}
	return ok(L)
}

// redis_del(key)
func (m *Module) del(L *lua.LState) int {
	if _, err := m.session.Del(luaContext(L), L.CheckString(1)); err != nil {
		return m.failed(L, err)
	}
	return ok(L)
}

// redis_append(key, value)
func (m *Module) appendValue(L *lua.LState) int {
	if _, err := m.session.AppendValue(luaContext(L), L.CheckString(1), L.CheckString(2)); err != nil {
		return m.failed(L, err)
	}
	return ok(L)
}

// templateArgs reads command, vars and the optional locals table, and builds
// the resolver. Without a locals table the caller's local variables are used.
func (m *Module) templateArgs(L *lua.LState) (string, string, scope.Resolver) {
	command := L.CheckString(1)
	vars := L.OptString(2, "")

	var local scope.Scope
	if t, isTable := L.Get(3).(*lua.LTable); isTable {
		local = tableScope(t)
	} else {
		local = callerLocals(L)
	}
	return command, vars, scope.NewResolver(local, globalScope(L))
}

func (m *Module) replyTable(L *lua.LState, n reply.Node, out *lua.LTable) *lua.LTable {
	if out == nil {
		out = L.NewTable()
	}
	m.session.Marshal(n, newTableTarget(L, out))
	return out
}

// failed reports err to the script: 0 under the recover policy, a Lua error under abort
func (m *Module) failed(L *lua.LState, err error) int {
	if m.session.Policy().ShouldAbort(err) {
		L.RaiseError("redis error %d: %s", int(redistmpl.CodeOf(err)), err.Error())
		return 0
	}
	L.Push(lua.LNumber(0))
	return 1
}

func ok(L *lua.LState) int {
	L.Push(lua.LNumber(1))
	return 1
}

func luaContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
