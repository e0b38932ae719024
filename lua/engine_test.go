package lua

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/raniellyferreira/redistmpl"
	"github.com/raniellyferreira/redistmpl/internal/redistest"
	"github.com/raniellyferreira/redistmpl/reply"
)

func quietLogger() redistmpl.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return redistmpl.NewLogrusLogger(l)
}

// newEngine returns an engine whose session talks to a fresh test server.
// Scripts connect with redis_connect(ARGV[1], tonumber(ARGV[2])).
func newEngine(t *testing.T, opts ...redistmpl.Option) (*Engine, *redistest.Server, []string) {
	t.Helper()
	srv := redistest.Start(t)
	opts = append([]redistmpl.Option{redistmpl.WithLogger(quietLogger())}, opts...)
	s, err := redistmpl.New(opts...)
	require.NoError(t, err)
	t.Cleanup(s.Free)

	host, port := srv.HostPort()
	return NewEngine(s), srv, []string{host, fmt.Sprint(port)}
}

const connect = "assert(redis_connect(ARGV[1], tonumber(ARGV[2])) == 1)\n"

func TestLuaEngine_BasicExecution(t *testing.T) {
	engine, _, _ := newEngine(t)

	tests := []struct {
		name     string
		script   string
		args     []string
		expected interface{}
	}{
		{name: "simple return", script: "return 'hello'", expected: "hello"},
		{name: "return number", script: "return 42", expected: int64(42)},
		{name: "access ARGV", script: "return ARGV[1]", args: []string{"myarg"}, expected: "myarg"},
		{name: "nothing returned", script: "local x = 1", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(context.Background(), tt.script, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLuaEngine_CommandScopes(t *testing.T) {
	engine, srv, args := newEngine(t)

	tests := []struct {
		name   string
		script string
		key    string
		value  string
	}{
		{
			name: "caller locals and globals",
			script: `
value = "b"
local key = "a"
local r = redis_command("SET ? ?", "l.key,g.value")
return {r.type, r.string}`,
			key:   "a",
			value: "b",
		},
		{
			name: "explicit locals table",
			script: `
value = "from-global"
local r = redis_command("SET ? ?", "l.k,g.value", {k = "t"})
return {r.type, r.string}`,
			key:   "t",
			value: "from-global",
		},
		{
			name: "locals of the calling function",
			script: `
value = "outer"
local key = "shadowed"
local function store()
  local key = "inner"
  local r = redis_command("SET ? ?", "l.key,g.value")
  return {r.type, r.string}
end
return store()`,
			key:   "inner",
			value: "outer",
		},
		{
			name: "numbers are converted",
			script: `
local key = "n"
local value = 42
local r = redis_command("SET ? ?", "l.key,l.value")
return {r.type, r.string}`,
			key:   "n",
			value: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(context.Background(), connect+tt.script+"\n", args...)
			require.NoError(t, err)
			assert.Equal(t, []interface{}{int64(reply.KindStatus), "OK"}, result)

			v, ok := srv.Value(0, tt.key)
			assert.True(t, ok)
			assert.Equal(t, tt.value, v)

			_, err = engine.Eval(context.Background(), "redis_free()")
			require.NoError(t, err)
		})
	}
}

func TestLuaEngine_RecoverPolicy(t *testing.T) {
	engine, _, args := newEngine(t)

	result, err := engine.Eval(context.Background(), `
local r = redis_command("PING", "")
local code, msg = redis_error()
return {r, code, msg}`, args...)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(0), int64(redistmpl.CodeNotConnected), "not connected, call Connect first"}, result)

	result, err = engine.Eval(context.Background(), connect+`
local r = redis_command("GET ?", "")
local code, msg = redis_error()
redis_error_clear()
local cleared = redis_error()
return {r, code, cleared}`, args...)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(0), int64(redistmpl.CodeMalformedCommand), int64(0)}, result)
}

func TestLuaEngine_AbortPolicy(t *testing.T) {
	engine, _, args := newEngine(t, redistmpl.WithErrorPolicy(redistmpl.PolicyAbort))

	_, err := engine.Eval(context.Background(), connect+`
redis_command("NOPE", "")
return "unreachable"`, args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis error 5")
	assert.Contains(t, err.Error(), "unknown command")
}

func TestLuaEngine_AbortPolicyIgnoresMissingResource(t *testing.T) {
	engine, _, _ := newEngine(t,
		redistmpl.WithErrorPolicy(redistmpl.PolicyAbort),
		redistmpl.WithResource(t.TempDir()+"/missing"),
	)

	result, err := engine.Eval(context.Background(), `
local r = redis_command("PING", "")
local code = redis_error()
return {r, code}`)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(0), int64(redistmpl.CodeConfigNotFound)}, result)
}

func TestLuaEngine_Pipeline(t *testing.T) {
	engine, _, args := newEngine(t)

	result, err := engine.Eval(context.Background(), connect+`
local key = "counter"
for i = 1, 3 do
  assert(redis_command_append("INCR ?", "l.key") == 1)
end
local depths = {}
local values = {}
local out = {}
while true do
  local depth, r = redis_get_reply(out)
  if depth == 0 then break end
  table.insert(depths, depth)
  table.insert(values, r.integer)
  assert(r == out)
end
return {depths[1], depths[2], depths[3], values[3], #depths}`, args...)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(3), int64(2), int64(1), int64(3), int64(3)}, result)
}

func TestLuaEngine_NestedReply(t *testing.T) {
	engine, srv, args := newEngine(t)
	srv.Handle("NESTED", func([][]byte) reply.Node {
		return reply.Array(reply.Integer(1), reply.Array(reply.BulkString("x"), reply.Nil()))
	})

	result, err := engine.Eval(context.Background(), connect+`
local r = redis_command("NESTED", "")
return {r.type, #r, r[1].integer, r[1].string, #r[2], r[2][1].string, r[2][1].length, r[2][2].type}`, args...)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		int64(reply.KindArray), int64(2), int64(1), "1", int64(2), "x", int64(1), int64(reply.KindNil),
	}, result)
}

func TestLuaEngine_ConvenienceFunctions(t *testing.T) {
	engine, srv, args := newEngine(t)

	result, err := engine.Eval(context.Background(), connect+`
local missing = redis_get("k")
assert(redis_set("k", "hello") == 1)
assert(redis_append("k", " world") == 1)
local found, value = redis_get("k")
assert(redis_setex("tmp", "v", 60) == 1)
assert(redis_del("k") == 1)
local gone = redis_get("k")
return {missing, found, value, gone}`, args...)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(-1), int64(1), "hello world", int64(-1)}, result)

	_, ok := srv.Value(0, "tmp")
	assert.True(t, ok)
}

func TestLuaEngine_ScriptCaching(t *testing.T) {
	engine, _, _ := newEngine(t)

	sha := engine.LoadScript("return ARGV[1] .. '!'")
	assert.Len(t, sha, 40)

	result, err := engine.EvalSHA(context.Background(), sha, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi!", result)

	_, err = engine.EvalSHA(context.Background(), "nope")
	assert.Error(t, err)
}

func TestLuaEngine_EvalFile(t *testing.T) {
	engine, _, _ := newEngine(t)

	path := t.TempDir() + "/script.lua"
	require.NoError(t, writeFile(path, "return #ARGV"))

	result, err := engine.EvalFile(context.Background(), path, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result)

	_, err = engine.EvalFile(context.Background(), path+".missing")
	assert.Error(t, err)
}

func TestLuaEngine_DataTypeConversion(t *testing.T) {
	engine, _, _ := newEngine(t)

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{name: "boolean", script: "return true", expected: true},
		{name: "float", script: "return 1.5", expected: 1.5},
		{name: "nil", script: "return nil", expected: nil},
		{name: "array", script: "return {1, 'two'}", expected: []interface{}{int64(1), "two"}},
		{name: "empty table", script: "return {}", expected: []interface{}{}},
		{name: "map", script: "return {a = 1}", expected: map[string]interface{}{"a": int64(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(context.Background(), tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLuaEngine_ErrorHandling(t *testing.T) {
	engine, _, _ := newEngine(t)

	_, err := engine.Eval(context.Background(), "this is not lua")
	assert.Error(t, err)

	_, err = engine.Eval(context.Background(), "error('boom')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCallerLocalsOutsideLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	_, found := callerLocals(L).Lookup("anything")
	assert.False(t, found)
}
