package lua

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/raniellyferreira/redistmpl"
)

// Engine runs Lua scripts with the session functions registered
type Engine struct {
	module  *Module
	scripts sync.Map // map[string]string - SHA1 -> script content
}

// NewEngine creates a new Lua execution engine bound to s
func NewEngine(s *redistmpl.Session) *Engine {
	return &Engine{
		module: NewModule(s),
	}
}

// Eval executes a Lua script. args are exposed to the script as the ARGV table.
// The value the script returns is converted to Go.
func (e *Engine) Eval(ctx context.Context, script string, args ...string) (interface{}, error) {
	L := e.newState(ctx, args)
	defer L.Close()

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("script execution error: %w", err)
	}

	return convertLuaValue(L.Get(-1)), nil
}

// EvalFile executes the Lua script at path
func (e *Engine) EvalFile(ctx context.Context, path string, args ...string) (interface{}, error) {
	L := e.newState(ctx, args)
	defer L.Close()

	if err := L.DoFile(path); err != nil {
		return nil, fmt.Errorf("script execution error: %w", err)
	}

	return convertLuaValue(L.Get(-1)), nil
}

// EvalSHA executes a previously loaded script by its SHA1 hash
func (e *Engine) EvalSHA(ctx context.Context, sha1 string, args ...string) (interface{}, error) {
	script, exists := e.scripts.Load(sha1)
	if !exists {
		return nil, fmt.Errorf("no script loaded with hash %s", sha1)
	}

	return e.Eval(ctx, script.(string), args...)
}

// LoadScript loads a script and returns its SHA1 hash
func (e *Engine) LoadScript(script string) string {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))
	e.scripts.Store(hash, script)
	return hash
}

func (e *Engine) newState(ctx context.Context, args []string) *lua.LState {
	L := lua.NewState()
	if ctx != nil {
		L.SetContext(ctx)
	}

	argv := L.NewTable()
	for i, arg := range args {
		argv.RawSetInt(i+1, lua.LString(arg)) // Lua arrays are 1-indexed
	}
	L.SetGlobal("ARGV", argv)

	e.module.Register(L)
	return L
}

// convertLuaValue converts a Lua value to a Go value
func convertLuaValue(lv lua.LValue) interface{} {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		if isArrayLikeTable(v) {
			result := make([]interface{}, 0, v.Len())
			for i := 1; i <= v.Len(); i++ {
				result = append(result, convertLuaValue(v.RawGetInt(i)))
			}
			return result
		}
		result := make(map[string]interface{})
		v.ForEach(func(k, val lua.LValue) {
			result[k.String()] = convertLuaValue(val)
		})
		return result
	default:
		return lv.String()
	}
}

// isArrayLikeTable checks if a Lua table is array-like (consecutive integer keys starting from 1)
func isArrayLikeTable(table *lua.LTable) bool {
	length := table.Len()
	arrayLike := true
	table.ForEach(func(k, v lua.LValue) {
		num, ok := k.(lua.LNumber)
		if !ok {
			arrayLike = false
			return
		}
		idx := int(num)
		if float64(idx) != float64(num) || idx < 1 || idx > length {
			arrayLike = false
		}
	})
	return arrayLike
}
