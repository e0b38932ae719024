package lua

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/raniellyferreira/redistmpl/reply"
)

// Reply table fields
const (
	fieldType    = "type"
	fieldString  = "string"
	fieldLength  = "length"
	fieldInteger = "integer"
)

// tableTarget writes a reply into a Lua table: kind under "type", text under
// "string" and "length", numbers under "integer" and array children at 1..n.
type tableTarget struct {
	L     *lua.LState
	table *lua.LTable
}

func newTableTarget(L *lua.LState, t *lua.LTable) *tableTarget {
	return &tableTarget{L: L, table: t}
}

func (t *tableTarget) SetKind(k reply.Kind) {
	t.table.RawSetString(fieldType, lua.LNumber(k))
}

func (t *tableTarget) SetText(b []byte) {
	t.table.RawSetString(fieldString, lua.LString(b))
	t.table.RawSetString(fieldLength, lua.LNumber(len(b)))
}

func (t *tableTarget) SetInteger(n int64) {
	t.table.RawSetString(fieldInteger, lua.LNumber(n))
}

func (t *tableTarget) Element(i int) reply.Target {
	child, ok := t.table.RawGetInt(i + 1).(*lua.LTable)
	if !ok {
		child = t.L.NewTable()
		t.table.RawSetInt(i+1, child)
	}
	return newTableTarget(t.L, child)
}
