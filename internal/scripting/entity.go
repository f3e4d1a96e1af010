package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

// scriptEntity is the Go side of the entity handle passed to templates.
type scriptEntity struct {
	world  *ecs.World
	entity *ecs.Entity
}

func (e *Engine) registerEntityType() {
	mt := e.vm.NewTypeMetatable(entityTypeName)
	e.vm.SetField(mt, "__index", e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"add":    entityAdd,
		"remove": entityRemove,
		"has":    entityHas,
		"flags":  entityFlags,
		"name":   entityName,
		"id":     entityID,
	}))
}

func checkEntity(L *lua.LState) *scriptEntity {
	ud := L.CheckUserData(1)
	if se, ok := ud.Value.(*scriptEntity); ok {
		return se
	}
	L.ArgError(1, "entity expected")
	return nil
}

// e:add(kind [, fields])
func entityAdd(L *lua.LState) int {
	se := checkEntity(L)
	kind := L.CheckString(2)
	var fields map[string]any
	if t, ok := L.Get(3).(*lua.LTable); ok {
		fields = tableToMap(t)
	}
	if err := se.world.AddNamed(se.entity, kind, fields); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// e:remove(kind) -> bool
func entityRemove(L *lua.LState) int {
	se := checkEntity(L)
	L.Push(lua.LBool(se.world.RemoveNamed(se.entity, L.CheckString(2))))
	return 1
}

func entityHas(L *lua.LState) int {
	se := checkEntity(L)
	L.Push(lua.LBool(se.world.HasNamed(se.entity, L.CheckString(2))))
	return 1
}

// e:flags([mask]) -> mask
func entityFlags(L *lua.LState) int {
	se := checkEntity(L)
	if L.GetTop() >= 2 {
		se.entity.SetFlags(ecs.SystemFlags(L.CheckInt64(2)))
	}
	L.Push(lua.LNumber(se.entity.Flags()))
	return 1
}

// e:name([name]) -> name
func entityName(L *lua.LState) int {
	se := checkEntity(L)
	if L.GetTop() >= 2 {
		se.entity.SetName(L.CheckString(2))
	}
	L.Push(lua.LString(se.entity.Name()))
	return 1
}

func entityID(L *lua.LState) int {
	se := checkEntity(L)
	L.Push(lua.LNumber(se.entity.ID()))
	return 1
}

// tableToMap converts a Lua table with string keys into decodeable fields.
// Numbers stay float64; nested tables become maps or, when they have an
// array part, slices.
func tableToMap(t *lua.LTable) map[string]any {
	out := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			out[string(ks)] = toGo(v)
		}
	})
	return out
}

func toGo(v lua.LValue) any {
	switch v := v.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if n := v.MaxN(); n > 0 {
			list := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				list = append(list, toGo(v.RawGetInt(i)))
			}
			return list
		}
		return tableToMap(v)
	default:
		return nil
	}
}
