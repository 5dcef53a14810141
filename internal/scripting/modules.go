package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerModules installs the engine.* table into L. Everything a script
// can observe or mutate lives here.
//
//	engine.log.debug|info|warn|error(msg)
//	engine.roll(spec)                         -> {total, dice, modifier} | nil, err
//	engine.world.actor(uid)                   -> actor table | nil
//	engine.world.damage(uid, amount)          -> dealt, died
//	engine.world.heal(uid, amount)            -> healed
//	engine.world.apply_status(uid, id, stacks, seconds) -> applied
//	engine.world.remove_status(uid, id)       -> removed
//	engine.world.broadcast(uid, msg)
//	engine.mana.give(uid, amount)             -> granted
func (e *Engine) registerModules(L *lua.LState) {
	root := L.NewTable()
	L.SetField(root, "log", e.logModule(L))
	L.SetField(root, "roll", L.NewFunction(e.luaRoll))
	L.SetField(root, "world", e.worldModule(L))
	L.SetField(root, "mana", e.manaModule(L))
	L.SetGlobal("engine", root)
}

func (e *Engine) logModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	for name, sink := range map[string]func(string, ...zap.Field){
		"debug": e.log.Debug,
		"info":  e.log.Info,
		"warn":  e.log.Warn,
		"error": e.log.Error,
	} {
		emit := sink
		L.SetField(mod, name, L.NewFunction(func(l *lua.LState) int {
			emit(l.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

func (e *Engine) luaRoll(l *lua.LState) int {
	spec := l.CheckString(1)
	res, err := e.roller.RollExpr(spec)
	if err != nil {
		l.Push(lua.LNil)
		l.Push(lua.LString(err.Error()))
		return 2
	}
	tbl := l.NewTable()
	l.SetField(tbl, "total", lua.LNumber(res.Total()))
	l.SetField(tbl, "dice", lua.LNumber(res.Total()-res.Modifier))
	l.SetField(tbl, "modifier", lua.LNumber(res.Modifier))
	l.Push(tbl)
	return 1
}

func (e *Engine) worldModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()

	L.SetField(mod, "actor", L.NewFunction(func(l *lua.LState) int {
		uid := l.CheckString(1)
		if e.GetActor == nil {
			l.Push(lua.LNil)
			return 1
		}
		info := e.GetActor(uid)
		if info == nil {
			l.Push(lua.LNil)
			return 1
		}
		l.Push(actorToTable(l, info))
		return 1
	}))

	L.SetField(mod, "damage", L.NewFunction(func(l *lua.LState) int {
		uid := l.CheckString(1)
		amount := float64(l.CheckNumber(2))
		if e.Damage == nil {
			l.Push(lua.LNumber(0))
			l.Push(lua.LFalse)
			return 2
		}
		dealt, died := e.Damage(uid, amount)
		l.Push(lua.LNumber(dealt))
		l.Push(lua.LBool(died))
		return 2
	}))

	L.SetField(mod, "heal", L.NewFunction(func(l *lua.LState) int {
		uid := l.CheckString(1)
		amount := float64(l.CheckNumber(2))
		if e.Heal == nil {
			l.Push(lua.LNumber(0))
			return 1
		}
		l.Push(lua.LNumber(e.Heal(uid, amount)))
		return 1
	}))

	L.SetField(mod, "apply_status", L.NewFunction(func(l *lua.LState) int {
		uid := l.CheckString(1)
		statusID := l.CheckString(2)
		stacks := l.CheckInt(3)
		seconds := float64(l.CheckNumber(4))
		if e.ApplyStatus == nil {
			l.Push(lua.LFalse)
			return 1
		}
		l.Push(lua.LBool(e.ApplyStatus(uid, statusID, stacks, seconds)))
		return 1
	}))

	L.SetField(mod, "remove_status", L.NewFunction(func(l *lua.LState) int {
		uid := l.CheckString(1)
		statusID := l.CheckString(2)
		if e.RemoveStatus == nil {
			l.Push(lua.LFalse)
			return 1
		}
		l.Push(lua.LBool(e.RemoveStatus(uid, statusID)))
		return 1
	}))

	L.SetField(mod, "broadcast", L.NewFunction(func(l *lua.LState) int {
		uid := l.CheckString(1)
		msg := l.CheckString(2)
		if e.Broadcast != nil {
			e.Broadcast(uid, msg)
		}
		return 0
	}))

	return mod
}

func (e *Engine) manaModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "give", L.NewFunction(func(l *lua.LState) int {
		uid := l.CheckString(1)
		amount := float64(l.CheckNumber(2))
		if e.GiveMana == nil {
			l.Push(lua.LNumber(0))
			return 1
		}
		l.Push(lua.LNumber(e.GiveMana(uid, amount)))
		return 1
	}))
	return mod
}

func actorToTable(l *lua.LState, info *ActorInfo) *lua.LTable {
	tbl := l.NewTable()
	l.SetField(tbl, "uid", lua.LString(info.UID))
	l.SetField(tbl, "name", lua.LString(info.Name))
	l.SetField(tbl, "team", lua.LString(info.Team))
	l.SetField(tbl, "x", lua.LNumber(info.X))
	l.SetField(tbl, "y", lua.LNumber(info.Y))
	l.SetField(tbl, "health", lua.LNumber(info.Health))
	l.SetField(tbl, "max_health", lua.LNumber(info.MaxHealth))
	l.SetField(tbl, "alive", lua.LBool(info.Alive))
	statuses := l.NewTable()
	for i, s := range info.Statuses {
		statuses.RawSetInt(i+1, lua.LString(s))
	}
	l.SetField(tbl, "statuses", statuses)
	return tbl
}
