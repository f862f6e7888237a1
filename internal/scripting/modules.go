package scripting

import lua "github.com/yuin/gopher-lua"

// mathFunctions are the math library members exposed as bare globals.
var mathFunctions = []string{"sqrt", "abs", "floor", "ceil", "sin", "cos", "tan", "log", "exp", "max", "min", "pi"}

// RegisterMath copies the allowed math members into globals so expressions
// can write sqrt(2) instead of math.sqrt(2), then removes the math table.
//
// Precondition: L must be from NewSandboxedState.
func RegisterMath(L *lua.LState) {
	mathTable, ok := L.GetGlobal("math").(*lua.LTable)
	if !ok {
		return
	}
	for _, name := range mathFunctions {
		L.SetGlobal(name, mathTable.RawGetString(name))
	}
	L.SetGlobal("math", lua.LNil)
}
