package scripting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/parley/internal/scripting"
)

func newState(t *testing.T, limit int) *lua.LState {
	L, cancel := scripting.NewSandboxedState(context.Background(), limit)
	require.NotNil(t, L)
	t.Cleanup(func() {
		cancel()
		L.Close()
	})
	return L
}

func TestNewSandboxedState_UnsafeLibsNil(t *testing.T) {
	L := newState(t, 0)
	for _, name := range []string{"os", "io", "debug", "string", "table"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_DangerousGlobalsNil(t *testing.T) {
	L := newState(t, 0)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_MathAvailable(t *testing.T) {
	L := newState(t, 0)
	assert.NoError(t, L.DoString(`assert(math.sqrt(4) == 2.0, "math.sqrt failed")`))
}

func TestNewSandboxedState_InstructionLimitExceeded(t *testing.T) {
	L := newState(t, 10)
	assert.Error(t, L.DoString(`while true do end`))
}

func TestNewSandboxedState_ParentCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	L, stop := scripting.NewSandboxedState(ctx, 1_000_000)
	defer stop()
	defer L.Close()
	assert.Error(t, L.DoString(`while true do end`))
}

func TestRegisterMath(t *testing.T) {
	L := newState(t, 0)
	scripting.RegisterMath(L)
	assert.Equal(t, lua.LNil, L.GetGlobal("math"))
	assert.NoError(t, L.DoString(`assert(sqrt(9) == 3 and abs(-2) == 2)`))
}

func TestProperty_InstructionLimitAlwaysErrors(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 50).Draw(t, "limit")
		L, cancel := scripting.NewSandboxedState(context.Background(), limit)
		defer cancel()
		defer L.Close()
		if err := L.DoString(`while true do end`); err == nil {
			t.Fatalf("expected error with limit=%d but got nil", limit)
		}
	})
}
