package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for round rules: drop rolls and wave
// scaling. Single-goroutine access only (the frame loop's drain callbacks).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	// Core helpers first, then rule scripts that may use them.
	for _, sub := range []string{"core", "rules"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// Close releases the VM. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil || e.vm == nil {
		return
	}
	e.vm.Close()
	e.vm = nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DropContext is handed to on_hostile_death for every hostile death.
type DropContext struct {
	Group string
	X, Y  float32
	Z     float32
	Round int
	Kills int     // kills so far this round, this one included
	Roll  float64 // uniform in [0,1), drawn by the caller
}

// DropResult says whether a pickup is spawned at the death position.
type DropResult struct {
	Drop  bool
	Value float32
}

var noDrop = DropResult{}

// RollDrop calls the Lua on_hostile_death function. A missing function or a
// Lua error means no drop.
func (e *Engine) RollDrop(ctx DropContext) DropResult {
	fn := e.vm.GetGlobal("on_hostile_death")
	if fn == lua.LNil {
		return noDrop
	}

	t := e.vm.NewTable()
	t.RawSetString("group", lua.LString(ctx.Group))
	t.RawSetString("x", lua.LNumber(ctx.X))
	t.RawSetString("y", lua.LNumber(ctx.Y))
	t.RawSetString("z", lua.LNumber(ctx.Z))
	t.RawSetString("round", lua.LNumber(ctx.Round))
	t.RawSetString("kills", lua.LNumber(ctx.Kills))
	t.RawSetString("roll", lua.LNumber(ctx.Roll))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua on_hostile_death error", zap.Error(err))
		return noDrop
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return noDrop
	}
	return DropResult{
		Drop:  lua.LVAsBool(rt.RawGetString("drop")),
		Value: float32(lua.LVAsNumber(rt.RawGetString("value"))),
	}
}

// WaveScale calls the Lua wave_scale function for the health multiplier of
// hostiles in the given round. Falls back to 1.
func (e *Engine) WaveScale(round int) float64 {
	fn := e.vm.GetGlobal("wave_scale")
	if fn == lua.LNil {
		return 1
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(round)); err != nil {
		e.log.Error("lua wave_scale error", zap.Error(err))
		return 1
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok || n <= 0 {
		e.log.Warn("lua wave_scale returned an unusable value", zap.String("value", ret.String()))
		return 1
	}
	return float64(n)
}
