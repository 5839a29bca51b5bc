package hostfunc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/wippyai/wasm-runtime/wat"
	"go.uber.org/zap/zapcore"

	"github.com/caffeineduck/modhost/bridge"
	"github.com/caffeineduck/modhost/errors"
	"github.com/caffeineduck/modhost/handle"
)

const callerWAT = `(module
  (import "mvp:game/api" "commands.spawn-stuff" (func $spawn (param i32) (result i32)))
  (import "mvp:game/api" "commands.drop" (func $drop (param i32)))
  (import "mvp:game/api" "log" (func $log (param i32 i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 16) "hello host")
  (func (export "spawn") (param i32) (result i32)
    (call $spawn (local.get 0)))
  (func (export "drop") (param i32)
    (call $drop (local.get 0)))
  (func (export "log") (param i32)
    (call $log (local.get 0) (i32.const 16) (i32.const 10)))
  (func (export "log_oob")
    (call $log (i32.const 1) (i32.const 65530) (i32.const 100))))`

type logLine struct {
	level zapcore.Level
	msg   string
}

type fakeCaps struct {
	spawnErr error
	spawned  []handle.Handle
	dropped  []handle.Handle
	logs     []logLine
}

func (f *fakeCaps) SpawnDefault(h handle.Handle) error {
	if f.spawnErr != nil {
		return f.spawnErr
	}
	f.spawned = append(f.spawned, h)
	return nil
}

func (f *fakeCaps) Drop(h handle.Handle) error {
	f.dropped = append(f.dropped, h)
	return nil
}

func (f *fakeCaps) Log(level zapcore.Level, msg string) {
	f.logs = append(f.logs, logLine{level: level, msg: msg})
}

func instantiateCaller(t *testing.T) api.Module {
	t.Helper()
	ctx := context.Background()

	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	require.NoError(t, NewRegistry().Instantiate(ctx, rt))

	bin, err := wat.Compile(callerWAT)
	require.NoError(t, err)

	mod, err := rt.Instantiate(ctx, bin)
	require.NoError(t, err)
	return mod
}

func callU32(t *testing.T, mod api.Module, ctx context.Context, name string, arg uint32) []uint64 {
	t.Helper()
	res, err := mod.ExportedFunction(name).Call(ctx, api.EncodeU32(arg))
	require.NoError(t, err)
	return res
}

// === Registry ===

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{FuncDrop, FuncSpawnStuff, FuncLog}, r.Names())
	assert.True(t, r.Has(FuncSpawnStuff))
	assert.False(t, r.Has("commands.despawn"))

	def, ok := r.Definition(FuncSpawnStuff)
	require.True(t, ok)
	assert.Equal(t, []api.ValueType{api.ValueTypeI32}, def.Params)
	assert.Equal(t, []api.ValueType{api.ValueTypeI32}, def.Results)
}

func TestRegistryMissing(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	bin, err := wat.Compile(`(module
  (import "mvp:game/api" "commands.spawn-stuff" (func (param i32) (result i32)))
  (import "mvp:game/api" "commands.despawn" (func (param i32)))
  (import "env" "other" (func)))`)
	require.NoError(t, err)

	compiled, err := rt.CompileModule(ctx, bin)
	require.NoError(t, err)

	missing := NewRegistry().Missing(compiled.ImportedFunctions())
	assert.Equal(t, []errors.MissingImport{
		{Module: Namespace, Function: "commands.despawn"},
	}, missing)
}

// === Host calls ===

func TestSpawnStuffOutsideInvocation(t *testing.T) {
	mod := instantiateCaller(t)

	res := callU32(t, mod, context.Background(), "spawn", 1)
	assert.Equal(t, uint32(StatusNoActiveWindow), api.DecodeU32(res[0]))
}

func TestSpawnStuffThroughCapabilities(t *testing.T) {
	mod := instantiateCaller(t)
	caps := &fakeCaps{}
	ctx := WithCapabilities(context.Background(), caps)

	for _, h := range []uint32{3, 4, 5} {
		res := callU32(t, mod, ctx, "spawn", h)
		assert.Equal(t, uint32(StatusOK), api.DecodeU32(res[0]))
	}
	assert.Equal(t, []handle.Handle{3, 4, 5}, caps.spawned)
}

func TestSpawnStuffStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"unknown handle", errors.UnknownHandle(9), StatusUnknownHandle},
		{"no window", bridge.ErrNoActiveWindow, StatusNoActiveWindow},
		{"stale lease", bridge.ErrStaleLease, StatusNoActiveWindow},
		{"invalid", errors.InvalidInput(errors.PhaseHost, "bad"), StatusInvalidArgument},
		{"internal", errors.Closed(errors.PhaseHandle, "table"), StatusInternal},
	}

	mod := instantiateCaller(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithCapabilities(context.Background(), &fakeCaps{spawnErr: tt.err})
			res := callU32(t, mod, ctx, "spawn", 9)
			assert.Equal(t, uint32(tt.want), api.DecodeU32(res[0]))
		})
	}
}

func TestDropThroughCapabilities(t *testing.T) {
	mod := instantiateCaller(t)
	caps := &fakeCaps{}
	ctx := WithCapabilities(context.Background(), caps)

	callU32(t, mod, ctx, "drop", 7)
	assert.Equal(t, []handle.Handle{7}, caps.dropped)

	callU32(t, mod, context.Background(), "drop", 8)
	assert.Equal(t, []handle.Handle{7}, caps.dropped, "drop outside invocation is ignored")
}

func TestLogThroughCapabilities(t *testing.T) {
	mod := instantiateCaller(t)
	caps := &fakeCaps{}
	ctx := WithCapabilities(context.Background(), caps)

	callU32(t, mod, ctx, "log", uint32(LevelWarn))
	require.Len(t, caps.logs, 1)
	assert.Equal(t, logLine{level: zapcore.WarnLevel, msg: "hello host"}, caps.logs[0])
}

func TestLogOutOfBoundsIsIgnored(t *testing.T) {
	mod := instantiateCaller(t)
	caps := &fakeCaps{}
	ctx := WithCapabilities(context.Background(), caps)

	_, err := mod.ExportedFunction("log_oob").Call(ctx)
	require.NoError(t, err, "bad pointers must not trap the guest")
	assert.Empty(t, caps.logs)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusOK, StatusOf(nil))
	assert.Equal(t, StatusUnknownHandle, StatusOf(handle.ErrUnknownHandle))
	assert.Equal(t, "no active window", StatusNoActiveWindow.String())
}

func TestGuestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, guestLevel(LevelDebug))
	assert.Equal(t, zapcore.InfoLevel, guestLevel(LevelInfo))
	assert.Equal(t, zapcore.WarnLevel, guestLevel(LevelWarn))
	assert.Equal(t, zapcore.ErrorLevel, guestLevel(LevelError))
	assert.Equal(t, zapcore.InfoLevel, guestLevel(99))
}
