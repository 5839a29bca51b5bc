package executor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeineduck/modhost/capability"
	"github.com/caffeineduck/modhost/errors"
	"github.com/caffeineduck/modhost/executor"
	"github.com/caffeineduck/modhost/hostfunc"
)

const greeter = `(module
  (import "mvp:game/api" "commands.spawn-stuff" (func $spawn (param i32) (result i32)))
  (import "wasi_snapshot_preview1" "fd_write" (func (param i32 i32 i32 i32) (result i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "hi")
  (func (export "_initialize"))
  (func (export "run") (param i32) (result i64)
    (drop (call $spawn (local.get 0)))
    (i64.const 2)))`

func TestMain(m *testing.M) {
	code := m.Run()
	executor.CloseTestExecutor()
	os.Exit(code)
}

// =============================================================================
// EXECUTOR
// =============================================================================

func TestNewAndClose(t *testing.T) {
	exec, err := executor.New(nil)
	require.NoError(t, err)
	assert.Equal(t, hostfunc.NewRegistry().Names(), exec.Registry().Names())

	require.NoError(t, exec.Close())
	require.NoError(t, exec.Close(), "second close is a no-op")

	_, err = exec.Compile(context.Background(), executor.WATSource("late", greeter))
	assert.True(t, errors.IsKind(err, errors.KindClosed))
}

func TestCompileCachesByContent(t *testing.T) {
	exec, err := executor.GetTestExecutor()
	require.NoError(t, err)

	ctx := context.Background()
	a, err := exec.Compile(ctx, executor.WATSource("a", greeter))
	require.NoError(t, err)
	b, err := exec.Compile(ctx, executor.WATSource("b", greeter))
	require.NoError(t, err)
	assert.Same(t, a, b, "identical binaries share one compiled module")

	c, err := exec.Compile(ctx, executor.WATSource("c", `(module (func (export "run")))`))
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	exec, err := executor.New(nil,
		executor.WithDiskCache(dir),
		executor.WithPrecompile(executor.WATSource("greeter", greeter)))
	require.NoError(t, err)
	defer exec.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = exec.Compile(context.Background(), executor.WATSource("greeter", greeter))
	assert.NoError(t, err)
}

func TestPrecompileFailure(t *testing.T) {
	_, err := executor.New(nil, executor.WithPrecompile(executor.BytesSource("junk", []byte("junk"))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precompile junk")
}

func TestMemoryLimit(t *testing.T) {
	exec, err := executor.New(nil, executor.WithMemoryLimit(executor.MemoryLimit1MB))
	require.NoError(t, err)
	defer exec.Close()

	h := executor.NewHost(exec)
	defer h.Close(context.Background())

	_, err = h.Load(context.Background(), "hungry", executor.WATSource("hungry",
		`(module (memory (export "memory") 32) (func (export "run")))`))
	require.Error(t, err, "32 pages exceed a 16 page limit")

	_, err = h.Load(context.Background(), "modest", executor.WATSource("modest",
		`(module (memory (export "memory") 1) (func (export "run")))`))
	require.NoError(t, err)
}

func TestDefaultCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "modhost"), executor.DefaultCacheDir())
}

// =============================================================================
// SOURCES
// =============================================================================

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	watPath := filepath.Join(dir, "mod.wat")
	require.NoError(t, os.WriteFile(watPath, []byte(greeter), 0o644))
	bin, err := executor.FileSource(watPath).Module()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, bin[:4])

	wasmPath := filepath.Join(dir, "mod.wasm")
	require.NoError(t, os.WriteFile(wasmPath, bin, 0o644))
	again, err := executor.FileSource(wasmPath).Module()
	require.NoError(t, err)
	assert.Equal(t, bin, again)
	assert.Equal(t, wasmPath, executor.FileSource(wasmPath).Name())

	_, err = executor.FileSource(filepath.Join(dir, "missing.wasm")).Module()
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestWATSourceError(t *testing.T) {
	_, err := executor.WATSource("broken", "(module").Module()
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidData))
	assert.Contains(t, err.Error(), "broken")
}

// =============================================================================
// INSPECT
// =============================================================================

func TestInspect(t *testing.T) {
	exec, err := executor.GetTestExecutor()
	require.NoError(t, err)

	r, err := exec.Inspect(context.Background(), executor.WATSource("greeter", greeter))
	require.NoError(t, err)

	assert.True(t, r.OK())
	assert.True(t, r.Reactor)
	assert.Equal(t, executor.EntryPoint{TakesHandle: true, ReturnsMessage: true}, r.Entry)
	assert.Equal(t, "run(i32) -> (i64)", r.Entry.String())
	assert.Equal(t, []string{"memory"}, r.Memories)

	require.Len(t, r.Imports, 2)
	assert.Equal(t, executor.Function{Module: hostfunc.Namespace, Name: hostfunc.FuncSpawnStuff, Signature: "(i32) -> (i32)"}, r.Imports[0])
	assert.Equal(t, "wasi_snapshot_preview1", r.Imports[1].Module)

	names := make([]string, len(r.Exports))
	for i, f := range r.Exports {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"_initialize", "run"}, names)
}

func TestInspectReportsProblems(t *testing.T) {
	exec, err := executor.GetTestExecutor()
	require.NoError(t, err)

	r, err := exec.Inspect(context.Background(), executor.WATSource("odd", `(module
  (import "mvp:game/api" "commands.teleport" (func (param i32)))
  (func (export "run") (param i64)))`))
	require.NoError(t, err)

	assert.False(t, r.OK())
	assert.True(t, errors.IsKind(r.EntryErr, errors.KindSignatureMismatch))
	assert.Equal(t, []errors.MissingImport{{Module: hostfunc.Namespace, Function: "commands.teleport"}}, r.Missing)
}

// =============================================================================
// SHARED EXECUTOR
// =============================================================================

func TestHostsShareExecutor(t *testing.T) {
	exec, err := executor.GetTestExecutor()
	require.NoError(t, err)
	ctx := context.Background()

	world := capability.NewWorld()
	for _, name := range []string{"shared-a", "shared-b"} {
		h := executor.NewHost(exec)
		_, err := h.Load(ctx, name, executor.WATSource(name, greeter))
		require.NoError(t, err)

		cmds := world.Commands(0)
		outcomes := h.Tick(ctx, cmds, 0)
		require.Len(t, outcomes, 1)
		assert.Equal(t, "hi", outcomes[0].Message)
		cmds.Flush()
		require.NoError(t, h.Close(ctx))
	}
	assert.Equal(t, map[string]int{"shared-a": 1, "shared-b": 1}, world.CountBy())
}
