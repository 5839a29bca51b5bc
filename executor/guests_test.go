package executor

// Guest modules for lifecycle tests, in WebAssembly text.

const apiImports = `
  (import "mvp:game/api" "commands.spawn-stuff" (func $spawn (param i32) (result i32)))
  (import "mvp:game/api" "commands.drop" (func $drop (param i32)))`

// Spawns once and returns "Hello from Wasm Component!".
const guestSpawnOnce = `(module` + apiImports + `
  (memory (export "memory") 1)
  (data (i32.const 64) "Hello from Wasm Component!")
  (func (export "run") (param i32) (result i64)
    (drop (call $spawn (local.get 0)))
    (i64.or
      (i64.shl (i64.const 64) (i64.const 32))
      (i64.const 26))))`

// Spawns three times; statuses stored at 0, 4 and 8.
const guestSpawnThree = `(module` + apiImports + `
  (memory (export "memory") 1)
  (func (export "run") (param i32)
    (i32.store (i32.const 0) (call $spawn (local.get 0)))
    (i32.store (i32.const 4) (call $spawn (local.get 0)))
    (i32.store (i32.const 8) (call $spawn (local.get 0)))))`

// Traps before calling back.
const guestTrap = `(module` + apiImports + `
  (func (export "run") (param i32)
    unreachable))`

// Spawns, then traps.
const guestSpawnThenTrap = `(module` + apiImports + `
  (func (export "run") (param i32)
    (drop (call $spawn (local.get 0)))
    unreachable))`

// Returns the error message "boom".
const guestError = `(module
  (memory (export "memory") 1)
  (data (i32.const 32) "boom")
  (func (export "run") (result i64)
    (i64.or
      (i64.shl (i64.const 1) (i64.const 63))
      (i64.or
        (i64.shl (i64.const 32) (i64.const 32))
        (i64.const 4)))))`

// Spawns through the handle it received on the previous call; status at 0.
const guestRetain = `(module` + apiImports + `
  (memory (export "memory") 1)
  (global $prev (mut i32) (i32.const 0))
  (func (export "run") (param i32)
    (i32.store (i32.const 0) (call $spawn (global.get $prev)))
    (global.set $prev (local.get 0))))`

// Spawns through a forged handle; status at 0.
const guestForge = `(module` + apiImports + `
  (memory (export "memory") 1)
  (func (export "run") (param i32)
    (i32.store (i32.const 0) (call $spawn (i32.const 48879)))))`

// Drops its handle, then tries to spawn with it; status at 0.
const guestDropThenSpawn = `(module` + apiImports + `
  (memory (export "memory") 1)
  (func (export "run") (param i32)
    (call $drop (local.get 0))
    (i32.store (i32.const 0) (call $spawn (local.get 0)))))`

// Takes no handle and imports nothing; counts calls in a global.
const guestNoHandle = `(module
  (global $n (mut i32) (i32.const 0))
  (func (export "run")
    (global.set $n (i32.add (global.get $n) (i32.const 1))))
  (func (export "count") (result i32)
    (global.get $n)))`

// Tries to spawn from _initialize; status at 0.
const guestInitSpawn = `(module` + apiImports + `
  (memory (export "memory") 1)
  (func (export "_initialize")
    (i32.store (i32.const 0) (call $spawn (i32.const 1))))
  (func (export "run") (param i32)))`

// Never returns.
const guestLoop = `(module
  (func (export "run")
    (loop $forever
      (br $forever))))`

// Exits through WASI.
const guestExit = `(module
  (import "wasi_snapshot_preview1" "proc_exit" (func $exit (param i32)))
  (func (export "run")
    (call $exit (i32.const 3))))`

// Writes "hello\npartial" to stdout through WASI.
const guestPrint = `(module
  (import "wasi_snapshot_preview1" "fd_write" (func $fd_write (param i32 i32 i32 i32) (result i32)))
  (memory (export "memory") 1)
  (data (i32.const 16) "hello\0apartial")
  (func (export "run")
    (i32.store (i32.const 0) (i32.const 16))
    (i32.store (i32.const 4) (i32.const 13))
    (drop (call $fd_write (i32.const 1) (i32.const 0) (i32.const 1) (i32.const 8)))))`

// Load failures.
const (
	guestNoRun = `(module
  (func (export "start")))`

	guestBadSignature = `(module
  (func (export "run") (param f32)))`

	guestBadResult = `(module
  (func (export "run") (result i32)
    (i32.const 0)))`

	guestMissingImport = `(module
  (import "mvp:game/api" "commands.despawn" (func (param i32)))
  (func (export "run")))`

	guestMessageNoMemory = `(module
  (func (export "run") (result i64)
    (i64.const 0)))`

	guestInitTrap = `(module
  (func (export "_initialize")
    unreachable)
  (func (export "run")))`
)
