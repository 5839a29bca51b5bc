// Package executor loads WebAssembly extensions and runs the invocation
// lifecycle that lends them the tick's commands.
//
// # Overview
//
// An [Executor] owns the wazero runtime, WASI, the host function module and a
// compiled module cache. A [Host] on top of it is the registry of loaded
// [Extension] instances; each extension has its own handle table.
//
// # Basic Usage
//
//	exec, err := executor.New(hostfunc.NewRegistry(), executor.WithDiskCache())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	host := executor.NewHost(exec)
//	defer host.Close(ctx)
//
//	if _, err := host.Load(ctx, "startup-mod", executor.FileSource("startup_mod.wat"),
//	    executor.WithSchedule(executor.ScheduleStartup)); err != nil {
//	    log.Fatal(err)
//	}
//
//	cmds := world.Commands(tick)
//	for _, out := range host.Tick(ctx, cmds, tick) {
//	    fmt.Println(out.Extension, out.Message, out.Err)
//	}
//	cmds.Flush()
//
// # Invocation lifecycle
//
// For each extension [Host.Invoke] moves through [StateIdle],
// [StateHandleAllocated], [StateWindowOpen] and [StateCompleted]:
//
//  1. reserve a lease on the host's sharing slot and allocate a handle bound to it
//  2. open the window with the commands installed and call run
//  3. host functions resolve the handle and spawn through the proxy's lease
//  4. close the window and expire the handle, whatever the call did
//
// A trap, an error message or a closed module is recorded on the [Outcome];
// the next extension still runs.
//
// # Entry point
//
// Extensions export run with one of these signatures:
//
//	run()            run(handle i32)
//	run() -> i64     run(handle i32) -> i64
//
// An i64 result packs ptr<<32 | len of a UTF-8 message in the exported
// memory. If bit 63 is set the message is an error and ptr has 31 bits.
// An exported _initialize runs once at load.
//
// # Call timeout
//
// By default a guest that never returns blocks the tick. [WithCallTimeout]
// bounds each call; the timed-out module is closed and later ticks skip it.
package executor
