// Package modhost hosts WebAssembly mods that act on a game world through
// capabilities the host lends them one call at a time.
//
// # Overview
//
// Each tick the host opens the world's [capability.Commands] for every
// scheduled extension. The extension receives an integer handle; the
// mvp:game/api host functions resolve it to a proxy whose lease on the
// sharing window is valid only while that call runs. A handle kept past the
// call, or forged, resolves to nothing.
//
// # Basic Usage
//
//	exec, _ := executor.New(hostfunc.NewRegistry())
//	defer exec.Close()
//
//	host := executor.NewHost(exec)
//	host.Load(ctx, "startup-mod", executor.FileSource("startup_mod.wat"))
//
//	a := app.New(capability.NewWorld(), host)
//	report := a.Step(ctx)
//	fmt.Println(report.Entities)
//
// See the [bridge], [handle], [executor] and [hostfunc] packages for the
// sharing window, the handle table, the invocation lifecycle and the host
// function surface.
package modhost
