// Package hostfunc provides the host functions extensions may import.
//
// The surface is closed: extensions import module "mvp:game/api" and can call
// only the functions a [Registry] enumerates.
//
//	commands.spawn-stuff(handle i32) -> status i32
//	commands.drop(handle i32)
//	log(level i32, ptr i32, len i32)
//
// Host functions never trap on bad input. A forged or stale handle yields
// [StatusUnknownHandle]; a call made when no invocation is in progress (for
// example from a reactor's _initialize) yields [StatusNoActiveWindow].
//
// # Capabilities
//
// Host functions do not know which extension called them. The invocation
// lifecycle installs a [Capabilities] value on the call context with
// [WithCapabilities]; wazero passes that context through to every host call
// made during the invocation.
//
//	ctx = hostfunc.WithCapabilities(ctx, invocation)
//	_, err := run.Call(ctx, uint64(h))
//
// # Registry
//
//	registry := hostfunc.NewRegistry()
//	if err := registry.Instantiate(ctx, runtime); err != nil {
//	    return err
//	}
//
// [Registry.Missing] reports the imports a compiled guest expects from the
// namespace that the registry does not provide, so loading can fail with a
// useful message before instantiation.
package hostfunc
