package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/caffeineduck/modhost/capability"
	"github.com/caffeineduck/modhost/config"
	"github.com/caffeineduck/modhost/executor"
	"github.com/caffeineduck/modhost/hostfunc"
)

// Build creates the executor, host and world described by cfg and loads its
// extensions in order. The returned App closes all of them.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	executor.SetLogger(log.Named("executor"))
	hostfunc.SetLogger(log.Named("hostfunc"))

	var execOpts []executor.ExecutorOption
	switch cfg.CacheDir {
	case "":
	case config.CacheDirDefault:
		execOpts = append(execOpts, executor.WithDiskCache())
	default:
		execOpts = append(execOpts, executor.WithDiskCache(cfg.CacheDir))
	}
	if cfg.MemoryLimitPages > 0 {
		execOpts = append(execOpts, executor.WithMemoryLimit(cfg.MemoryLimitPages))
	}

	exec, err := executor.New(hostfunc.NewRegistry(), execOpts...)
	if err != nil {
		return nil, err
	}

	host := executor.NewHost(exec, executor.WithCallTimeout(cfg.CallTimeout))
	for _, ext := range cfg.Extensions {
		sched, err := executor.ParseSchedule(ext.Schedule)
		if err != nil {
			host.Close(ctx)
			exec.Close()
			return nil, fmt.Errorf("extension %s: %w", ext.Name, err)
		}
		extOpts := []executor.ExtensionOption{executor.WithSchedule(sched)}
		for k, v := range ext.Env {
			extOpts = append(extOpts, executor.WithEnv(k, v))
		}
		if _, err := host.Load(ctx, ext.Name, executor.FileSource(ext.Path), extOpts...); err != nil {
			host.Close(ctx)
			exec.Close()
			return nil, err
		}
	}

	comps := make([]capability.Component, len(cfg.DefaultComponents))
	for i, c := range cfg.DefaultComponents {
		comps[i] = capability.Component(c)
	}
	world := capability.NewWorld(capability.WithDefaultComponents(comps...))

	base := []Option{
		WithLogger(log.Named("app")),
		WithTickRate(cfg.TickRate),
		WithMaxTicks(cfg.MaxTicks),
	}
	a := New(world, host, append(base, opts...)...)
	a.closers = append(a.closers, exec.Close)
	return a, nil
}
