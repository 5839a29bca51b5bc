// Package app drives the tick loop: each tick opens the world's commands,
// lets the host run the scheduled extensions and flushes the result.
package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caffeineduck/modhost/capability"
	"github.com/caffeineduck/modhost/executor"
)

// Report summarizes one tick.
type Report struct {
	Tick     uint64
	Outcomes []executor.Outcome
	Spawned  []capability.EntityID
	Entities int
	Duration time.Duration
}

// Failures counts outcomes that did not complete cleanly.
func (r Report) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

type Option func(*App)

// WithLogger sets the logger for tick summaries.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithTickRate sets the interval between ticks in Run. Zero runs ticks back
// to back.
func WithTickRate(d time.Duration) Option {
	return func(a *App) { a.rate = d }
}

// WithMaxTicks stops Run after n ticks. Zero means until cancelled.
func WithMaxTicks(n uint64) Option {
	return func(a *App) { a.maxTicks = n }
}

// WithReporter is called after every tick Run performs.
func WithReporter(f func(Report)) Option {
	return func(a *App) { a.reporter = f }
}

// App owns a world and the host whose extensions act on it.
type App struct {
	world    *capability.World
	host     *executor.Host
	log      *zap.Logger
	rate     time.Duration
	maxTicks uint64
	reporter func(Report)
	closers  []func() error

	mu   sync.Mutex
	tick uint64
}

func New(world *capability.World, host *executor.Host, opts ...Option) *App {
	a := &App{
		world: world,
		host:  host,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *App) World() *capability.World { return a.world }

func (a *App) Host() *executor.Host { return a.host }

// Tick returns the number of the next tick to run.
func (a *App) Tick() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tick
}

// Step runs one tick. Steps are serialized.
func (a *App) Step(ctx context.Context) Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	tick := a.tick
	a.tick++

	cmds := a.world.Commands(tick)
	outcomes := a.host.Tick(ctx, cmds, tick)
	spawned := cmds.Flush()

	r := Report{
		Tick:     tick,
		Outcomes: outcomes,
		Spawned:  spawned,
		Entities: a.world.Len(),
		Duration: time.Since(start),
	}
	a.log.Debug("tick",
		zap.Uint64("tick", tick),
		zap.Int("invoked", len(outcomes)),
		zap.Int("failed", r.Failures()),
		zap.Int("spawned", len(spawned)),
		zap.Int("entities", r.Entities),
		zap.Duration("duration", r.Duration))
	return r
}

// Run steps until ctx is done or the tick limit is reached. Cancellation is
// not an error.
func (a *App) Run(ctx context.Context) error {
	var ticker *time.Ticker
	if a.rate > 0 {
		ticker = time.NewTicker(a.rate)
		defer ticker.Stop()
	}

	a.log.Info("running", zap.Duration("tick_rate", a.rate), zap.Uint64("max_ticks", a.maxTicks))
	for ran := uint64(0); a.maxTicks == 0 || ran < a.maxTicks; ran++ {
		if ctx.Err() != nil {
			break
		}
		r := a.Step(ctx)
		if a.reporter != nil {
			a.reporter(r)
		}
		if ticker == nil {
			continue
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
	a.log.Info("stopped", zap.Uint64("ticks", a.Tick()), zap.Int("entities", a.world.Len()))
	return nil
}

// Close closes the host and anything Build opened for it.
func (a *App) Close(ctx context.Context) error {
	err := a.host.Close(ctx)
	for i := len(a.closers) - 1; i >= 0; i-- {
		if cerr := a.closers[i](); err == nil {
			err = cerr
		}
	}
	a.closers = nil
	return err
}
