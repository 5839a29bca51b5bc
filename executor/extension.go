package executor

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/caffeineduck/modhost/capability"
	"github.com/caffeineduck/modhost/errors"
	"github.com/caffeineduck/modhost/handle"
)

// Schedule says on which ticks an extension is invoked.
type Schedule string

const (
	ScheduleUpdate  Schedule = "update"  // every tick
	ScheduleStartup Schedule = "startup" // tick 0 only
)

// ParseSchedule parses a schedule name. The empty string is ScheduleUpdate.
func ParseSchedule(s string) (Schedule, error) {
	switch Schedule(s) {
	case "", ScheduleUpdate:
		return ScheduleUpdate, nil
	case ScheduleStartup:
		return ScheduleStartup, nil
	default:
		return "", errors.InvalidInput(errors.PhaseConfig, "unknown schedule "+s)
	}
}

func (s Schedule) runsOn(tick uint64) bool {
	if s == ScheduleStartup {
		return tick == 0
	}
	return true
}

// Stats counts an extension's invocations.
type Stats struct {
	Invocations uint64
	Failures    uint64
	Spawns      uint64
}

// Extension is a loaded extension instance with its private handle table.
type Extension struct {
	name     string
	source   string
	schedule Schedule
	entry    EntryPoint
	module   api.Module
	run      api.Function
	table    *handle.Table[capability.Commands]
	stdout   *guestOutput
	stderr   *guestOutput
	log      *zap.Logger

	mu     sync.Mutex
	stats  Stats
	last   Outcome
	ran    bool
	closed bool
}

// Name returns the extension's unique name.
func (x *Extension) Name() string { return x.name }

// Source returns the name of the source the extension was loaded from.
func (x *Extension) Source() string { return x.source }

// Schedule returns when the extension is invoked.
func (x *Extension) Schedule() Schedule { return x.schedule }

// EntryPoint returns the validated shape of the run export.
func (x *Extension) EntryPoint() EntryPoint { return x.entry }

// Handles returns the live handles in the extension's table.
// Between invocations this is always empty.
func (x *Extension) Handles() []handle.Handle {
	return x.table.Live()
}

// Table returns the extension's handle table.
func (x *Extension) Table() *handle.Table[capability.Commands] {
	return x.table
}

// Stats returns the extension's counters.
func (x *Extension) Stats() Stats {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.stats
}

// LastOutcome returns the most recent invocation outcome.
func (x *Extension) LastOutcome() (Outcome, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.last, x.ran
}

// Closed reports whether the module can no longer be called.
func (x *Extension) Closed() bool {
	x.mu.Lock()
	closed := x.closed
	x.mu.Unlock()
	return closed || x.module.IsClosed()
}

func (x *Extension) record(out Outcome) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.last = out
	x.ran = true
	if out.State == StateIdle && errors.IsKind(out.Err, errors.KindClosed) {
		return
	}
	x.stats.Invocations++
	x.stats.Spawns += uint64(out.Spawns)
	if out.Err != nil {
		x.stats.Failures++
	}
}

func (x *Extension) markClosed() {
	x.mu.Lock()
	x.closed = true
	x.mu.Unlock()
}

func (x *Extension) close(ctx context.Context) error {
	x.markClosed()
	x.stdout.Flush()
	x.stderr.Flush()
	x.table.Close()
	return x.module.Close(ctx)
}

// OnHandleEvent logs handle lifecycle events.
func (x *Extension) OnHandleEvent(e handle.Event) {
	if ce := x.log.Check(zap.DebugLevel, "handle "+e.Type.String()); ce != nil {
		fields := []zap.Field{zap.Uint32("handle", uint32(e.Handle))}
		if e.Reason != "" {
			fields = append(fields, zap.String("reason", string(e.Reason)))
		}
		ce.Write(fields...)
	}
}
