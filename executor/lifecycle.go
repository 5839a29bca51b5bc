package executor

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/caffeineduck/modhost/capability"
	"github.com/caffeineduck/modhost/errors"
	"github.com/caffeineduck/modhost/handle"
	"github.com/caffeineduck/modhost/hostfunc"
)

// MaxMessageSize bounds the message an entry point may return.
const MaxMessageSize = 1 << 20

// errorBit marks a packed run result as an error message.
const errorBit = uint64(1) << 63

// State is a step of the invocation lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateHandleAllocated
	StateWindowOpen
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandleAllocated:
		return "handle-allocated"
	case StateWindowOpen:
		return "window-open"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one invocation.
type Outcome struct {
	Extension string
	Tick      uint64
	Handle    handle.Handle
	State     State
	Message   string
	Spawns    int
	Duration  time.Duration
	Err       error
}

// OK reports whether the invocation succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// invocation implements hostfunc.Capabilities for one call.
type invocation struct {
	ext    *Extension
	tick   uint64
	spawns int
}

func (inv *invocation) SpawnDefault(h handle.Handle) error {
	p, err := inv.ext.table.Resolve(h)
	if err != nil {
		inv.ext.log.Debug("spawn-stuff with unknown handle",
			zap.Uint64("tick", inv.tick),
			zap.Uint32("handle", uint32(h)))
		return err
	}
	err = p.Use(func(cmds *capability.Commands) error {
		cmds.SpawnDefault(inv.ext.name)
		return nil
	})
	if err != nil {
		inv.ext.log.Debug("spawn-stuff outside window",
			zap.Uint64("tick", inv.tick),
			zap.Uint32("handle", uint32(h)),
			zap.Error(err))
		return err
	}
	inv.spawns++
	return nil
}

func (inv *invocation) Drop(h handle.Handle) error {
	if err := inv.ext.table.Release(h); err != nil {
		inv.ext.log.Debug("drop of unknown handle",
			zap.Uint64("tick", inv.tick),
			zap.Uint32("handle", uint32(h)))
		return err
	}
	return nil
}

func (inv *invocation) Log(level zapcore.Level, msg string) {
	if ce := inv.ext.log.Check(level, msg); ce != nil {
		ce.Write(zap.Uint64("tick", inv.tick), zap.String("source", "guest"))
	}
}

// Invoke runs one lifecycle for ext: allocate a handle, open the window around
// cmds, call the entry point, close the window and release the handle.
// Failures are recorded on the Outcome; Invoke never returns early with the
// window open or a handle left in the table.
func (h *Host) Invoke(ctx context.Context, ext *Extension, cmds *capability.Commands, tick uint64) (out Outcome) {
	start := time.Now()
	out = Outcome{Extension: ext.name, Tick: tick, State: StateIdle}

	defer func() {
		out.Duration = time.Since(start)
		ext.record(out)
		h.report(ext, out)
	}()

	if ext.Closed() {
		out.Err = errors.New(errors.PhaseInvoke, errors.KindClosed).
			Extension(ext.name).
			Detail("module is closed").
			Build()
		return out
	}

	// Idle -> HandleAllocated
	lease := h.slot.Reserve()
	hd, err := ext.table.Allocate(lease)
	if err != nil {
		out.Err = errors.New(errors.PhaseHandle, errors.KindInvalidInput).
			Extension(ext.name).
			Detail("allocate handle").
			Cause(err).
			Build()
		return out
	}
	out.Handle = hd
	out.State = StateHandleAllocated

	inv := &invocation{ext: ext, tick: tick}
	callCtx := hostfunc.WithCapabilities(ctx, inv)
	if h.cfg.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, h.cfg.callTimeout)
		defer cancel()
	}

	var params []uint64
	if ext.entry.TakesHandle {
		params = []uint64{api.EncodeU32(uint32(hd))}
	}

	// HandleAllocated -> WindowOpen -> Completed
	var results []uint64
	callErr := h.slot.ShareLease(lease, cmds, func() error {
		out.State = StateWindowOpen
		var err error
		results, err = ext.run.Call(callCtx, params...)
		return err
	})
	out.State = StateCompleted

	// The guest may already have dropped the handle.
	_ = ext.table.Expire(hd)
	ext.stdout.Flush()
	ext.stderr.Flush()
	out.Spawns = inv.spawns

	if callErr != nil {
		out.Err = h.classify(ctx, callCtx, ext, callErr)
		return out
	}

	if ext.entry.ReturnsMessage && len(results) == 1 {
		msg, failed, err := readMessage(ext.module, results[0])
		switch {
		case err != nil:
			out.Err = errors.New(errors.PhaseInvoke, errors.KindInvalidData).
				Extension(ext.name).
				Detail("read result message").
				Cause(err).
				Build()
		case failed:
			out.Err = errors.New(errors.PhaseInvoke, errors.KindGuestError).
				Extension(ext.name).
				Detail("%s", msg).
				Build()
		default:
			out.Message = msg
		}
	}

	return out
}

// classify turns a failed call into a structured error and closes
// extensions whose module can no longer be called.
func (h *Host) classify(ctx, callCtx context.Context, ext *Extension, err error) error {
	kind := errors.KindTrap
	detail := "entry point trapped"

	var exitErr *sys.ExitError
	switch {
	case ctx.Err() == nil && stderrors.Is(callCtx.Err(), context.DeadlineExceeded):
		kind = errors.KindTimeout
		detail = "entry point exceeded " + h.cfg.callTimeout.String()
	case ctx.Err() != nil:
		kind = errors.KindClosed
		detail = "invocation cancelled"
	case stderrors.As(err, &exitErr):
		kind = errors.KindClosed
		detail = "module exited"
	}

	if kind != errors.KindTrap || ext.module.IsClosed() {
		ext.markClosed()
	}

	return errors.New(errors.PhaseInvoke, kind).
		Extension(ext.name).
		Detail(detail).
		Cause(err).
		Build()
}

// readMessage decodes a packed ptr<<32|len result. When the top bit is set
// the message is an error and the pointer has 31 bits.
func readMessage(mod api.Module, packed uint64) (msg string, failed bool, err error) {
	failed = packed&errorBit != 0
	ptr := uint32(packed >> 32)
	if failed {
		ptr &= 0x7fffffff
	}
	length := uint32(packed)

	if length == 0 {
		return "", failed, nil
	}
	if length > MaxMessageSize {
		return "", failed, errors.InvalidInput(errors.PhaseInvoke, "message exceeds maximum size")
	}

	mem := mod.Memory()
	if mem == nil {
		return "", failed, errors.New(errors.PhaseInvoke, errors.KindMissingExport).
			Detail("module has no memory").
			Build()
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		return "", failed, errors.InvalidInput(errors.PhaseInvoke, "message out of memory bounds")
	}
	return string(data), failed, nil
}

func (h *Host) report(ext *Extension, out Outcome) {
	fields := []zap.Field{
		zap.Uint64("tick", out.Tick),
		zap.Uint32("handle", uint32(out.Handle)),
		zap.Stringer("state", out.State),
		zap.Duration("duration", out.Duration),
	}
	switch {
	case out.Err != nil:
		ext.log.Warn("ERROR calling extension", append(fields, zap.Error(out.Err))...)
	case out.Message != "":
		ext.log.Info("Message from extension", append(fields, zap.String("message", out.Message))...)
	default:
		ext.log.Debug("extension completed", append(fields, zap.Int("spawns", out.Spawns))...)
	}
}
