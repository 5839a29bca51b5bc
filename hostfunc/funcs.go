package hostfunc

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/caffeineduck/modhost/handle"
)

// MaxLogSize bounds a single guest log message.
const MaxLogSize = 64 * 1024

// Guest log levels accepted by the log import.
const (
	LevelDebug int32 = iota
	LevelInfo
	LevelWarn
	LevelError
)

func spawnStuff(ctx context.Context, mod api.Module, stack []uint64) {
	h := handle.Handle(api.DecodeU32(stack[0]))

	caps, ok := CapabilitiesFromContext(ctx)
	if !ok {
		Logger().Debug("spawn-stuff outside invocation",
			zap.String("module", mod.Name()),
			zap.Uint32("handle", uint32(h)))
		stack[0] = api.EncodeU32(uint32(StatusNoActiveWindow))
		return
	}

	status := StatusOf(caps.SpawnDefault(h))
	stack[0] = api.EncodeU32(uint32(status))
}

func drop(ctx context.Context, mod api.Module, stack []uint64) {
	h := handle.Handle(api.DecodeU32(stack[0]))

	caps, ok := CapabilitiesFromContext(ctx)
	if !ok {
		Logger().Debug("drop outside invocation",
			zap.String("module", mod.Name()),
			zap.Uint32("handle", uint32(h)))
		return
	}
	_ = caps.Drop(h)
}

func logMessage(ctx context.Context, mod api.Module, stack []uint64) {
	level := guestLevel(api.DecodeI32(stack[0]))
	ptr := api.DecodeU32(stack[1])
	length := api.DecodeU32(stack[2])

	if length > MaxLogSize {
		length = MaxLogSize
	}

	mem := mod.Memory()
	if mem == nil {
		return
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		Logger().Debug("log message out of bounds",
			zap.String("module", mod.Name()),
			zap.Uint32("ptr", ptr),
			zap.Uint32("len", length))
		return
	}
	msg := string(data)

	if caps, ok := CapabilitiesFromContext(ctx); ok {
		caps.Log(level, msg)
		return
	}
	if ce := Logger().Check(level, msg); ce != nil {
		ce.Write(zap.String("extension", mod.Name()))
	}
}

func guestLevel(l int32) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
