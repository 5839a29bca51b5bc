package executor

import (
	"bytes"
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxLineSize bounds buffered guest output without a newline.
const maxLineSize = 4096

// guestOutput forwards a guest's stdout or stderr to the log one line at a
// time. Partial lines are buffered until a newline, Flush, or maxLineSize.
type guestOutput struct {
	log    *zap.Logger
	level  zapcore.Level
	stream string
	tee    io.Writer

	buf   bytes.Buffer
	lines int
	mu    sync.Mutex
}

var _ io.Writer = (*guestOutput)(nil)

func newGuestOutput(log *zap.Logger, stream string, level zapcore.Level, tee io.Writer) *guestOutput {
	return &guestOutput{
		log:    log,
		level:  level,
		stream: stream,
		tee:    tee,
	}
}

func (o *guestOutput) Write(data []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(data)
	if o.tee != nil {
		o.tee.Write(data)
	}
	o.buf.Write(data)

	for {
		content := o.buf.Bytes()
		idx := bytes.IndexByte(content, '\n')
		if idx == -1 {
			if len(content) >= maxLineSize {
				o.emit(string(content[:maxLineSize]))
				o.buf.Next(maxLineSize)
				continue
			}
			break
		}
		o.emit(string(bytes.TrimSuffix(content[:idx], []byte{'\r'})))
		o.buf.Next(idx + 1)
	}

	return n, nil
}

// Flush emits any buffered partial line.
func (o *guestOutput) Flush() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.buf.Len() > 0 {
		o.emit(o.buf.String())
		o.buf.Reset()
	}
}

// Lines returns the number of lines emitted so far.
func (o *guestOutput) Lines() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lines
}

func (o *guestOutput) emit(line string) {
	o.lines++
	if ce := o.log.Check(o.level, "guest output"); ce != nil {
		ce.Write(zap.String("stream", o.stream), zap.String("line", line))
	}
}
