package executor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observedOutput(tee *bytes.Buffer) (*guestOutput, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	var w *guestOutput
	if tee != nil {
		w = newGuestOutput(zap.New(core), "stdout", zap.InfoLevel, tee)
	} else {
		w = newGuestOutput(zap.New(core), "stdout", zap.InfoLevel, nil)
	}
	return w, logs
}

func loggedLines(logs *observer.ObservedLogs) []string {
	var lines []string
	for _, e := range logs.All() {
		lines = append(lines, e.ContextMap()["line"].(string))
	}
	return lines
}

func TestGuestOutputSplitsLines(t *testing.T) {
	tests := []struct {
		name   string
		writes []string
		want   []string
	}{
		{"single line", []string{"hello\n"}, []string{"hello"}},
		{"two lines one write", []string{"a\nb\n"}, []string{"a", "b"}},
		{"split across writes", []string{"hel", "lo\nwor", "ld\n"}, []string{"hello", "world"}},
		{"crlf", []string{"dos\r\n"}, []string{"dos"}},
		{"empty line", []string{"\n"}, []string{""}},
		{"no newline", []string{"pending"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, logs := observedOutput(nil)
			for _, s := range tt.writes {
				n, err := w.Write([]byte(s))
				assert.NoError(t, err)
				assert.Equal(t, len(s), n)
			}
			assert.Equal(t, tt.want, loggedLines(logs))
		})
	}
}

func TestGuestOutputFlush(t *testing.T) {
	w, logs := observedOutput(nil)

	w.Write([]byte("first\nsecond"))
	assert.Equal(t, []string{"first"}, loggedLines(logs))

	w.Flush()
	assert.Equal(t, []string{"first", "second"}, loggedLines(logs))
	assert.Equal(t, 2, w.Lines())

	w.Flush()
	assert.Equal(t, 2, w.Lines(), "empty flush emits nothing")
}

func TestGuestOutputLongLine(t *testing.T) {
	w, logs := observedOutput(nil)

	w.Write([]byte(strings.Repeat("x", maxLineSize+10)))
	lines := loggedLines(logs)
	if assert.Len(t, lines, 1) {
		assert.Len(t, lines[0], maxLineSize)
	}

	w.Flush()
	lines = loggedLines(logs)
	if assert.Len(t, lines, 2) {
		assert.Len(t, lines[1], 10)
	}
}

func TestGuestOutputTee(t *testing.T) {
	var tee bytes.Buffer
	w, logs := observedOutput(&tee)

	w.Write([]byte("to both\n"))
	assert.Equal(t, "to both\n", tee.String())
	assert.Equal(t, []string{"to both"}, loggedLines(logs))
	assert.Equal(t, "stdout", logs.All()[0].ContextMap()["stream"])
}
