package executor

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/caffeineduck/modhost/bridge"
	"github.com/caffeineduck/modhost/capability"
	"github.com/caffeineduck/modhost/errors"
	"github.com/caffeineduck/modhost/handle"
)

// Host is the registry of loaded extensions. It owns the sharing slot the
// tick's commands are lent through and runs the invocation lifecycle for
// each extension in load order.
//
// Tick and Invoke are not safe for concurrent use.
type Host struct {
	exec *Executor
	cfg  hostConfig
	slot bridge.Slot[capability.Commands]

	mu         sync.RWMutex
	extensions []*Extension
	byName     map[string]*Extension
	closed     bool
}

// NewHost creates an empty extension registry on exec.
func NewHost(exec *Executor, opts ...HostOption) *Host {
	cfg := defaultHostConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Host{
		exec:   exec,
		cfg:    cfg,
		byName: make(map[string]*Extension),
	}
}

// Load compiles, validates and instantiates an extension.
func (h *Host) Load(ctx context.Context, name string, src Source, opts ...ExtensionOption) (*Extension, error) {
	cfg := defaultExtensionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "extension name is empty")
	}

	h.mu.RLock()
	closed := h.closed
	_, dup := h.byName[name]
	h.mu.RUnlock()
	if closed {
		return nil, errors.Closed(errors.PhaseLoad, "host")
	}
	if dup {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Extension(name).
			Detail("extension already loaded").
			Build()
	}

	compiled, err := h.exec.Compile(ctx, src)
	if err != nil {
		return nil, withExtension(err, name)
	}

	entry, err := entryPoint(compiled)
	if err != nil {
		return nil, withExtension(err, name)
	}

	if missing := h.exec.registry.Missing(compiled.ImportedFunctions()); len(missing) > 0 {
		return nil, &errors.MissingImportsError{Extension: name, Imports: missing}
	}

	log := Logger().With(zap.String("extension", name))
	stdout := newGuestOutput(log, "stdout", zap.InfoLevel, cfg.stdout)
	stderr := newGuestOutput(log, "stderr", zap.WarnLevel, cfg.stderr)

	moduleConfig := wazero.NewModuleConfig().
		WithName(name).
		WithStdout(stdout).
		WithStderr(stderr).
		WithArgs(name)

	if _, ok := compiled.ExportedFunctions()[ExportInitialize]; ok {
		moduleConfig = moduleConfig.WithStartFunctions(ExportInitialize)
	} else {
		moduleConfig = moduleConfig.WithStartFunctions()
	}

	for k, v := range cfg.env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	mod, err := h.exec.runtime.InstantiateModule(ctx, compiled, moduleConfig)
	stdout.Flush()
	stderr.Flush()
	if err != nil {
		return nil, errors.Instantiation(name, err)
	}

	ext := &Extension{
		name:     name,
		source:   src.Name(),
		schedule: cfg.schedule,
		entry:    entry,
		module:   mod,
		run:      mod.ExportedFunction(ExportRun),
		table:    handle.NewTable[capability.Commands](),
		stdout:   stdout,
		stderr:   stderr,
		log:      log,
	}
	ext.table.Subscribe(ext)

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, dup := h.byName[name]; dup {
		mod.Close(ctx)
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Extension(name).
			Detail("extension already loaded").
			Build()
	}
	h.extensions = append(h.extensions, ext)
	h.byName[name] = ext

	log.Info("extension loaded",
		zap.String("source", ext.source),
		zap.String("schedule", string(ext.schedule)),
		zap.Stringer("entry", entry))

	return ext, nil
}

// Extensions returns the loaded extensions in load order.
func (h *Host) Extensions() []*Extension {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Extension, len(h.extensions))
	copy(out, h.extensions)
	return out
}

// Extension returns the extension loaded under name.
func (h *Host) Extension(name string) (*Extension, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ext, ok := h.byName[name]
	return ext, ok
}

// Tick invokes every extension scheduled for tick, in load order. A failing
// extension does not stop the others.
func (h *Host) Tick(ctx context.Context, cmds *capability.Commands, tick uint64) []Outcome {
	var outcomes []Outcome
	for _, ext := range h.Extensions() {
		if !ext.schedule.runsOn(tick) {
			continue
		}
		outcomes = append(outcomes, h.Invoke(ctx, ext, cmds, tick))
	}
	return outcomes
}

// WindowOpen reports whether the sharing window is open. Outside Invoke it
// is always false.
func (h *Host) WindowOpen() bool {
	return h.slot.Active()
}

// Windows returns the number of sharing windows opened so far.
func (h *Host) Windows() uint64 {
	return h.slot.Generation()
}

// Close closes every extension. The Executor stays open.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	exts := h.extensions
	h.extensions = nil
	h.byName = make(map[string]*Extension)
	h.mu.Unlock()

	var errs []error
	for _, ext := range exts {
		if err := ext.close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// withExtension attaches the extension name to structured errors.
func withExtension(err error, name string) error {
	var e *errors.Error
	if errors.As(err, &e) && e.Extension == "" {
		cp := *e
		cp.Extension = name
		return &cp
	}
	return err
}
