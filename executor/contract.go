package executor

import (
	"context"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/caffeineduck/modhost/errors"
)

// Names of the exports an extension may provide.
const (
	ExportRun        = "run"
	ExportMemory     = "memory"
	ExportInitialize = "_initialize"
)

// EntryPoint describes the shape of an extension's run export.
type EntryPoint struct {
	TakesHandle    bool // run(i32 handle)
	ReturnsMessage bool // run returns a packed i64 message
}

func (ep EntryPoint) String() string {
	params, results := "()", "()"
	if ep.TakesHandle {
		params = "(i32)"
	}
	if ep.ReturnsMessage {
		results = "(i64)"
	}
	return ExportRun + params + " -> " + results
}

// entryPoint validates the run export of a compiled module.
func entryPoint(compiled wazero.CompiledModule) (EntryPoint, error) {
	def, ok := compiled.ExportedFunctions()[ExportRun]
	if !ok {
		return EntryPoint{}, errors.New(errors.PhaseLoad, errors.KindMissingExport).
			Detail("module does not export %q", ExportRun).
			Build()
	}

	var ep EntryPoint
	switch params := def.ParamTypes(); {
	case len(params) == 0:
	case len(params) == 1 && params[0] == api.ValueTypeI32:
		ep.TakesHandle = true
	default:
		return EntryPoint{}, signatureMismatch(def)
	}

	switch results := def.ResultTypes(); {
	case len(results) == 0:
	case len(results) == 1 && results[0] == api.ValueTypeI64:
		ep.ReturnsMessage = true
	default:
		return EntryPoint{}, signatureMismatch(def)
	}

	if ep.ReturnsMessage {
		if _, ok := compiled.ExportedMemories()[ExportMemory]; !ok {
			return EntryPoint{}, errors.New(errors.PhaseLoad, errors.KindMissingExport).
				Detail("%s returns a message but the module does not export %q", ExportRun, ExportMemory).
				Build()
		}
	}

	return ep, nil
}

func signatureMismatch(def api.FunctionDefinition) error {
	return errors.New(errors.PhaseLoad, errors.KindSignatureMismatch).
		Detail("%s has signature %s, want run() or run(i32) returning nothing or i64", ExportRun, signature(def)).
		Build()
}

func signature(def api.FunctionDefinition) string {
	return typeList(def.ParamTypes()) + " -> " + typeList(def.ResultTypes())
}

func typeList(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// Function is an import or export in a Report.
type Function struct {
	Module    string // import module, empty for exports
	Name      string
	Signature string
}

// Report describes a compiled module.
type Report struct {
	Source   string
	Imports  []Function
	Exports  []Function
	Memories []string
	Reactor  bool // exports _initialize
	Entry    EntryPoint
	EntryErr error
	Missing  []errors.MissingImport
}

// OK reports whether the module satisfies the extension contract.
func (r *Report) OK() bool {
	return r.EntryErr == nil && len(r.Missing) == 0
}

// Inspect compiles src and reports its imports, exports and whether it can
// be loaded as an extension.
func (e *Executor) Inspect(ctx context.Context, src Source) (*Report, error) {
	compiled, err := e.Compile(ctx, src)
	if err != nil {
		return nil, err
	}

	r := &Report{Source: src.Name()}

	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		r.Imports = append(r.Imports, Function{Module: module, Name: name, Signature: signature(def)})
	}
	slices.SortFunc(r.Imports, func(a, b Function) int {
		if c := strings.Compare(a.Module, b.Module); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	for name, def := range compiled.ExportedFunctions() {
		r.Exports = append(r.Exports, Function{Name: name, Signature: signature(def)})
		if name == ExportInitialize {
			r.Reactor = true
		}
	}
	slices.SortFunc(r.Exports, func(a, b Function) int {
		return strings.Compare(a.Name, b.Name)
	})

	for name := range compiled.ExportedMemories() {
		r.Memories = append(r.Memories, name)
	}
	slices.Sort(r.Memories)

	r.Entry, r.EntryErr = entryPoint(compiled)
	r.Missing = e.registry.Missing(compiled.ImportedFunctions())

	return r, nil
}
