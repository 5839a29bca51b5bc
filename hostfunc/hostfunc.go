package hostfunc

import (
	"context"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/caffeineduck/modhost/errors"
)

// Namespace is the import module name guests use for the host surface.
const Namespace = "mvp:game/api"

// Exported host function names.
const (
	FuncSpawnStuff = "commands.spawn-stuff"
	FuncDrop       = "commands.drop"
	FuncLog        = "log"
)

// Definition describes one host function.
type Definition struct {
	Name    string
	Doc     string
	Params  []api.ValueType
	Results []api.ValueType
	Func    api.GoModuleFunc
}

// Registry holds the fixed set of host functions exposed to extensions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Definition
}

// NewRegistry returns a registry with the complete host surface.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Definition)}
	r.add(Definition{
		Name:    FuncSpawnStuff,
		Doc:     "spawn an entity with the default composition through a handle",
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
		Func:    api.GoModuleFunc(spawnStuff),
	})
	r.add(Definition{
		Name:   FuncDrop,
		Doc:    "release a handle the extension no longer needs",
		Params: []api.ValueType{api.ValueTypeI32},
		Func:   api.GoModuleFunc(drop),
	})
	r.add(Definition{
		Name:   FuncLog,
		Doc:    "write a log line at the given level",
		Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
		Func:   api.GoModuleFunc(logMessage),
	})
	return r
}

func (r *Registry) add(def Definition) {
	r.mu.Lock()
	r.funcs[def.Name] = def
	r.mu.Unlock()
}

// Definition returns the host function registered under name.
func (r *Registry) Definition(name string) (Definition, bool) {
	r.mu.RLock()
	def, ok := r.funcs[name]
	r.mu.RUnlock()
	return def, ok
}

// Has reports whether name is part of the host surface.
func (r *Registry) Has(name string) bool {
	_, ok := r.Definition(name)
	return ok
}

// Names returns the host function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Instantiate registers the host module on rt.
func (r *Registry) Instantiate(ctx context.Context, rt wazero.Runtime) error {
	builder := rt.NewHostModuleBuilder(Namespace)
	for _, name := range r.Names() {
		def, _ := r.Definition(name)
		builder.NewFunctionBuilder().
			WithGoModuleFunction(def.Func, def.Params, def.Results).
			Export(def.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Registration(Namespace, "*", err)
	}
	return nil
}

// Missing returns the guest imports from Namespace the registry does not provide.
func (r *Registry) Missing(imports []api.FunctionDefinition) []errors.MissingImport {
	var missing []errors.MissingImport
	for _, def := range imports {
		module, name, ok := def.Import()
		if !ok || module != Namespace {
			continue
		}
		if !r.Has(name) {
			missing = append(missing, errors.MissingImport{Module: module, Function: name})
		}
	}
	return missing
}
