package engine

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	wasmhost "github.com/hostkit/wasm-host"
	"github.com/hostkit/wasm-host/errors"
)

// Engine wraps a wazero runtime. It owns the compiled-code cache and all
// engine state instances execute against, so it must outlive every module
// and instance created from it.
type Engine struct {
	runtime      wazero.Runtime
	cache        wazero.CompilationCache
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CompilationCacheDir enables a persistent compilation cache in the
	// given directory, shared across engines and processes.
	CompilationCacheDir string

	// CloseOnContextDone makes in-flight guest calls observe context
	// cancellation and deadlines. Off by default; calls are otherwise
	// uninterruptible.
	CloseOnContextDone bool
}

// New creates a new wazero-based engine
func New(ctx context.Context) (*Engine, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a new engine with custom configuration
func NewWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	var cache wazero.CompilationCache
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CompilationCacheDir != "" {
			c, err := wazero.NewCompilationCacheWithDir(cfg.CompilationCacheDir)
			if err != nil {
				return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
					Detail("compilation cache dir %q", cfg.CompilationCacheDir).
					Cause(err).
					Build()
			}
			cache = c
			runtimeCfg = runtimeCfg.WithCompilationCache(c)
		}
		if cfg.CloseOnContextDone {
			runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
		}
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &Engine{runtime: runtime, cache: cache}, nil
}

// Close releases the runtime and any compilation cache.
// All instances must be closed before calling this.
func (e *Engine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// InstantiateWASI registers wazero's wasi_snapshot_preview1 host module
// with the runtime. Idempotent; safe to call once per loaded module.
func (e *Engine) InstantiateWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}
	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()
	if e.wasiInitDone.Load() {
		return nil
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
		return errors.New(errors.PhaseLink, errors.KindInstantiation).
			Detail("instantiate %s", wasi_snapshot_preview1.ModuleName).
			Cause(err).
			Build()
	}
	e.wasiInitDone.Store(true)

	Logger().Debug("WASI host module instantiated",
		zap.String("module", wasi_snapshot_preview1.ModuleName))
	return nil
}

// Compile compiles and validates module bytes.
func (e *Engine) Compile(ctx context.Context, wasmBytes []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Compile(err)
	}

	Logger().Debug("module compiled", zap.Int("size", len(wasmBytes)))
	return &Module{engine: e, compiled: compiled}, nil
}

// Module is a compiled module bound to its engine.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// ImportedFunction names one function import the module declares.
type ImportedFunction struct {
	Module string
	Name   string
}

// ImportedFunctions lists the module's function imports.
func (m *Module) ImportedFunctions() []ImportedFunction {
	defs := m.compiled.ImportedFunctions()
	imports := make([]ImportedFunction, 0, len(defs))
	for _, def := range defs {
		modName, name, ok := def.Import()
		if !ok {
			continue
		}
		imports = append(imports, ImportedFunction{Module: modName, Name: name})
	}
	return imports
}

// UsesWASI reports whether the module imports from wasi_snapshot_preview1.
func (m *Module) UsesWASI() bool {
	for _, imp := range m.ImportedFunctions() {
		if imp.Module == wasi_snapshot_preview1.ModuleName {
			return true
		}
	}
	return false
}

// FuncSignature describes an exported function's declared signature.
type FuncSignature struct {
	Name    string
	Params  []wasmhost.ValueKind
	Results []wasmhost.ValueKind
}

// ExportedFunctions lists exported function signatures sorted by name.
// Functions with non-scalar signatures (reference types, v128) are skipped.
func (m *Module) ExportedFunctions() []FuncSignature {
	defs := m.compiled.ExportedFunctions()
	sigs := make([]FuncSignature, 0, len(defs))
	for name, def := range defs {
		sig := FuncSignature{Name: name}
		ok := true
		for _, vt := range def.ParamTypes() {
			kind, known := ValueKindOf(vt)
			if !known {
				ok = false
				break
			}
			sig.Params = append(sig.Params, kind)
		}
		for _, vt := range def.ResultTypes() {
			kind, known := ValueKindOf(vt)
			if !known {
				ok = false
				break
			}
			sig.Results = append(sig.Results, kind)
		}
		if ok {
			sigs = append(sigs, sig)
		}
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Name < sigs[j].Name })
	return sigs
}

// checkImports resolves every function import against the host modules
// instantiated in the runtime, aggregating all failures into one error.
// Resolution goes through ExportedFunctionDefinitions: wazero forbids
// calling ExportedFunction on host module instances.
func (m *Module) checkImports() error {
	var missing []errors.MissingImport
	hostExports := make(map[string]map[string]api.FunctionDefinition)
	for _, def := range m.compiled.ImportedFunctions() {
		modName, name, ok := def.Import()
		if !ok {
			continue
		}
		exports, seen := hostExports[modName]
		if !seen {
			if host := m.engine.runtime.Module(modName); host != nil {
				exports = host.ExportedFunctionDefinitions()
			}
			hostExports[modName] = exports
		}
		if _, found := exports[name]; !found {
			missing = append(missing, errors.MissingImport{Module: modName, Function: name})
		}
	}
	if len(missing) > 0 {
		return errors.Link(&errors.MissingImportsError{Imports: missing})
	}
	return nil
}

// InstanceConfig holds configuration for module instantiation
type InstanceConfig struct {
	// Name registers the instance under a module name. Empty means
	// anonymous, which allows many instances of the same module.
	Name string

	// ModuleConfig carries the WASI environment (args, env, stdio, mounts).
	// Nil means defaults: no args, no env, all I/O discarded.
	ModuleConfig wazero.ModuleConfig
}

// Instantiate links and instantiates the module. Imports are verified
// before instantiation so unsatisfied ones surface as a link error rather
// than a wazero instantiation failure. The start function is not run at
// instantiation; entry points are invoked explicitly. A reactor module's
// _initialize export, if present, is run before the instance is returned.
func (m *Module) Instantiate(ctx context.Context, cfg *InstanceConfig) (*Instance, error) {
	if cfg == nil {
		cfg = &InstanceConfig{}
	}

	if err := m.checkImports(); err != nil {
		return nil, err
	}

	mcfg := cfg.ModuleConfig
	if mcfg == nil {
		mcfg = wazero.NewModuleConfig()
	}
	mcfg = mcfg.WithName(cfg.Name).WithStartFunctions()

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, mcfg)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	inst := &Instance{module: m, mod: mod}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, wrapCallError("_initialize", err)
		}
	}

	return inst, nil
}

// Instance is an instantiated module.
type Instance struct {
	module *Module
	mod    api.Module
}

// GetExportedFunction returns the raw wazero api.Function, or nil if the
// name is not an exported function.
func (i *Instance) GetExportedFunction(name string) api.Function {
	return i.mod.ExportedFunction(name)
}

// HasExport reports whether name is exported at all, regardless of kind.
// Best effort: wazero's api.Module exposes no table accessor, so an
// exported table is indistinguishable from an absent name. Lookup errors
// for both cases match the same sentinel.
func (i *Instance) HasExport(name string) bool {
	if i.mod.ExportedFunction(name) != nil {
		return true
	}
	if i.mod.ExportedMemory(name) != nil {
		return true
	}
	return i.mod.ExportedGlobal(name) != nil
}

// Memory returns the instance's linear memory, or nil if the module
// defines none. The handle is bound after instantiation and stays valid
// for the instance's lifetime.
func (i *Instance) Memory() wasmhost.Memory {
	mem := i.mod.Memory()
	if mem == nil {
		return nil
	}
	return &memory{mem: mem}
}

func (i *Instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}

// wrapCallError converts a wazero call failure into a typed error.
// A guest exit with code zero is not a failure; it maps to nil.
func wrapCallError(function string, err error) error {
	var exitErr *sys.ExitError
	if stderrors.As(err, &exitErr) {
		if exitErr.ExitCode() == 0 {
			return nil
		}
		return errors.Exit(function, exitErr.ExitCode())
	}
	return errors.Trap(function, err)
}

// WrapCallError exposes trap classification to the runtime package.
func WrapCallError(function string, err error) error {
	return wrapCallError(function, err)
}

// ValueKindOf maps a wazero value type onto a scalar kind. Reference
// types and v128 report false.
func ValueKindOf(vt api.ValueType) (wasmhost.ValueKind, bool) {
	switch vt {
	case api.ValueTypeI32:
		return wasmhost.KindI32, true
	case api.ValueTypeI64:
		return wasmhost.KindI64, true
	case api.ValueTypeF32:
		return wasmhost.KindF32, true
	case api.ValueTypeF64:
		return wasmhost.KindF64, true
	default:
		return 0, false
	}
}
