package runtime

import (
	"context"

	"go.uber.org/zap"

	wasmhost "github.com/hostkit/wasm-host"
	"github.com/hostkit/wasm-host/engine"
	"github.com/hostkit/wasm-host/wasi"
)

// Module is a compiled module ready for instantiation.
type Module struct {
	runtime      *Runtime
	engineModule *engine.Module
}

// Export describes one exported function: its name and declared signature.
type Export struct {
	Name    string
	Params  []wasmhost.ValueKind
	Results []wasmhost.ValueKind
}

// Exports lists the module's exported functions sorted by name.
func (m *Module) Exports() []Export {
	sigs := m.engineModule.ExportedFunctions()
	exports := make([]Export, len(sigs))
	for i, sig := range sigs {
		exports[i] = Export{Name: sig.Name, Params: sig.Params, Results: sig.Results}
	}
	return exports
}

// UsesWASI reports whether the module imports WASI preview1 functions.
func (m *Module) UsesWASI() bool {
	return m.engineModule.UsesWASI()
}

// Instantiate links the module against its environment and returns a
// runnable instance. The order is fixed: the module is already compiled;
// the environment is lowered to a module configuration; the WASI host
// module is registered when the module imports it; every import is
// verified (unsatisfied ones fail with a link error); the module is
// instantiated; the memory handle is bound to the instance.
//
// A nil env provisions a default environment when the module needs WASI
// and skips WASI registration entirely when it does not.
func (m *Module) Instantiate(ctx context.Context, env *wasi.Environment) (*Instance, error) {
	cfg := &engine.InstanceConfig{}
	if env != nil {
		cfg.ModuleConfig = env.ModuleConfig()
	}

	if m.engineModule.UsesWASI() {
		if err := m.runtime.engine.InstantiateWASI(ctx); err != nil {
			return nil, err
		}
	}

	engineInstance, err := m.engineModule.Instantiate(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m.runtime.logger.Debug("module instantiated", zap.Bool("wasi", m.engineModule.UsesWASI()))

	return &Instance{
		module:         m,
		engineInstance: engineInstance,
		memory:         engineInstance.Memory(),
	}, nil
}
