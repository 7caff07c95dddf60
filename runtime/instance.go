package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"

	wasmhost "github.com/hostkit/wasm-host"
	"github.com/hostkit/wasm-host/engine"
	"github.com/hostkit/wasm-host/errors"
)

// Instance is an instantiated module. Exactly one instance exists per
// Instantiate call; its linkage is static and Invoke never mutates it, so
// a failed call leaves the instance usable.
type Instance struct {
	module         *Module
	engineInstance *engine.Instance
	memory         wasmhost.Memory
	mu             sync.Mutex
}

// Invoke calls the exported function name with args and returns its
// declared results. The argument count and kinds are checked against the
// function's declared signature before execution, so a mismatch produces
// no guest side effects. Calls on one instance are serialized; execution
// is synchronous and blocking, with no timeout of its own.
func (i *Instance) Invoke(ctx context.Context, name string, args []wasmhost.Value) ([]wasmhost.Value, error) {
	if i.engineInstance == nil {
		return nil, errors.NotInitialized(errors.PhaseCall, "instance")
	}

	fn := i.engineInstance.GetExportedFunction(name)
	if fn == nil {
		if i.engineInstance.HasExport(name) {
			return nil, errors.NotFunction(name)
		}
		return nil, errors.ExportNotFound(name)
	}

	def := fn.Definition()
	stack, err := lowerArgs(name, def, args)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	raw, callErr := fn.Call(ctx, stack...)
	i.mu.Unlock()
	if callErr != nil {
		return nil, engine.WrapCallError(name, callErr)
	}

	return liftResults(name, def, raw)
}

// lowerArgs validates args against the declared signature and encodes
// them onto a call stack.
func lowerArgs(name string, def api.FunctionDefinition, args []wasmhost.Value) ([]uint64, error) {
	paramTypes := def.ParamTypes()
	if len(args) != len(paramTypes) {
		return nil, errors.TypeMismatch(name,
			fmt.Sprintf("expected %d argument(s), got %d", len(paramTypes), len(args)))
	}

	if len(args) == 0 {
		return nil, nil
	}
	stack := make([]uint64, len(args))
	for idx, arg := range args {
		want, known := engine.ValueKindOf(paramTypes[idx])
		if !known {
			return nil, errors.New(errors.PhaseCall, errors.KindUnsupported).
				Function(name).
				Detail("parameter %d has a non-scalar type", idx).
				Build()
		}
		if arg.Kind() != want {
			return nil, errors.New(errors.PhaseCall, errors.KindTypeMismatch).
				Function(name).
				Detail("argument %d: expected %s, got %s", idx, want, arg.Kind()).
				Build()
		}
		stack[idx] = arg.Raw()
	}
	return stack, nil
}

// liftResults tags raw stack words with the declared result kinds.
func liftResults(name string, def api.FunctionDefinition, raw []uint64) ([]wasmhost.Value, error) {
	resultTypes := def.ResultTypes()
	if len(raw) == 0 {
		return nil, nil
	}

	results := make([]wasmhost.Value, len(raw))
	for idx, word := range raw {
		kind, known := engine.ValueKindOf(resultTypes[idx])
		if !known {
			return nil, errors.New(errors.PhaseCall, errors.KindUnsupported).
				Function(name).
				Detail("result %d has a non-scalar type", idx).
				Build()
		}
		results[idx] = wasmhost.FromRaw(kind, word)
	}
	return results, nil
}

// Memory returns the instance's linear memory handle, or nil if the
// module defines no memory.
func (i *Instance) Memory() wasmhost.Memory {
	return i.memory
}

func (i *Instance) Close(ctx context.Context) error {
	return i.engineInstance.Close(ctx)
}
