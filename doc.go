// Package wasmhost provides a small host wrapper for running core
// WebAssembly modules on top of the wazero runtime.
//
// The wrapper loads a compiled module from disk, optionally provisions a
// WASI preview1 environment, links the module's imports, instantiates it,
// and invokes exported functions by name with tagged scalar arguments.
// Compilation, validation, sandboxing, linear memory, and WASI syscall
// emulation are all delegated to wazero.
//
// # Architecture Overview
//
//	wasmhost/       Root package with Value and Memory types
//	├── runtime/    High-level API for loading and invoking modules
//	├── engine/     Low-level wazero integration
//	├── wasi/       WASI preview1 environment configuration
//	├── errors/     Structured error types
//	└── cmd/run/    CLI for running modules from the shell
//
// # Quick Start
//
// Load a module and call an exported function:
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.Load(ctx, "module.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	results, err := inst.Invoke(ctx, "f", []wasmhost.Value{wasmhost.I32(41)})
//	fmt.Println(results[0].I32()) // 42
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Invoke calls on a single
// Instance are serialized internally; the instance executes at most one
// guest function at a time.
//
// # Lifetime
//
// The Runtime owns the engine state every instance executes against, so it
// must outlive all instances created from its modules. Close instances
// first, then the runtime.
package wasmhost
