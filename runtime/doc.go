// Package runtime provides the high-level API for loading and invoking
// core WebAssembly modules.
//
// # Quick Start
//
//	ctx := context.Background()
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
//
// # WASI
//
// Modules importing wasi_snapshot_preview1 get their environment from a
// wasi.Environment passed to Instantiate:
//
//	env := wasi.New().WithArgs([]string{"input.txt"}).WithStdin(data)
//	inst, err := mod.Instantiate(ctx, env)
//	// ...
//	fmt.Printf("%s", env.Stdout())
//
// # Instantiation Order
//
// Instantiate follows a fixed order: compile (done at Load), build the
// environment, register the WASI host module, verify imports, instantiate,
// bind the memory handle. Unsatisfied imports therefore fail with a link
// error before any instantiation work happens.
//
// # Errors
//
// Every failure carries a phase and kind from the errors package; match
// categories with the standard errors.Is against the exported sentinels
// (errors.ErrLoad, errors.ErrCompile, errors.ErrLink,
// errors.ErrExportNotFound, errors.ErrTypeMismatch, errors.ErrTrap).
// Nothing is retried.
package runtime
