// Package wasi configures WASI preview1 environments.
//
// An Environment is a capability object: the syscall surface a module
// observes is exactly what the environment grants at link time. Host
// directories, stdio, clocks, and randomness are injected explicitly
// rather than inherited from the process.
//
//	env := wasi.New().
//		WithProgramName("hello").
//		WithArgs([]string{"-n", "3"}).
//		WithEnv(map[string]string{"LANG": "C"})
//
//	inst, err := mod.Instantiate(ctx, env)
//	// ...
//	fmt.Printf("%s", env.Stdout())
//
// The syscall implementations themselves come from wazero's
// wasi_snapshot_preview1 package; this package only shapes what they see.
package wasi
