package runtime

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	wasmhost "github.com/hostkit/wasm-host"
	"github.com/hostkit/wasm-host/errors"
	"github.com/hostkit/wasm-host/internal/wasmbin"
	"github.com/hostkit/wasm-host/wasi"
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := New(ctx)
	if err != nil {
		t.Fatalf("create runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestRuntime_LoadMissingPath(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mod, err := rt.Load(ctx, filepath.Join(t.TempDir(), "nope.wasm"))
	if err == nil {
		t.Fatal("expected load error")
	}
	if !stderrors.Is(err, errors.ErrLoad) {
		t.Errorf("error %v does not match ErrLoad", err)
	}
	if mod != nil {
		t.Error("failed load must not return a module")
	}
}

func TestRuntime_LoadInvalidBytes(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	path := writeFixture(t, "garbage.wasm", []byte("these are not module bytes"))
	_, err := rt.Load(ctx, path)
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !stderrors.Is(err, errors.ErrCompile) {
		t.Errorf("error %v does not match ErrCompile", err)
	}
	if stderrors.Is(err, errors.ErrLoad) {
		t.Error("unreadable path and invalid bytes must be distinct errors")
	}
}

func TestInstance_InvokeAddOne(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	path := writeFixture(t, "addone.wasm", wasmbin.AddOne())
	mod, err := rt.Load(ctx, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	for _, n := range []int32{41, 0, -1, -42, 2147483646, -2147483648} {
		results, err := inst.Invoke(ctx, "f", []wasmhost.Value{wasmhost.I32(n)})
		if err != nil {
			t.Fatalf("invoke f(%d): %v", n, err)
		}
		if len(results) != 1 {
			t.Fatalf("f(%d) returned %d results, want 1", n, len(results))
		}
		if got := results[0].I32(); got != n+1 {
			t.Errorf("f(%d) = %d, want %d", n, got, n+1)
		}
		if results[0].Kind() != wasmhost.KindI32 {
			t.Errorf("f(%d) result kind = %s, want i32", n, results[0].Kind())
		}
	}
}

func TestInstance_InvokeF64(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mod, err := rt.LoadBytes(ctx, wasmbin.IdentityF64())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	results, err := inst.Invoke(ctx, "id", []wasmhost.Value{wasmhost.F64(3.5)})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := results[0].F64(); got != 3.5 {
		t.Errorf("id(3.5) = %v", got)
	}
}

func TestInstance_ExportNotFound(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mod, err := rt.LoadBytes(ctx, wasmbin.Add())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	_, err = inst.Invoke(ctx, "no_such_export", nil)
	if err == nil {
		t.Fatal("expected lookup error")
	}
	if !stderrors.Is(err, errors.ErrExportNotFound) {
		t.Errorf("error %v does not match ErrExportNotFound", err)
	}

	// The failed lookup must not disturb the instance.
	results, err := inst.Invoke(ctx, "add", []wasmhost.Value{wasmhost.I32(2), wasmhost.I32(3)})
	if err != nil {
		t.Fatalf("invoke after failed lookup: %v", err)
	}
	if results[0].I32() != 5 {
		t.Errorf("add(2, 3) = %d, want 5", results[0].I32())
	}
}

func TestInstance_InvokeNonFunctionExport(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mod, err := rt.LoadBytes(ctx, wasmbin.Hello("hi\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	_, err = inst.Invoke(ctx, "memory", nil)
	if err == nil {
		t.Fatal("expected lookup error for memory export")
	}
	var typed *errors.Error
	if !stderrors.As(err, &typed) || typed.Kind != errors.KindNotFunction {
		t.Errorf("error %v is not a not_function lookup error", err)
	}
	// Both lookup failures match the one sentinel callers are told to use.
	if !stderrors.Is(err, errors.ErrExportNotFound) {
		t.Errorf("error %v does not match ErrExportNotFound", err)
	}
}

func TestInstance_InvokeTableExport(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mod, err := rt.LoadBytes(ctx, wasmbin.AddWithTable())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	_, err = inst.Invoke(ctx, "tbl", nil)
	if err == nil {
		t.Fatal("expected lookup error for table export")
	}
	if !stderrors.Is(err, errors.ErrExportNotFound) {
		t.Errorf("error %v does not match ErrExportNotFound", err)
	}

	results, err := inst.Invoke(ctx, "add", []wasmhost.Value{wasmhost.I32(20), wasmhost.I32(22)})
	if err != nil {
		t.Fatalf("invoke add: %v", err)
	}
	if results[0].I32() != 42 {
		t.Errorf("add(20, 22) = %d, want 42", results[0].I32())
	}
}

func TestInstance_TypeMismatch(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mod, err := rt.LoadBytes(ctx, wasmbin.Add())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	tests := []struct {
		name string
		args []wasmhost.Value
	}{
		{"too few", []wasmhost.Value{wasmhost.I32(1)}},
		{"too many", []wasmhost.Value{wasmhost.I32(1), wasmhost.I32(2), wasmhost.I32(3)}},
		{"wrong kind", []wasmhost.Value{wasmhost.I32(1), wasmhost.F64(2)}},
		{"no args", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inst.Invoke(ctx, "add", tt.args)
			if !stderrors.Is(err, errors.ErrTypeMismatch) {
				t.Errorf("error %v does not match ErrTypeMismatch", err)
			}
		})
	}
}

func TestInstance_TypeMismatchHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	env := wasi.New()
	mod, err := rt.LoadBytes(ctx, wasmbin.Hello("Hello, world!\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx, env)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	_, err = inst.Invoke(ctx, "_start", []wasmhost.Value{wasmhost.I32(1)})
	if !stderrors.Is(err, errors.ErrTypeMismatch) {
		t.Fatalf("error %v does not match ErrTypeMismatch", err)
	}
	if len(env.Stdout()) != 0 {
		t.Errorf("rejected call produced output: %q", env.Stdout())
	}

	// The same instance still runs normally afterwards.
	if _, err := inst.Invoke(ctx, "_start", nil); err != nil {
		t.Fatalf("invoke after rejected call: %v", err)
	}
	if got := string(env.Stdout()); got != "Hello, world!\n" {
		t.Errorf("stdout = %q, want %q", got, "Hello, world!\n")
	}
}

func TestInstance_HelloWorld(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	env := wasi.New()
	path := writeFixture(t, "hello.wasm", wasmbin.Hello("Hello, world!\n"))
	mod, err := rt.Load(ctx, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx, env)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	// Instantiation must not run the entry point.
	if len(env.Stdout()) != 0 {
		t.Fatalf("instantiation already produced output: %q", env.Stdout())
	}

	results, err := inst.Invoke(ctx, "_start", nil)
	if err != nil {
		t.Fatalf("invoke _start: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("_start returned %d results, want none", len(results))
	}
	if got := string(env.Stdout()); got != "Hello, world!\n" {
		t.Errorf("stdout = %q, want %q", got, "Hello, world!\n")
	}
	if n := bytes.Count(env.Stdout(), []byte("Hello")); n != 1 {
		t.Errorf("greeting written %d times, want exactly once", n)
	}
}

func TestInstance_Trap(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mod, err := rt.LoadBytes(ctx, wasmbin.Trap())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	_, err = inst.Invoke(ctx, "boom", nil)
	if err == nil {
		t.Fatal("expected trap error")
	}
	if !stderrors.Is(err, errors.ErrTrap) {
		t.Errorf("error %v does not match ErrTrap", err)
	}
}

func TestInstance_ProcExit(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	t.Run("nonzero code is a trap carrying the code", func(t *testing.T) {
		mod, err := rt.LoadBytes(ctx, wasmbin.Exit(3))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		inst, err := mod.Instantiate(ctx, nil)
		if err != nil {
			t.Fatalf("instantiate: %v", err)
		}
		defer inst.Close(ctx)

		_, err = inst.Invoke(ctx, "_start", nil)
		if !stderrors.Is(err, errors.ErrTrap) {
			t.Fatalf("error %v does not match ErrTrap", err)
		}
		var typed *errors.Error
		if !stderrors.As(err, &typed) || !typed.Exited || typed.ExitCode != 3 {
			t.Errorf("error %v does not carry exit code 3", err)
		}
	})

	t.Run("zero code is success", func(t *testing.T) {
		mod, err := rt.LoadBytes(ctx, wasmbin.Exit(0))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		inst, err := mod.Instantiate(ctx, nil)
		if err != nil {
			t.Fatalf("instantiate: %v", err)
		}
		defer inst.Close(ctx)

		results, err := inst.Invoke(ctx, "_start", nil)
		if err != nil {
			t.Fatalf("invoke: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("got %d results, want none", len(results))
		}
	})
}

func TestModule_InstantiateMissingImport(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mod, err := rt.LoadBytes(ctx, wasmbin.MissingImport())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	_, err = mod.Instantiate(ctx, nil)
	if err == nil {
		t.Fatal("expected link error")
	}
	if !stderrors.Is(err, errors.ErrLink) {
		t.Errorf("error %v does not match ErrLink", err)
	}
}

func TestModule_Exports(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mod, err := rt.LoadBytes(ctx, wasmbin.Add())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	exports := mod.Exports()
	if len(exports) != 1 {
		t.Fatalf("expected 1 export, got %d", len(exports))
	}
	e := exports[0]
	if e.Name != "add" {
		t.Errorf("name = %q", e.Name)
	}
	if len(e.Params) != 2 || e.Params[0] != wasmhost.KindI32 || e.Params[1] != wasmhost.KindI32 {
		t.Errorf("params = %v", e.Params)
	}
	if len(e.Results) != 1 || e.Results[0] != wasmhost.KindI32 {
		t.Errorf("results = %v", e.Results)
	}
}

func TestModule_MultipleInstances(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mod, err := rt.LoadBytes(ctx, wasmbin.AddOne())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	a, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate first: %v", err)
	}
	defer a.Close(ctx)

	b, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate second: %v", err)
	}
	defer b.Close(ctx)

	for _, inst := range []*Instance{a, b} {
		results, err := inst.Invoke(ctx, "f", []wasmhost.Value{wasmhost.I32(1)})
		if err != nil {
			t.Fatalf("invoke: %v", err)
		}
		if results[0].I32() != 2 {
			t.Errorf("f(1) = %d", results[0].I32())
		}
	}
}

func TestInstance_Memory(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	msg := "Hello, world!\n"
	mod, err := rt.LoadBytes(ctx, wasmbin.Hello(msg))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx, wasi.New())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	mem := inst.Memory()
	if mem == nil {
		t.Fatal("expected a bound memory handle")
	}

	// The data segment is initialized at instantiation.
	data, err := mem.Read(64, uint32(len(msg)))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != msg {
		t.Errorf("memory at 64 = %q, want %q", data, msg)
	}
}

func TestInstance_ConcurrentInvokes(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mod, err := rt.LoadBytes(ctx, wasmbin.Add())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	const goroutines = 8
	const calls = 50

	errCh := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		go func(base int32) {
			for i := int32(0); i < calls; i++ {
				results, err := inst.Invoke(ctx, "add", []wasmhost.Value{
					wasmhost.I32(base),
					wasmhost.I32(i),
				})
				if err != nil {
					errCh <- err
					return
				}
				if results[0].I32() != base+i {
					errCh <- stderrors.New("wrong sum")
					return
				}
			}
			errCh <- nil
		}(int32(g * 1000))
	}

	for g := 0; g < goroutines; g++ {
		if err := <-errCh; err != nil {
			t.Fatalf("concurrent invoke: %v", err)
		}
	}
}
