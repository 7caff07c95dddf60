package wasmbin

// Fixture modules used by tests across the repository. Each builder returns
// a complete core module binary.

// AddOne returns a module exporting f(i32) -> i32 that adds one.
func AddOne() []byte {
	b := NewModule()
	t := b.Type([]byte{TypeI32}, []byte{TypeI32})
	f := b.Func(t, NewBody().LocalGet(0).I32Const(1).I32Add().Bytes())
	b.ExportFunc("f", f)
	return b.Build()
}

// Add returns a module exporting add(i32, i32) -> i32.
func Add() []byte {
	b := NewModule()
	t := b.Type([]byte{TypeI32, TypeI32}, []byte{TypeI32})
	f := b.Func(t, NewBody().LocalGet(0).LocalGet(1).I32Add().Bytes())
	b.ExportFunc("add", f)
	return b.Build()
}

// AddWithTable returns a module exporting add(i32, i32) -> i32 alongside a
// funcref table exported as "tbl".
func AddWithTable() []byte {
	b := NewModule()
	t := b.Type([]byte{TypeI32, TypeI32}, []byte{TypeI32})
	f := b.Func(t, NewBody().LocalGet(0).LocalGet(1).I32Add().Bytes())
	b.Table(1)
	b.ExportFunc("add", f)
	b.ExportTable("tbl")
	return b.Build()
}

// IdentityF64 returns a module exporting id(f64) -> f64.
func IdentityF64() []byte {
	b := NewModule()
	t := b.Type([]byte{TypeF64}, []byte{TypeF64})
	f := b.Func(t, NewBody().LocalGet(0).Bytes())
	b.ExportFunc("id", f)
	return b.Build()
}

// Trap returns a module exporting boom() that executes unreachable.
func Trap() []byte {
	b := NewModule()
	t := b.Type(nil, nil)
	f := b.Func(t, NewBody().Unreachable().Bytes())
	b.ExportFunc("boom", f)
	return b.Build()
}

// MissingImport returns a module importing host.missing, which no host
// module provides.
func MissingImport() []byte {
	b := NewModule()
	t := b.Type(nil, nil)
	imp := b.ImportFunc("host", "missing", t)
	f := b.Func(t, NewBody().Call(imp).Bytes())
	b.ExportFunc("go", f)
	return b.Build()
}

// Memory layout of the hello fixture: the iovec lives at 0, the nwritten
// cell at 8, and the message bytes at 64.
const (
	helloIovec    = 0
	helloNWritten = 8
	helloMessage  = 64
)

// Hello returns a WASI command module whose _start writes msg to stdout
// via fd_write.
func Hello(msg string) []byte {
	b := NewModule()
	fdWriteType := b.Type([]byte{TypeI32, TypeI32, TypeI32, TypeI32}, []byte{TypeI32})
	startType := b.Type(nil, nil)

	fdWrite := b.ImportFunc("wasi_snapshot_preview1", "fd_write", fdWriteType)

	body := NewBody().
		I32Const(helloIovec).I32Const(helloMessage).I32Store(2, 0).
		I32Const(helloIovec + 4).I32Const(int32(len(msg))).I32Store(2, 0).
		I32Const(1).            // fd: stdout
		I32Const(helloIovec).   // *iovs
		I32Const(1).            // iovs_len
		I32Const(helloNWritten) // *nwritten
	body.Call(fdWrite).Drop()

	start := b.Func(startType, body.Bytes())
	b.Memory(1)
	b.ExportMemory("memory")
	b.ExportFunc("_start", start)
	b.Data(helloMessage, []byte(msg))
	return b.Build()
}

// Exit returns a WASI command module whose _start calls proc_exit(code).
func Exit(code int32) []byte {
	b := NewModule()
	procExitType := b.Type([]byte{TypeI32}, nil)
	startType := b.Type(nil, nil)

	procExit := b.ImportFunc("wasi_snapshot_preview1", "proc_exit", procExitType)

	start := b.Func(startType, NewBody().I32Const(code).Call(procExit).Bytes())
	b.Memory(1)
	b.ExportMemory("memory")
	b.ExportFunc("_start", start)
	return b.Build()
}
