package wasmbin

// Core value type encodings from the WebAssembly binary format.
const (
	TypeI32 byte = 0x7f
	TypeI64 byte = 0x7e
	TypeF32 byte = 0x7d
	TypeF64 byte = 0x7c
)

// Section IDs.
const (
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionTable    byte = 4
	sectionMemory   byte = 5
	sectionExport   byte = 7
	sectionCode     byte = 10
	sectionData     byte = 11
)

// Export kinds.
const (
	exportFunc   byte = 0
	exportTable  byte = 1
	exportMemory byte = 2
)

type funcType struct {
	params  []byte
	results []byte
}

type funcImport struct {
	module  string
	name    string
	typeIdx uint32
}

type function struct {
	typeIdx uint32
	body    []byte
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type dataSegment struct {
	offset int32
	data   []byte
}

// ModuleBuilder assembles a core WebAssembly module binary section by
// section. Imported functions occupy the front of the function index space,
// so declare all imports before any local function.
type ModuleBuilder struct {
	types    []funcType
	imports  []funcImport
	funcs    []function
	exports  []export
	data     []dataSegment
	memPages uint32
	hasMem   bool
	tableMin uint32
	hasTable bool
}

func NewModule() *ModuleBuilder {
	return &ModuleBuilder{}
}

// Type registers a function type and returns its index.
func (b *ModuleBuilder) Type(params, results []byte) uint32 {
	b.types = append(b.types, funcType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

// ImportFunc declares a function import and returns its function index.
func (b *ModuleBuilder) ImportFunc(module, name string, typeIdx uint32) uint32 {
	b.imports = append(b.imports, funcImport{module: module, name: name, typeIdx: typeIdx})
	return uint32(len(b.imports) - 1)
}

// Func declares a local function with the given body (without the trailing
// end opcode) and returns its function index.
func (b *ModuleBuilder) Func(typeIdx uint32, body []byte) uint32 {
	b.funcs = append(b.funcs, function{typeIdx: typeIdx, body: body})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// Table declares a funcref table with the given minimum element count.
func (b *ModuleBuilder) Table(min uint32) {
	b.tableMin = min
	b.hasTable = true
}

// Memory declares a linear memory with the given minimum page count.
func (b *ModuleBuilder) Memory(minPages uint32) {
	b.memPages = minPages
	b.hasMem = true
}

// ExportFunc exports the function at idx under name.
func (b *ModuleBuilder) ExportFunc(name string, idx uint32) {
	b.exports = append(b.exports, export{name: name, kind: exportFunc, idx: idx})
}

// ExportTable exports table 0 under name.
func (b *ModuleBuilder) ExportTable(name string) {
	b.exports = append(b.exports, export{name: name, kind: exportTable, idx: 0})
}

// ExportMemory exports memory 0 under name.
func (b *ModuleBuilder) ExportMemory(name string) {
	b.exports = append(b.exports, export{name: name, kind: exportMemory, idx: 0})
}

// Data places bytes at a fixed offset in memory 0.
func (b *ModuleBuilder) Data(offset int32, data []byte) {
	b.data = append(b.data, dataSegment{offset: offset, data: data})
}

func (b *ModuleBuilder) section(w *Writer, id byte, payload *Writer) {
	w.Byte(id)
	w.WriteU32(uint32(payload.Len()))
	w.WriteBytes(payload.Bytes())
}

// Build encodes the module.
func (b *ModuleBuilder) Build() []byte {
	w := NewWriter()
	w.WriteBytes([]byte{0x00, 0x61, 0x73, 0x6d}) // magic
	w.WriteU32LE(1)                              // version

	if len(b.types) > 0 {
		p := NewWriter()
		p.WriteU32(uint32(len(b.types)))
		for _, t := range b.types {
			p.Byte(0x60)
			p.WriteU32(uint32(len(t.params)))
			p.WriteBytes(t.params)
			p.WriteU32(uint32(len(t.results)))
			p.WriteBytes(t.results)
		}
		b.section(w, sectionType, p)
	}

	if len(b.imports) > 0 {
		p := NewWriter()
		p.WriteU32(uint32(len(b.imports)))
		for _, imp := range b.imports {
			p.WriteName(imp.module)
			p.WriteName(imp.name)
			p.Byte(exportFunc)
			p.WriteU32(imp.typeIdx)
		}
		b.section(w, sectionImport, p)
	}

	if len(b.funcs) > 0 {
		p := NewWriter()
		p.WriteU32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			p.WriteU32(f.typeIdx)
		}
		b.section(w, sectionFunction, p)
	}

	if b.hasTable {
		p := NewWriter()
		p.WriteU32(1)
		p.Byte(0x70) // funcref
		p.Byte(0x00) // limits: min only
		p.WriteU32(b.tableMin)
		b.section(w, sectionTable, p)
	}

	if b.hasMem {
		p := NewWriter()
		p.WriteU32(1)
		p.Byte(0x00) // limits: min only
		p.WriteU32(b.memPages)
		b.section(w, sectionMemory, p)
	}

	if len(b.exports) > 0 {
		p := NewWriter()
		p.WriteU32(uint32(len(b.exports)))
		for _, e := range b.exports {
			p.WriteName(e.name)
			p.Byte(e.kind)
			p.WriteU32(e.idx)
		}
		b.section(w, sectionExport, p)
	}

	if len(b.funcs) > 0 {
		p := NewWriter()
		p.WriteU32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			body := NewWriter()
			body.WriteU32(0) // no local declarations
			body.WriteBytes(f.body)
			body.Byte(0x0b) // end
			p.WriteU32(uint32(body.Len()))
			p.WriteBytes(body.Bytes())
		}
		b.section(w, sectionCode, p)
	}

	if len(b.data) > 0 {
		p := NewWriter()
		p.WriteU32(uint32(len(b.data)))
		for _, seg := range b.data {
			p.Byte(0x00) // active segment, memory 0
			p.Byte(0x41) // i32.const
			p.WriteS32(seg.offset)
			p.Byte(0x0b) // end
			p.WriteU32(uint32(len(seg.data)))
			p.WriteBytes(seg.data)
		}
		b.section(w, sectionData, p)
	}

	return w.Bytes()
}

// Body assembles a function body instruction by instruction.
type Body struct {
	w *Writer
}

func NewBody() *Body {
	return &Body{w: NewWriter()}
}

func (b *Body) Bytes() []byte { return b.w.Bytes() }

func (b *Body) Unreachable() *Body {
	b.w.Byte(0x00)
	return b
}

func (b *Body) Drop() *Body {
	b.w.Byte(0x1a)
	return b
}

func (b *Body) LocalGet(idx uint32) *Body {
	b.w.Byte(0x20)
	b.w.WriteU32(idx)
	return b
}

func (b *Body) I32Const(v int32) *Body {
	b.w.Byte(0x41)
	b.w.WriteS32(v)
	return b
}

func (b *Body) I64Const(v int64) *Body {
	b.w.Byte(0x42)
	b.w.WriteS64(v)
	return b
}

func (b *Body) I32Add() *Body {
	b.w.Byte(0x6a)
	return b
}

func (b *Body) I64Add() *Body {
	b.w.Byte(0x7c)
	return b
}

// I32Store writes an i32 store with the given alignment exponent and offset.
func (b *Body) I32Store(align, offset uint32) *Body {
	b.w.Byte(0x36)
	b.w.WriteU32(align)
	b.w.WriteU32(offset)
	return b
}

func (b *Body) Call(funcIdx uint32) *Body {
	b.w.Byte(0x10)
	b.w.WriteU32(funcIdx)
	return b
}
