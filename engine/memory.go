package engine

import (
	"github.com/tetratelabs/wazero/api"

	wasmhost "github.com/hostkit/wasm-host"
	"github.com/hostkit/wasm-host/errors"
)

// memory adapts wazero's api.Memory to the root Memory interface.
type memory struct {
	mem api.Memory
}

var _ wasmhost.Memory = (*memory)(nil)
var _ wasmhost.MemorySizer = (*memory)(nil)

func oob(offset, length uint32) error {
	return errors.New(errors.PhaseCall, errors.KindOutOfBounds).
		Detail("memory access at %d..%d out of range", offset, uint64(offset)+uint64(length)).
		Build()
}

func (m *memory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, oob(offset, length)
	}
	return data, nil
}

func (m *memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return oob(offset, uint32(len(data)))
	}
	return nil
}

func (m *memory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, oob(offset, 1)
	}
	return v, nil
}

func (m *memory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, oob(offset, 2)
	}
	return v, nil
}

func (m *memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, oob(offset, 4)
	}
	return v, nil
}

func (m *memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, oob(offset, 8)
	}
	return v, nil
}

func (m *memory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return oob(offset, 1)
	}
	return nil
}

func (m *memory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return oob(offset, 2)
	}
	return nil
}

func (m *memory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return oob(offset, 4)
	}
	return nil
}

func (m *memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return oob(offset, 8)
	}
	return nil
}

func (m *memory) Size() uint32 {
	return m.mem.Size()
}
