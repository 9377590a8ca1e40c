package flash

import "bytes"

// Memory is a flash device backed by a byte slice. The slice
// covers the addresses [Base, Base+len(mem)).
type Memory struct {
	base        uint32
	mem         []byte
	regions     []Region
	protected   map[uint32]bool
	initialized bool
	// failWrites makes programming report ErrWriteFailed.
	failWrites bool
}

// NewMemory returns an uninitialized device over mem, mapped at
// base.
func NewMemory(base uint32, mem []byte) *Memory {
	return &Memory{
		base:      base,
		mem:       mem,
		regions:   []Region{{Base: base, Size: uint32(len(mem))}},
		protected: make(map[uint32]bool),
	}
}

// NewErased returns an initialized device of size bytes at
// base, with every byte erased.
func NewErased(base, size uint32) *Memory {
	mem := bytes.Repeat([]byte{Erased}, int(size))
	m := NewMemory(base, mem)
	m.initialized = true
	return m
}

func (m *Memory) Init() error {
	if len(m.mem) == 0 {
		return ErrInitFailed
	}
	m.initialized = true
	return nil
}

// Free returns the device to its uninitialized state.
func (m *Memory) Free() {
	m.initialized = false
}

// Regions returns the valid address ranges of the device.
func (m *Memory) Regions() []Region {
	return m.regions
}

// Protect locks the sector containing addr against erase and
// write.
func (m *Memory) Protect(addr uint32) {
	m.protected[sectorOf(addr)] = true
}

// Unprotect unlocks the sector containing addr.
func (m *Memory) Unprotect(addr uint32) {
	delete(m.protected, sectorOf(addr))
}

func (m *Memory) Read(addr uint32, buf []byte) error {
	if buf == nil || !validRange(m.regions, addr, uint32(len(buf))) {
		return ErrInvalidParam
	}
	if !m.initialized {
		return ErrNotInitialized
	}
	copy(buf, m.mem[addr-m.base:])
	return nil
}

func (m *Memory) EraseSectors(addr uint32, count uint32) error {
	if count == 0 {
		return ErrInvalidParam
	}
	if !m.initialized {
		return ErrNotInitialized
	}
	start := sectorOf(addr)
	if count > (^uint32(0)-start)/SectorSize || !validRange(m.regions, start, count*SectorSize) {
		return ErrInvalidParam
	}
	for i := range count {
		s := start + i*SectorSize
		if m.protected[s] {
			return ErrSectorProtected
		}
		off := s - m.base
		sector := m.mem[off : off+SectorSize]
		for j := range sector {
			sector[j] = Erased
		}
	}
	return nil
}

func (m *Memory) Write(addr uint32, data []byte) error {
	if data == nil || !validRange(m.regions, addr, uint32(len(data))) {
		return ErrInvalidParam
	}
	if !m.initialized {
		return ErrNotInitialized
	}
	first := sectorOf(addr)
	last := sectorOf(addr + uint32(len(data)) - 1)
	if err := m.EraseSectors(addr, (last-first)/SectorSize+1); err != nil {
		return ErrEraseFailed
	}
	if m.failWrites {
		return ErrWriteFailed
	}
	off := addr - m.base
	copy(m.mem[off:], data)
	if !bytes.Equal(m.mem[off:off+uint32(len(data))], data) {
		return ErrVerifyFailed
	}
	return nil
}

// Bytes returns the backing memory.
func (m *Memory) Bytes() []byte {
	return m.mem
}

func sectorOf(addr uint32) uint32 {
	return addr &^ (SectorSize - 1)
}
