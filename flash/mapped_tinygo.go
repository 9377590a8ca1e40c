//go:build tinygo && cortexm

package flash

import "unsafe"

// Mapped reads the microcontroller's memory mapped code flash.
// Programming is left to the flashing tool; Write and
// EraseSectors report ErrNotSupported.
type Mapped struct {
	regions     []Region
	initialized bool
}

func NewMapped(regions ...Region) *Mapped {
	return &Mapped{regions: regions}
}

func (m *Mapped) Init() error {
	if len(m.regions) == 0 {
		return ErrInitFailed
	}
	m.initialized = true
	return nil
}

func (m *Mapped) Read(addr uint32, buf []byte) error {
	if buf == nil || !validRange(m.regions, addr, uint32(len(buf))) {
		return ErrInvalidParam
	}
	if !m.initialized {
		return ErrNotInitialized
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), len(buf))
	copy(buf, src)
	return nil
}

func (m *Mapped) Write(addr uint32, data []byte) error {
	return ErrNotSupported
}

func (m *Mapped) EraseSectors(addr uint32, count uint32) error {
	return ErrNotSupported
}
