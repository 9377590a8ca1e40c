// Package flash implements the flash memory interface of the
// bootloader: a closed set of error codes, address validation
// and devices backed by host memory, a memory-mapped image file
// or the microcontroller's code flash.
package flash

import "fmt"

// Reader reads flash contents. It is the only part of the
// interface the boot path needs.
type Reader interface {
	Read(addr uint32, buf []byte) error
}

// Device is a flash memory with erase-before-write semantics.
type Device interface {
	Reader
	Init() error
	// Write erases the sectors covered by data, programs
	// data and verifies the result.
	Write(addr uint32, data []byte) error
	EraseSectors(addr uint32, count uint32) error
}

// Region is a contiguous range of flash addresses.
type Region struct {
	Base uint32
	Size uint32
}

// End returns the last address of the region.
func (r Region) End() uint32 {
	return r.Base + r.Size - 1
}

// Span returns the smallest region covering regions.
func Span(regions []Region) Region {
	if len(regions) == 0 {
		return Region{}
	}
	lo, hi := regions[0].Base, regions[0].End()
	for _, r := range regions[1:] {
		lo = min(lo, r.Base)
		hi = max(hi, r.End())
	}
	return Region{Base: lo, Size: hi - lo + 1}
}

func (r Region) String() string {
	return fmt.Sprintf("[%#08x, %#08x]", r.Base, r.End())
}

const (
	// SectorSize is the erase granularity.
	SectorSize = 8192
	// Erased is the value of an erased flash byte.
	Erased = 0xff
)

// Code flash of the S32K312: two 1 MiB blocks.
var (
	CodeBlock0 = Region{Base: 0x00400000, Size: 0x100000}
	CodeBlock1 = Region{Base: 0x00500000, Size: 0x100000}
)

// validRange reports whether [addr, addr+size) is a non-empty,
// word aligned range inside one of regions.
func validRange(regions []Region, addr, size uint32) bool {
	if size == 0 || addr > ^uint32(0)-size {
		return false
	}
	if addr%4 != 0 || size%4 != 0 {
		return false
	}
	end := addr + size - 1
	for _, r := range regions {
		if addr >= r.Base && end <= r.End() {
			return true
		}
	}
	return false
}
