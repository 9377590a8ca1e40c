//go:build tinygo && cortexm

package cortexm

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"

	"easyboot.dev/boot"
)

type nvic struct {
	ISER [16]volatile.Register32
	_    [16]uint32
	ICER [16]volatile.Register32
	_    [16]uint32
	ISPR [16]volatile.Register32
	_    [16]uint32
	ICPR [16]volatile.Register32
}

type scb struct {
	CPUID volatile.Register32
	ICSR  volatile.Register32
	VTOR  volatile.Register32
}

var (
	nvicRegs = (*nvic)(unsafe.Pointer(uintptr(NVICBase)))
	scbRegs  = (*scb)(unsafe.Pointer(uintptr(SCBBase)))
)

// Core is the running core. The zero value is ready to use.
type Core struct {
	msp uint32
}

func (c *Core) DisableInterrupts() {
	arm.Asm("cpsid i")
}

func (c *Core) EnableInterrupts() {
	arm.Asm("cpsie i")
}

func (c *Core) ReadWord(addr uint32) uint32 {
	return volatile.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr))))
}

func (c *Core) DisableIRQs() {
	for i := range NVICBanks {
		nvicRegs.ICER[i].Set(0xFFFFFFFF)
	}
	arm.Asm("dsb")
	arm.Asm("isb")
}

func (c *Core) ClearPendingIRQs() {
	for i := range NVICBanks {
		nvicRegs.ICPR[i].Set(0xFFFFFFFF)
	}
}

func (c *Core) SetVectorTable(addr uint32) {
	scbRegs.VTOR.Set(addr)
	arm.Asm("dsb")
	arm.Asm("isb")
}

// SetMainStackPointer records sp for Jump. The main stack is the
// one Go code runs on, so it is switched in the same instruction
// sequence as the branch.
func (c *Core) SetMainStackPointer(sp uint32) {
	c.msp = sp
}

func (c *Core) SetProcessStackPointer(sp uint32) {
	arm.AsmFull("msr psp, {sp}", map[string]interface{}{
		"sp": sp,
	})
}

// Jump loads the main stack pointer and branches to entry in
// Thumb state.
func (c *Core) Jump(entry uint32) {
	arm.AsmFull(`
		msr msp, {sp}
		dsb
		isb
		bx {entry}
	`, map[string]interface{}{
		"sp":    c.msp,
		"entry": entry | 1,
	})
}

var _ boot.Hardware = (*Core)(nil)
