// Package sim simulates the parts of a Cortex-M core that the
// boot transfer touches: the interrupt mask, the interrupt
// controller, the vector table base and the stack pointers. Every
// register access is recorded in an ordered trace.
package sim

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"strings"
	"time"

	"easyboot.dev/boot"
	"easyboot.dev/flash"
	"easyboot.dev/indicator"
)

// NVICBanks is the number of 32-line banks of the interrupt
// controller.
const NVICBanks = 8

type OpKind int

const (
	OpDisableInterrupts OpKind = iota
	OpEnableInterrupts
	OpRead
	OpDisableIRQs
	OpClearPendingIRQs
	OpSetVectorTable
	OpSetMSP
	OpSetPSP
	OpJump
	// OpInterrupt is an interrupt taken by the core.
	OpInterrupt
	OpState
	OpFail
	// OpWatchdogReset is a reset by a watchdog fed too late.
	OpWatchdogReset
)

// Op is a recorded register access.
type Op struct {
	Kind  OpKind
	Addr  uint32
	Value uint32
	// State is the entered state of an OpState.
	State boot.State
	// Severity of an OpFail.
	Severity indicator.Severity
	// Unmapped marks a read outside flash and RAM.
	Unmapped bool
}

func (o Op) String() string {
	switch o.Kind {
	case OpDisableInterrupts:
		return "cpsid i"
	case OpEnableInterrupts:
		return "cpsie i"
	case OpRead:
		if o.Unmapped {
			return fmt.Sprintf("read [0x%08x] = 0x%08x (unmapped)", o.Addr, o.Value)
		}
		return fmt.Sprintf("read [0x%08x] = 0x%08x", o.Addr, o.Value)
	case OpDisableIRQs:
		return "nvic icer = 0xffffffff"
	case OpClearPendingIRQs:
		return "nvic icpr = 0xffffffff"
	case OpSetVectorTable:
		return fmt.Sprintf("scb vtor = 0x%08x", o.Value)
	case OpSetMSP:
		return fmt.Sprintf("msr msp, 0x%08x", o.Value)
	case OpSetPSP:
		return fmt.Sprintf("msr psp, 0x%08x", o.Value)
	case OpJump:
		return fmt.Sprintf("bx 0x%08x", o.Value)
	case OpInterrupt:
		return fmt.Sprintf("interrupt %d taken", o.Value)
	case OpState:
		return fmt.Sprintf("state %v", o.State)
	case OpFail:
		return fmt.Sprintf("fail %v", o.Severity)
	case OpWatchdogReset:
		return fmt.Sprintf("watchdog reset after %v", time.Duration(o.Value)*time.Millisecond)
	default:
		return "unknown"
	}
}

// Core is a simulated core. The zero value has interrupts
// unmasked, no memory and no interrupt lines enabled.
type Core struct {
	// Flash is the memory mapped code flash.
	Flash flash.Reader
	// RAM holds words outside the flash. Reads of unmapped
	// addresses return zero and are marked in the trace.
	RAM map[uint32]uint32
	// Returns makes Jump return to the caller, simulating an
	// application that exits.
	Returns bool

	Primask bool
	ISER    [NVICBanks]uint32
	ISPR    [NVICBanks]uint32
	VTOR    uint32
	MSP     uint32
	PSP     uint32
	PC      uint32

	Trace []Op

	wd    *Watchdog
	feeds int
}

func New(f flash.Reader) *Core {
	return &Core{Flash: f, RAM: make(map[uint32]uint32)}
}

// Enable enables interrupt line irq.
func (c *Core) Enable(irq int) {
	c.ISER[irq/32] |= 1 << (irq % 32)
}

// Raise marks interrupt line irq pending.
func (c *Core) Raise(irq int) {
	c.ISPR[irq/32] |= 1 << (irq % 32)
}

func (c *Core) DisableInterrupts() {
	c.Primask = true
	c.record(Op{Kind: OpDisableInterrupts})
}

func (c *Core) EnableInterrupts() {
	c.Primask = false
	c.record(Op{Kind: OpEnableInterrupts})
}

func (c *Core) ReadWord(addr uint32) uint32 {
	v, ok := c.load(addr)
	c.record(Op{Kind: OpRead, Addr: addr, Value: v, Unmapped: !ok})
	return v
}

// load reads the word at addr from flash, then RAM. It reports
// whether either holds the address.
func (c *Core) load(addr uint32) (uint32, bool) {
	if c.Flash != nil {
		var buf [4]byte
		if err := c.Flash.Read(addr, buf[:]); err == nil {
			return binary.LittleEndian.Uint32(buf[:]), true
		}
	}
	v, ok := c.RAM[addr]
	return v, ok
}

// Unmapped returns the addresses of reads outside flash and RAM.
func (c *Core) Unmapped() []uint32 {
	var addrs []uint32
	for _, op := range c.Trace {
		if op.Kind == OpRead && op.Unmapped {
			addrs = append(addrs, op.Addr)
		}
	}
	return addrs
}

func (c *Core) DisableIRQs() {
	clear(c.ISER[:])
	c.record(Op{Kind: OpDisableIRQs})
}

func (c *Core) ClearPendingIRQs() {
	clear(c.ISPR[:])
	c.record(Op{Kind: OpClearPendingIRQs})
}

func (c *Core) SetVectorTable(addr uint32) {
	c.VTOR = addr
	c.record(Op{Kind: OpSetVectorTable, Value: addr})
}

func (c *Core) SetMainStackPointer(sp uint32) {
	c.MSP = sp
	c.record(Op{Kind: OpSetMSP, Value: sp})
}

func (c *Core) SetProcessStackPointer(sp uint32) {
	c.PSP = sp
	c.record(Op{Kind: OpSetPSP, Value: sp})
}

// Jump records the branch and ends the calling goroutine, unless
// Returns is set.
func (c *Core) Jump(entry uint32) {
	c.PC = entry
	c.record(Op{Kind: OpJump, Value: entry})
	if !c.Returns {
		runtime.Goexit()
	}
}

// record appends op to the trace and takes the lowest enabled
// pending interrupt if interrupts are unmasked.
func (c *Core) record(op Op) {
	c.Trace = append(c.Trace, op)
	if c.Primask {
		return
	}
	for bank := range NVICBanks {
		active := c.ISER[bank] & c.ISPR[bank]
		if active == 0 {
			continue
		}
		for bit := range 32 {
			if active&(1<<bit) == 0 {
				continue
			}
			c.ISPR[bank] &^= 1 << bit
			c.Trace = append(c.Trace, Op{Kind: OpInterrupt, Value: uint32(bank*32 + bit)})
			return
		}
	}
}

// Interrupts returns the interrupts taken during the trace.
func (c *Core) Interrupts() []uint32 {
	var irqs []uint32
	for _, op := range c.Trace {
		if op.Kind == OpInterrupt {
			irqs = append(irqs, op.Value)
		}
	}
	return irqs
}

// String formats the trace one operation per line.
func (c *Core) String() string {
	var b strings.Builder
	for _, op := range c.Trace {
		b.WriteString(op.String())
		b.WriteByte('\n')
	}
	return b.String()
}

var _ boot.Hardware = (*Core)(nil)
