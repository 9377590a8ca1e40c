// Package boot validates the installed application and
// transfers control to it.
//
// The transfer runs with interrupts masked from its first step
// until the jump. It never returns: it either starts the
// application or leaves the device signaling failure.
package boot

import "easyboot.dev/indicator"

// Layout describes the fixed flash addresses shared with the
// linker scripts and the flashing tool.
type Layout struct {
	Bootloader  uint32
	Application uint32
	Metadata    uint32
	// VectorTable is programmed into the vector table base
	// register before the jump.
	VectorTable uint32
}

// DefaultLayout is the flash layout of the S32K312 boards.
var DefaultLayout = Layout{
	Bootloader:  0x00400000,
	Application: 0x00440000,
	Metadata:    0x005CFFF0,
	VectorTable: 0x00440000,
}

const (
	// stackPointerOffset locates the initial stack pointer
	// word in the application image.
	stackPointerOffset = 0x0C
	// entryOffset locates the entry point relative to the
	// stack pointer value.
	entryOffset = 0x04
)

// Hardware is the core's register interface used by the
// transfer. Implementations access the real registers on the
// device and a simulated core on the host.
type Hardware interface {
	// DisableInterrupts masks all configurable interrupts
	// (PRIMASK).
	DisableInterrupts()
	// EnableInterrupts unmasks interrupts. The transfer
	// never calls it.
	EnableInterrupts()
	// ReadWord reads the 32-bit word at addr.
	ReadWord(addr uint32) uint32
	// DisableIRQs clears every interrupt enable of the
	// interrupt controller (NVIC ICER).
	DisableIRQs()
	// ClearPendingIRQs clears every pending interrupt of the
	// interrupt controller (NVIC ICPR).
	ClearPendingIRQs()
	// SetVectorTable writes the vector table base register
	// (SCB VTOR).
	SetVectorTable(addr uint32)
	SetMainStackPointer(sp uint32)
	SetProcessStackPointer(sp uint32)
	// Jump branches to entry. On a device it doesn't return.
	Jump(entry uint32)
}

// FailureIndicator signals a failed boot. Fail must not return.
type FailureIndicator interface {
	Fail(sev indicator.Severity)
}

// Engine performs the control transfer to the application.
type Engine struct {
	HW        Hardware
	Layout    Layout
	Indicator FailureIndicator
	// Observer, if set, is called on every state transition.
	Observer func(from, to State)

	state State
}

func NewEngine(hw Hardware, l Layout, ind FailureIndicator) *Engine {
	return &Engine{HW: hw, Layout: l, Indicator: ind}
}

// State returns the current state of the transfer.
func (e *Engine) State() State {
	return e.state
}

// Boot transfers control to the application. It never returns.
//
// The sequence is, in order: mask interrupts, read the stack
// pointer from the image, validate it, read the entry point from
// the word following the stack pointer value, disable and clear
// all interrupt controller lines, program the vector table base,
// load both stack pointers and jump.
func (e *Engine) Boot() {
	hw := e.HW
	hw.DisableInterrupts()

	e.enter(ReadingVector)
	sp := hw.ReadWord(e.Layout.Application + stackPointerOffset)

	e.enter(Validating)
	if !ValidStackPointer(sp) {
		e.fail(indicator.SeverityFailure)
	}

	// The entry point follows the word the stack pointer value
	// addresses, per the application linker scripts.
	entry := hw.ReadWord(sp + entryOffset)

	e.enter(Transferring)
	hw.DisableIRQs()
	hw.ClearPendingIRQs()
	hw.SetVectorTable(e.Layout.VectorTable)
	hw.SetMainStackPointer(sp)
	hw.SetProcessStackPointer(sp)

	e.enter(ApplicationRunning)
	hw.Jump(entry)

	e.fail(indicator.SeverityCritical)
}

// fail enters the terminal Failed state and signals sev forever.
func (e *Engine) fail(sev indicator.Severity) {
	e.enter(Failed)
	for {
		e.Indicator.Fail(sev)
	}
}

func (e *Engine) enter(s State) {
	from := e.state
	e.state = s
	if e.Observer != nil {
		e.Observer(from, s)
	}
}
