// Package cortexm accesses the Cortex-M core registers used by
// the control transfer: the interrupt mask, the nested vectored
// interrupt controller (NVIC), the vector table offset register
// (VTOR) and the stack pointers.
package cortexm

// System control space addresses.
const (
	NVICBase = 0xE000E100
	SCBBase  = 0xE000ED00

	// ICER and ICPR offsets from NVICBase.
	ICEROffset = 0x080
	ICPROffset = 0x180
	// VTOROffset is the offset from SCBBase.
	VTOROffset = 0x008

	// NVICBanks is the number of 32-line banks cleared by the
	// transfer. The S32K3 cores implement 8.
	NVICBanks = 8
)

// VTORMask is the writable part of VTOR: the table is 128-byte
// aligned.
const VTORMask = 0xFFFFFF80
