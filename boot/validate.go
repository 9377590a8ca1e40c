package boot

// ValidStackPointer reports whether sp is non-zero and 8-byte
// aligned. It is the only check before the transfer; an aligned
// pointer into peripheral or unmapped space passes.
func ValidStackPointer(sp uint32) bool {
	return sp != 0 && sp&0x7 == 0
}
