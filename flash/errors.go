package flash

import "fmt"

// Error is a flash HAL error. The numeric value is the signed
// error code reported to callers.
type Error int32

const errBase = 0x7000

const (
	ErrInvalidParam    Error = errBase + 1
	ErrNotInitialized  Error = errBase + 2
	ErrTimeout         Error = errBase + 3
	ErrBusy            Error = errBase + 4
	ErrNotSupported    Error = errBase + 5
	ErrInitFailed      Error = errBase + 100
	ErrWriteFailed     Error = errBase + 101
	ErrReadFailed      Error = errBase + 102
	ErrEraseFailed     Error = errBase + 103
	ErrInvalidAddr     Error = errBase + 104
	ErrSectorProtected Error = errBase + 105
	ErrVerifyFailed    Error = errBase + 106
)

// Code returns the signed error code.
func (e Error) Code() int32 {
	return int32(e)
}

func (e Error) Error() string {
	var msg string
	switch e {
	case ErrInvalidParam:
		msg = "invalid parameter"
	case ErrNotInitialized:
		msg = "not initialized"
	case ErrTimeout:
		msg = "timeout"
	case ErrBusy:
		msg = "resource busy"
	case ErrNotSupported:
		msg = "not supported"
	case ErrInitFailed:
		msg = "init failed"
	case ErrWriteFailed:
		msg = "write failed"
	case ErrReadFailed:
		msg = "read failed"
	case ErrEraseFailed:
		msg = "erase failed"
	case ErrInvalidAddr:
		msg = "invalid address"
	case ErrSectorProtected:
		msg = "sector protected"
	case ErrVerifyFailed:
		msg = "verify failed"
	default:
		return fmt.Sprintf("flash: unknown error %#x", int32(e))
	}
	return fmt.Sprintf("flash: %s (%#x)", msg, int32(e))
}
