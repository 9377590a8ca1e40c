// Package diag implements the diagnostic line log of the
// bootloader, transmitted over a UART.
package diag

import (
	"fmt"
	"io"
	"strings"
)

// LineSize is the size of the line buffer, including the line
// terminator.
const LineSize = 128

const eol = "\r\n"

// Logger emits a single line of text. Implementations block until
// the line is transmitted and drop errors.
type Logger interface {
	LogLine(text string)
}

// UART writes log lines to a serial transmitter.
type UART struct {
	w   io.Writer
	buf [LineSize]byte
}

func NewUART(w io.Writer) *UART {
	return &UART{w: w}
}

// LogLine writes text followed by CR LF. Text that doesn't fit
// the line buffer is truncated; embedded line breaks are
// replaced by spaces.
func (u *UART) LogLine(text string) {
	text = strings.TrimRight(text, eol)
	n := copy(u.buf[:LineSize-len(eol)], text)
	for i, c := range u.buf[:n] {
		if c == '\r' || c == '\n' {
			u.buf[i] = ' '
		}
	}
	n += copy(u.buf[n:], eol)
	u.w.Write(u.buf[:n])
}

// Printf formats a line and logs it to l. A nil l discards the
// line.
func Printf(l Logger, format string, args ...any) {
	if l == nil {
		return
	}
	l.LogLine(fmt.Sprintf(format, args...))
}

// Discard is a Logger that drops every line.
var Discard Logger = discard{}

type discard struct{}

func (discard) LogLine(string) {}

// Hex formats data as space separated upper case hex bytes. The
// result is truncated to fit a log line.
func Hex(data []byte) string {
	const maxBytes = (LineSize - len(eol)) / 3
	var b strings.Builder
	for i, d := range data {
		if i == maxBytes {
			break
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", d)
	}
	return b.String()
}
