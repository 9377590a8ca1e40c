//go:build !tinygo

// Package uart opens the host side of the bootloader's
// diagnostic UART.
package uart

import (
	"bufio"
	"errors"
	"io"
	"runtime"
	"time"

	"github.com/tarm/serial"
)

// BaudRate of the bootloader's LPUART.
const BaudRate = 115200

// Open opens the serial device dev, or the first of the
// platform's usual USB serial adapters if dev is empty.
func Open(dev string, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	if baud == 0 {
		baud = BaudRate
	}
	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			devices = append(devices, "COM3")
		case "linux":
			devices = append(devices, "/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyACM0")
		case "darwin":
			devices = append(devices, "/dev/cu.usbserial")
		}
	}
	if len(devices) == 0 {
		return nil, errors.New("uart: no device specified")
	}
	var firstErr error
	for _, dev := range devices {
		c := &serial.Config{Name: dev, Baud: baud, ReadTimeout: timeout}
		s, err := serial.OpenPort(c)
		if err == nil {
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// Lines calls fn for every line received from r until r
// returns an error or fn returns false. Line terminators are
// stripped.
func Lines(r io.Reader, fn func(line string) bool) error {
	s := bufio.NewScanner(r)
	s.Split(scanLines)
	for s.Scan() {
		if !fn(s.Text()) {
			return nil
		}
	}
	return s.Err()
}

// scanLines splits on LF, CR LF or a lone CR.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, c := range data {
		switch c {
		case '\n':
			return i + 1, data[:i], nil
		case '\r':
			if i+1 == len(data) && !atEOF {
				// Wait for a possible LF.
				return 0, nil, nil
			}
			if i+1 < len(data) && data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
