// Package led drives the RGB status LED of the board with
// bit-banged PWM.
package led

import "time"

type Color int

const (
	Red Color = iota
	Green
	Blue
	Yellow  // Red and green.
	Magenta // Red and blue.
	Cyan    // Green and blue.
	White   // All channels.
)

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case Yellow:
		return "yellow"
	case Magenta:
		return "magenta"
	case Cyan:
		return "cyan"
	case White:
		return "white"
	default:
		return "unknown"
	}
}

// channels returns the red, green and blue channels
// of the color.
func (c Color) channels() (r, g, b bool) {
	switch c {
	case Red:
		return true, false, false
	case Green:
		return false, true, false
	case Blue:
		return false, false, true
	case Yellow:
		return true, true, false
	case Magenta:
		return true, false, true
	case Cyan:
		return false, true, true
	case White:
		return true, true, true
	}
	return false, false, false
}

// Pin is a digital output.
type Pin interface {
	Set(high bool)
}

// Indicator is a dimmable status LED. SetBrightness blocks for
// one PWM period.
type Indicator interface {
	SetBrightness(c Color, duty uint8, period time.Duration)
	Off()
}

// RGB is a three channel LED wired to three pins, active high.
type RGB struct {
	R, G, B Pin
	// Sleep is the delay function. It defaults to
	// time.Sleep.
	Sleep func(time.Duration)
}

// SetBrightness lights the channels of c for duty percent of
// period and turns them off for the rest of it. Duty is clamped
// to 100.
func (l *RGB) SetBrightness(c Color, duty uint8, period time.Duration) {
	duty = min(duty, 100)
	on := period * time.Duration(duty) / 100
	off := period - on
	if on > 0 {
		l.set(c, true)
		l.sleep(on)
	}
	if off > 0 {
		l.set(c, false)
		l.sleep(off)
	}
}

// Off turns all channels off.
func (l *RGB) Off() {
	l.R.Set(false)
	l.G.Set(false)
	l.B.Set(false)
}

func (l *RGB) set(c Color, level bool) {
	r, g, b := c.channels()
	if r {
		l.R.Set(level)
	}
	if g {
		l.G.Set(level)
	}
	if b {
		l.B.Set(level)
	}
}

func (l *RGB) sleep(d time.Duration) {
	if l.Sleep != nil {
		l.Sleep(d)
		return
	}
	time.Sleep(d)
}
