//go:build !tinygo

package led

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIO adapts a periph.io output pin.
type GPIO struct {
	gpio.PinOut
}

func (p GPIO) Set(high bool) {
	p.Out(gpio.Level(high))
}

// OpenGPIO initializes the host drivers and returns an RGB LED
// on the named pins, for example "GPIO17".
func OpenGPIO(red, green, blue string) (*RGB, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("led: %w", err)
	}
	var pins [3]gpio.PinIO
	for i, name := range []string{red, green, blue} {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("led: no pin %q", name)
		}
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("led: %s: %w", name, err)
		}
		pins[i] = p
	}
	return &RGB{R: GPIO{pins[0]}, G: GPIO{pins[1]}, B: GPIO{pins[2]}}, nil
}
