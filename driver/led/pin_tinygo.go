//go:build tinygo

package led

import "machine"

// MachinePin adapts a microcontroller pin.
type MachinePin machine.Pin

// ConfigureOutput configures p as an output, driven low.
func ConfigureOutput(p machine.Pin) MachinePin {
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	return MachinePin(p)
}

func (p MachinePin) Set(high bool) {
	machine.Pin(p).Set(high)
}
