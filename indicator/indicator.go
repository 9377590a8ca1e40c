// Package indicator signals the bootloader's status on the RGB
// LED: a short breathing pattern on entry, and an endless one
// when booting fails.
package indicator

import (
	"time"

	"easyboot.dev/diag"
	"easyboot.dev/driver/led"
)

type Severity int

const (
	// SeverityFailure is an application that failed
	// validation.
	SeverityFailure Severity = iota
	// SeverityCritical is a control transfer that returned.
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityFailure:
		return "failure"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Pattern is a breathing pattern: a fade in followed by a fade
// out, one PWM period per step.
type Pattern struct {
	Color  led.Color
	Steps  int
	Period time.Duration
}

var (
	bootPattern     = Pattern{Color: led.White, Steps: 30, Period: 10 * time.Millisecond}
	failurePattern  = Pattern{Color: led.White, Steps: 40, Period: 20 * time.Millisecond}
	criticalPattern = Pattern{Color: led.Red, Steps: 40, Period: 20 * time.Millisecond}
)

const (
	bootCycles = 3
	bootPause  = 50 * time.Millisecond
)

// PatternFor returns the failure pattern of a severity.
func PatternFor(s Severity) Pattern {
	if s == SeverityCritical {
		return criticalPattern
	}
	return failurePattern
}

// Watchdog is fed by the failure loop when configured.
type Watchdog interface {
	Feed()
}

type Indicator struct {
	LED led.Indicator
	// Log receives a line when failure mode is entered. It may
	// be nil.
	Log diag.Logger
	// Watchdog, if set, is fed once per breathing cycle of the
	// failure loop. Without it an active watchdog resets the
	// device out of failure mode.
	Watchdog Watchdog
	// Sleep is the delay function. It defaults to time.Sleep.
	Sleep func(time.Duration)
}

// BootBlink breathes white a few times to show that the
// bootloader runs. It leaves the LED off.
func (ind *Indicator) BootBlink() {
	ind.LED.Off()
	for range bootCycles {
		ind.breathe(bootPattern)
		ind.LED.Off()
		ind.sleep(bootPause)
	}
	ind.LED.Off()
}

// Fail signals sev forever. It never returns.
func (ind *Indicator) Fail(sev Severity) {
	diag.Printf(ind.Log, "Boot %s: halted", sev)
	p := PatternFor(sev)
	ind.LED.Off()
	for {
		ind.breathe(p)
		if ind.Watchdog != nil {
			ind.Watchdog.Feed()
		}
	}
}

func (ind *Indicator) breathe(p Pattern) {
	for step := 0; step <= p.Steps; step++ {
		ind.LED.SetBrightness(p.Color, uint8(step*100/p.Steps), p.Period)
	}
	for step := p.Steps; step > 0; step-- {
		ind.LED.SetBrightness(p.Color, uint8((step-1)*100/p.Steps), p.Period)
	}
}

func (ind *Indicator) sleep(d time.Duration) {
	if ind.Sleep != nil {
		ind.Sleep(d)
		return
	}
	time.Sleep(d)
}
