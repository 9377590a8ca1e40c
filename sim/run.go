package sim

import (
	"runtime"
	"time"

	"easyboot.dev/boot"
	"easyboot.dev/driver/led"
	"easyboot.dev/indicator"
)

// Run runs e on the core until the application is entered, the
// failure indicator ends the boot goroutine or the watchdog
// resets the core, and returns the final state. State transitions and indicated failures are
// added to the trace. Run only returns for a failed boot if the
// indicator eventually stops, for example by driving a LED with
// a budget.
func (c *Core) Run(e *boot.Engine) boot.State {
	observer := e.Observer
	e.Observer = func(from, to boot.State) {
		c.Trace = append(c.Trace, Op{Kind: OpState, State: to})
		if observer != nil {
			observer(from, to)
		}
	}
	ind := e.Indicator
	e.Indicator = failRecorder{c, ind}
	defer func() {
		e.Observer = observer
		e.Indicator = ind
	}()
	if c.wd != nil {
		c.wd.start()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Boot()
	}()
	<-done
	return e.State()
}

type failRecorder struct {
	c   *Core
	ind boot.FailureIndicator
}

func (f failRecorder) Fail(sev indicator.Severity) {
	f.c.Trace = append(f.c.Trace, Op{Kind: OpFail, Severity: sev})
	if f.ind == nil {
		runtime.Goexit()
	}
	f.ind.Fail(sev)
}

// LED is a simulated RGB LED.
type LED struct {
	// Budget ends the calling goroutine after that many
	// brightness steps, when positive.
	Budget int
	// Sleep, if set, is called with the period of every step.
	Sleep func(time.Duration)

	Steps int
	Color led.Color
	Duty  uint8
	// Lit is the accumulated on-time.
	Lit time.Duration
}

func (l *LED) SetBrightness(c led.Color, duty uint8, period time.Duration) {
	duty = min(duty, 100)
	l.Steps++
	l.Color, l.Duty = c, duty
	l.Lit += period * time.Duration(duty) / 100
	if l.Sleep != nil {
		l.Sleep(period)
	}
	if l.Budget > 0 && l.Steps >= l.Budget {
		runtime.Goexit()
	}
}

func (l *LED) Off() {
	l.Duty = 0
}

// Reset clears the step count and on-time.
func (l *LED) Reset() {
	l.Steps = 0
	l.Lit = 0
}

var _ led.Indicator = (*LED)(nil)
