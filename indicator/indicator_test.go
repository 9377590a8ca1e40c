package indicator

import (
	"runtime"
	"testing"
	"time"

	"easyboot.dev/driver/led"
)

type step struct {
	color  led.Color
	duty   uint8
	period time.Duration
}

// fakeLED records brightness steps and ends the calling
// goroutine once budget steps have been taken.
type fakeLED struct {
	steps  []step
	offs   int
	budget int
}

func (l *fakeLED) SetBrightness(c led.Color, duty uint8, period time.Duration) {
	l.steps = append(l.steps, step{c, duty, period})
	if l.budget > 0 && len(l.steps) >= l.budget {
		runtime.Goexit()
	}
}

func (l *fakeLED) Off() {
	l.offs++
}

type counter int

func (c *counter) Feed() {
	*c++
}

type lines []string

func (l *lines) LogLine(s string) {
	*l = append(*l, s)
}

// runFail runs Fail on its own goroutine and reports whether it
// returned.
func runFail(ind *Indicator, sev Severity) (returned bool) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ind.Fail(sev)
		returned = true
	}()
	<-done
	return returned
}

func TestFailNeverReturns(t *testing.T) {
	tests := []struct {
		sev   Severity
		color led.Color
	}{
		{SeverityFailure, led.White},
		{SeverityCritical, led.Red},
	}
	for _, test := range tests {
		const cycle = 2*40 + 1
		l := &fakeLED{budget: 3*cycle + 5}
		var wd counter
		var log lines
		ind := &Indicator{LED: l, Watchdog: &wd, Log: &log}
		if runFail(ind, test.sev) {
			t.Fatalf("%v: Fail returned", test.sev)
		}
		if len(l.steps) != l.budget {
			t.Errorf("%v: %d steps, expected the full budget of %d", test.sev, len(l.steps), l.budget)
		}
		// The pattern repeats.
		for i := cycle; i < len(l.steps); i++ {
			if l.steps[i] != l.steps[i-cycle] {
				t.Errorf("%v: step %d is %+v, expected repetition of %+v", test.sev, i, l.steps[i], l.steps[i-cycle])
				break
			}
		}
		for _, s := range l.steps {
			if s.color != test.color || s.period != 20*time.Millisecond {
				t.Errorf("%v: step %+v, expected %v with 20ms period", test.sev, s, test.color)
				break
			}
		}
		if wd != 3 {
			t.Errorf("%v: watchdog fed %d times, expected 3", test.sev, wd)
		}
		if len(log) != 1 {
			t.Errorf("%v: logged %q, expected a single line", test.sev, log)
		}
	}
}

func TestBreathe(t *testing.T) {
	l := new(fakeLED)
	ind := &Indicator{LED: l}
	ind.breathe(Pattern{Color: led.Blue, Steps: 4, Period: time.Millisecond})
	var duties []uint8
	for _, s := range l.steps {
		duties = append(duties, s.duty)
	}
	want := []uint8{0, 25, 50, 75, 100, 75, 50, 25, 0}
	if len(duties) != len(want) {
		t.Fatalf("duties %v, expected %v", duties, want)
	}
	for i := range want {
		if duties[i] != want[i] {
			t.Fatalf("duties %v, expected %v", duties, want)
		}
	}
}

func TestBootBlink(t *testing.T) {
	l := new(fakeLED)
	var slept time.Duration
	ind := &Indicator{LED: l, Sleep: func(d time.Duration) { slept += d }}
	ind.BootBlink()
	if got, want := len(l.steps), bootCycles*(2*30+1); got != want {
		t.Errorf("%d steps, expected %d", got, want)
	}
	if slept != bootCycles*bootPause {
		t.Errorf("paused %v, expected %v", slept, bootCycles*bootPause)
	}
	if l.offs != bootCycles+2 {
		t.Errorf("LED turned off %d times, expected %d", l.offs, bootCycles+2)
	}
	for _, s := range l.steps {
		if s.color != led.White {
			t.Fatalf("boot blink used %v", s.color)
		}
	}
}
