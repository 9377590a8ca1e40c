package sim

import (
	"runtime"
	"time"

	"easyboot.dev/boot"
	"easyboot.dev/internal/codec"
)

// Report summarizes a simulated boot.
type Report struct {
	State        string   `cbor:"1,keyasint"`
	Entry        uint32   `cbor:"2,keyasint,omitempty"`
	StackPointer uint32   `cbor:"3,keyasint,omitempty"`
	VectorTable  uint32   `cbor:"4,keyasint,omitempty"`
	Severity     string   `cbor:"5,keyasint,omitempty"`
	Trace        []string `cbor:"6,keyasint"`
	Interrupts   []uint32 `cbor:"7,keyasint,omitempty"`
	// Feeds counts watchdog feeds.
	Feeds int `cbor:"8,keyasint,omitempty"`
	// Reset is set if the watchdog reset the core.
	Reset bool `cbor:"9,keyasint,omitempty"`
	// Unmapped lists reads outside flash and RAM.
	Unmapped []uint32 `cbor:"10,keyasint,omitempty"`
}

// Report returns the report of a boot that ended in state s.
func (c *Core) Report(s boot.State) Report {
	r := Report{
		State:        s.String(),
		Entry:        c.PC,
		StackPointer: c.MSP,
		VectorTable:  c.VTOR,
		Interrupts:   c.Interrupts(),
		Feeds:        c.feeds,
		Unmapped:     c.Unmapped(),
	}
	for _, op := range c.Trace {
		r.Trace = append(r.Trace, op.String())
		switch op.Kind {
		case OpFail:
			r.Severity = op.Severity.String()
		case OpWatchdogReset:
			r.Reset = true
		}
	}
	return r
}

// MarshalBinary encodes the report in deterministic CBOR.
func (r Report) MarshalBinary() ([]byte, error) {
	return codec.Marshal(r)
}

// DecodeReport decodes a report encoded by MarshalBinary.
func DecodeReport(data []byte) (Report, error) {
	var r Report
	err := codec.Unmarshal(data, &r)
	return r, err
}

// Watchdog returns the watchdog of c, resetting the core when
// more than timeout passes without a feed. A zero timeout never
// expires. The watchdog is started by Run.
func (c *Core) Watchdog(timeout time.Duration) *Watchdog {
	c.wd = &Watchdog{Timeout: timeout, c: c}
	return c.wd
}

// Watchdog is a simulated watchdog timer. Feeds are counted into
// the report.
type Watchdog struct {
	Timeout time.Duration
	// Now returns the current time. It defaults to time.Now.
	Now func() time.Time

	c    *Core
	last time.Time
}

func (w *Watchdog) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Watchdog) start() {
	w.last = w.now()
}

// Feed restarts the timeout. A feed after the timeout expired
// comes too late: the reset is recorded and the calling
// goroutine ends, as the device would have restarted.
func (w *Watchdog) Feed() {
	now := w.now()
	if d := now.Sub(w.last); w.Timeout > 0 && d > w.Timeout {
		w.c.Trace = append(w.c.Trace, Op{Kind: OpWatchdogReset, Value: uint32(d.Milliseconds())})
		runtime.Goexit()
	}
	w.last = now
	w.c.feeds++
}
