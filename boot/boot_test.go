package boot

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"testing"

	"easyboot.dev/indicator"
)

// mockHW records register operations by name.
type mockHW struct {
	words   map[uint32]uint32
	ops     []string
	returns bool
}

func (h *mockHW) DisableInterrupts() { h.ops = append(h.ops, "disable-interrupts") }
func (h *mockHW) EnableInterrupts() { h.ops = append(h.ops, "enable-interrupts") }
func (h *mockHW) DisableIRQs() { h.ops = append(h.ops, "disable-irqs") }
func (h *mockHW) ClearPendingIRQs() { h.ops = append(h.ops, "clear-pending-irqs") }
func (h *mockHW) SetVectorTable(a uint32) { h.ops = append(h.ops, fmt.Sprintf("vtor %#x", a)) }
func (h *mockHW) SetMainStackPointer(v uint32) {
	h.ops = append(h.ops, fmt.Sprintf("msp %#x", v))
}

func (h *mockHW) SetProcessStackPointer(v uint32) {
	h.ops = append(h.ops, fmt.Sprintf("psp %#x", v))
}

func (h *mockHW) ReadWord(addr uint32) uint32 {
	h.ops = append(h.ops, fmt.Sprintf("read %#x", addr))
	return h.words[addr]
}

func (h *mockHW) Jump(entry uint32) {
	h.ops = append(h.ops, fmt.Sprintf("jump %#x", entry))
	if !h.returns {
		runtime.Goexit()
	}
}

// haltIndicator records the severity and ends the goroutine, in
// place of the endless failure pattern.
type haltIndicator struct {
	sev   indicator.Severity
	calls int
}

func (h *haltIndicator) Fail(sev indicator.Severity) {
	h.sev = sev
	h.calls++
	runtime.Goexit()
}

// run boots e on its own goroutine and reports whether Boot
// returned.
func run(e *Engine) (returned bool) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Boot()
		returned = true
	}()
	<-done
	return returned
}

const (
	testSP    = 0x20400000
	testEntry = 0x00440401
)

func newTest(sp uint32) (*mockHW, *haltIndicator, *Engine) {
	hw := &mockHW{words: map[uint32]uint32{
		DefaultLayout.Application + stackPointerOffset: sp,
		sp + entryOffset: testEntry,
	}}
	ind := new(haltIndicator)
	return hw, ind, NewEngine(hw, DefaultLayout, ind)
}

func TestValidStackPointer(t *testing.T) {
	tests := []struct {
		sp    uint32
		valid bool
	}{
		{0x00000000, false},
		{0x20400000, true},
		{0x20400004, false},
		{0x20400008, true},
		{0x20400001, false},
		{0xfffffff8, true},
		{0x40000000, true},
	}
	for _, test := range tests {
		if got := ValidStackPointer(test.sp); got != test.valid {
			t.Errorf("ValidStackPointer(%#x) = %v, expected %v", test.sp, got, test.valid)
		}
	}
	for sp := uint32(1); sp < 64; sp++ {
		if want := sp%8 == 0; ValidStackPointer(sp) != want {
			t.Errorf("ValidStackPointer(%#x) = %v", sp, !want)
		}
	}
}

func TestBoot(t *testing.T) {
	hw, ind, e := newTest(testSP)
	var transitions []string
	e.Observer = func(from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}
	if run(e) {
		t.Fatal("Boot returned")
	}
	want := []string{
		"disable-interrupts",
		"read 0x44000c",
		"read 0x20400004",
		"disable-irqs",
		"clear-pending-irqs",
		"vtor 0x440000",
		"msp 0x20400000",
		"psp 0x20400000",
		"jump 0x440401",
	}
	if !slices.Equal(hw.ops, want) {
		t.Errorf("operations:\n%s\nexpected:\n%s", strings.Join(hw.ops, "\n"), strings.Join(want, "\n"))
	}
	if ind.calls != 0 {
		t.Errorf("failure indicated on a valid image")
	}
	if s := e.State(); s != ApplicationRunning {
		t.Errorf("state %v, expected %v", s, ApplicationRunning)
	}
	wantTrans := []string{
		"idle>reading-vector",
		"reading-vector>validating",
		"validating>transferring",
		"transferring>application-running",
	}
	if !slices.Equal(transitions, wantTrans) {
		t.Errorf("transitions %v, expected %v", transitions, wantTrans)
	}
}

func TestInterruptsMaskedThroughTransfer(t *testing.T) {
	hw, _, e := newTest(testSP)
	run(e)
	disable := slices.Index(hw.ops, "disable-interrupts")
	firstRead := slices.IndexFunc(hw.ops, func(op string) bool { return strings.HasPrefix(op, "read ") })
	vtor := slices.IndexFunc(hw.ops, func(op string) bool { return strings.HasPrefix(op, "vtor ") })
	if disable == -1 || firstRead == -1 || vtor == -1 {
		t.Fatalf("incomplete sequence %v", hw.ops)
	}
	if disable > firstRead {
		t.Errorf("interrupts disabled after reading the vector: %v", hw.ops)
	}
	if slices.Contains(hw.ops[disable:vtor], "enable-interrupts") {
		t.Errorf("interrupts re-enabled before the vector table was moved: %v", hw.ops)
	}
	if slices.Contains(hw.ops, "enable-interrupts") {
		t.Errorf("interrupts re-enabled: %v", hw.ops)
	}
}

func TestVectorTableLayout(t *testing.T) {
	hw, _, e := newTest(testSP)
	e.Layout.VectorTable = e.Layout.Application + stackPointerOffset
	run(e)
	if !slices.Contains(hw.ops, "vtor 0x44000c") {
		t.Errorf("vector table base not taken from the layout: %v", hw.ops)
	}
}

func TestInvalidStackPointer(t *testing.T) {
	for _, sp := range []uint32{0, 0x20400004, 0x20400003, 0xffffffff} {
		hw, ind, e := newTest(sp)
		if run(e) {
			t.Fatalf("%#x: Boot returned", sp)
		}
		if ind.calls != 1 || ind.sev != indicator.SeverityFailure {
			t.Errorf("%#x: indicated %v %d times, expected %v", sp, ind.sev, ind.calls, indicator.SeverityFailure)
		}
		if s := e.State(); s != Failed {
			t.Errorf("%#x: state %v, expected %v", sp, s, Failed)
		}
		want := []string{"disable-interrupts", "read 0x44000c"}
		if !slices.Equal(hw.ops, want) {
			t.Errorf("%#x: operations %v, expected %v", sp, hw.ops, want)
		}
	}
}

func TestErasedImage(t *testing.T) {
	hw := &mockHW{words: map[uint32]uint32{
		DefaultLayout.Application + stackPointerOffset: 0xffffffff,
	}}
	ind := new(haltIndicator)
	run(NewEngine(hw, DefaultLayout, ind))
	if ind.calls != 1 || ind.sev != indicator.SeverityFailure {
		t.Errorf("erased image indicated %v %d times", ind.sev, ind.calls)
	}
}

func TestJumpReturns(t *testing.T) {
	hw, ind, e := newTest(testSP)
	hw.returns = true
	if run(e) {
		t.Fatal("Boot returned")
	}
	if ind.calls != 1 || ind.sev != indicator.SeverityCritical {
		t.Errorf("indicated %v %d times, expected %v", ind.sev, ind.calls, indicator.SeverityCritical)
	}
	if s := e.State(); s != Failed {
		t.Errorf("state %v, expected %v", s, Failed)
	}
}

func TestStateStrings(t *testing.T) {
	for s := Idle; s <= Failed; s++ {
		if s.String() == "unknown" {
			t.Errorf("state %d has no name", s)
		}
		if got, want := s.Terminal(), s == ApplicationRunning || s == Failed; got != want {
			t.Errorf("%v.Terminal() = %v", s, got)
		}
	}
}
