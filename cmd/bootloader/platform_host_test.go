//go:build unix && !tinygo

package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"easyboot.dev/appmeta"
	"easyboot.dev/boot"
	"easyboot.dev/config"
	"easyboot.dev/diag"
	"easyboot.dev/flash"
	"easyboot.dev/sim"
)

const (
	testSP    = 0x20400000
	testEntry = 0x00440401
)

func newTestPlatform(t *testing.T, sp uint32, meta *appmeta.Record) (*Platform, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Sim.RAM = []config.WordConfig{{Addr: config.Addr(sp + 4), Value: testEntry}}
	return newTestPlatformConfig(t, cfg, sp, meta)
}

func newTestPlatformConfig(t *testing.T, cfg *config.Config, sp uint32, meta *appmeta.Record) (*Platform, *bytes.Buffer) {
	t.Helper()
	cfg.Flash.Image = filepath.Join(t.TempDir(), "flash.img")
	cfg.LED.Steps = 100
	p, err := newPlatform(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], sp)
	require.NoError(t, p.flash.Write(cfg.BootLayout().Application+0x0C, word[:]))
	if meta != nil {
		rec, err := meta.MarshalBinary()
		require.NoError(t, err)
		require.NoError(t, flash.Program(p.flash, cfg.BootLayout().Metadata, rec))
	}

	log := new(bytes.Buffer)
	p.board.Log = diag.NewUART(log)
	p.board.LED = new(sim.LED)
	return p, log
}

func TestBootApplication(t *testing.T) {
	built := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	rec := appmeta.New("MyApp", "1.2.3", built, boot.DefaultLayout.Application, []byte("image"))
	p, log := newTestPlatform(t, testSP, &rec)

	e := start(p.Board())
	require.NoError(t, p.Boot(e))
	require.Equal(t, boot.ApplicationRunning, e.State())
	require.Equal(t, uint32(testEntry), p.core.PC)
	require.Equal(t, uint32(boot.DefaultLayout.VectorTable), p.core.VTOR)

	out := log.String()
	require.Contains(t, out, "Booting MyApp 1.2.3\r\n")
	require.Contains(t, out, "Version: 1.2.3\r\n")
	require.Contains(t, out, "Flash Address: 0x00440000\r\n")
	require.True(t, strings.HasPrefix(out, "Bootloader dev\r\n"), "log %q", out)
}

func TestBootWithoutMetadata(t *testing.T) {
	p, log := newTestPlatform(t, testSP, nil)
	e := start(p.Board())
	require.NoError(t, p.Boot(e))
	require.Contains(t, log.String(), "Booting Unknown Unknown\r\n")
	require.Contains(t, log.String(), "Invalid app metadata\r\n")
	require.Contains(t, log.String(), "Metadata: FF FF FF FF FF FF FF FF FF FF FF FF FF FF FF FF\r\n")
}

func TestBootFailure(t *testing.T) {
	p, log := newTestPlatform(t, 0xffffffff, nil)
	report := filepath.Join(t.TempDir(), "report.cbor")
	*reportFile = report
	t.Cleanup(func() { *reportFile = "" })

	e := start(p.Board())
	require.ErrorContains(t, p.Boot(e), "failure")
	require.Contains(t, log.String(), "Boot failure: halted\r\n")

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	r, err := sim.DecodeReport(data)
	require.NoError(t, err)
	require.Equal(t, "failed", r.State)
	require.Equal(t, "failure", r.Severity)
	require.Zero(t, r.VectorTable)
}

func TestBootUnmappedEntry(t *testing.T) {
	p, _ := newTestPlatformConfig(t, config.Default(), testSP, nil)
	e := start(p.Board())
	require.NoError(t, p.Boot(e))
	require.Zero(t, p.core.PC)
	require.Equal(t, []uint32{testSP + 4}, p.core.Unmapped())
}

type testClock struct {
	t time.Time
}

func (c *testClock) sleep(d time.Duration) { c.t = c.t.Add(d) }
func (c *testClock) now() time.Time { return c.t }

func TestBootWatchdog(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		reset   bool
	}{
		{2 * time.Second, false},
		{time.Second, true},
	}
	for _, test := range tests {
		cfg := config.Default()
		cfg.Watchdog = config.WatchdogConfig{Enabled: true, Timeout: test.timeout}
		p, log := newTestPlatformConfig(t, cfg, 0, nil)
		clk := new(testClock)
		p.board.LED = &sim.LED{Sleep: clk.sleep}
		wd, ok := p.board.Watchdog.(*sim.Watchdog)
		require.True(t, ok, "watchdog %T", p.board.Watchdog)
		wd.Now = clk.now

		e := start(p.Board())
		err := p.Boot(e)
		require.ErrorContains(t, err, "failure")
		require.Equal(t, test.reset, strings.Contains(err.Error(), "watchdog reset"), "%v: %v", test.timeout, err)
		require.Contains(t, log.String(), "Boot failure: halted\r\n")
		r := p.core.Report(e.State())
		require.Equal(t, test.reset, r.Reset)
	}
}
