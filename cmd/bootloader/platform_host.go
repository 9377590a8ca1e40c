//go:build unix && !tinygo

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"easyboot.dev/boot"
	"easyboot.dev/config"
	"easyboot.dev/diag"
	"easyboot.dev/driver/led"
	"easyboot.dev/driver/uart"
	"easyboot.dev/flash"
	"easyboot.dev/sim"
)

var (
	configFile = pflag.String("config", "", "board configuration `file` (default $"+config.EnvVar+")")
	imageFile  = pflag.String("image", "", "flash image `file`, overriding the configuration")
	reportFile = pflag.String("report", "", "write a CBOR boot report to `file`")
)

// Platform boots a flash image file on a simulated core.
type Platform struct {
	board Board
	cfg   *config.Config
	core  *sim.Core
	flash *flash.File
	port  io.Closer
}

func Init() (*Platform, error) {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()
	// glog reads its flags from the standard flag set.
	flag.CommandLine.Parse(nil)

	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	if *imageFile != "" {
		cfg.Flash.Image = *imageFile
	}
	p, err := newPlatform(cfg)
	if err != nil {
		return nil, err
	}
	glog.Infof("board %s: flash image %s at %v", cfg.Board, cfg.Flash.Image, cfg.Span())
	return p, nil
}

func newPlatform(cfg *config.Config) (*Platform, error) {
	f, err := flash.OpenFile(cfg.Flash.Image, cfg.Regions())
	if err != nil {
		return nil, err
	}
	if err := f.Init(); err != nil {
		f.Close()
		return nil, err
	}
	for _, a := range cfg.Flash.Protected {
		f.Protect(uint32(a))
	}
	p := &Platform{
		cfg:   cfg,
		core:  sim.New(f),
		flash: f,
	}
	p.board = Board{
		Flash:  f,
		HW:     p.core,
		Layout: cfg.BootLayout(),
	}
	if err := p.openLog(); err != nil {
		p.Close()
		return nil, err
	}
	if err := p.openLED(); err != nil {
		p.Close()
		return nil, err
	}
	for _, w := range cfg.Sim.RAM {
		p.core.RAM[uint32(w.Addr)] = uint32(w.Value)
	}
	if cfg.Watchdog.Enabled {
		p.board.Watchdog = p.core.Watchdog(cfg.Watchdog.Timeout)
	}
	return p, nil
}

func (p *Platform) openLog() error {
	c := p.cfg.Log
	if c.Port == "" {
		p.board.Log = diag.NewUART(os.Stdout)
		return nil
	}
	port, err := uart.Open(c.Port, c.Baud, time.Second)
	if err != nil {
		return err
	}
	p.port = port
	p.board.Log = diag.NewUART(port)
	return nil
}

func (p *Platform) openLED() error {
	c := p.cfg.LED
	if c.Red == "" {
		p.board.LED = &sim.LED{Sleep: time.Sleep}
		return nil
	}
	l, err := led.OpenGPIO(c.Red, c.Green, c.Blue)
	if err != nil {
		return err
	}
	p.board.LED = l
	return nil
}

func (p *Platform) Board() *Board {
	return &p.board
}

// Boot runs the engine on the simulated core. It returns when
// the application is entered, or when a failure pattern limited
// by the configuration ends.
func (p *Platform) Boot(e *boot.Engine) error {
	// The step limit applies to the failure pattern only.
	if l, ok := p.board.LED.(*sim.LED); ok {
		l.Reset()
		l.Budget = p.cfg.LED.Steps
	}
	s := p.core.Run(e)
	r := p.core.Report(s)
	if glog.V(1) {
		for _, op := range r.Trace {
			glog.Info(op)
		}
	}
	if *reportFile != "" {
		data, err := r.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(*reportFile, data, 0o644); err != nil {
			return err
		}
	}
	for _, addr := range r.Unmapped {
		glog.Warningf("read of unmapped address %#08x returned 0, preload it with sim.ram", addr)
	}
	if r.Reset {
		return fmt.Errorf("boot %s (%s): watchdog reset", s, r.Severity)
	}
	if s != boot.ApplicationRunning {
		return fmt.Errorf("boot %s (%s)", s, r.Severity)
	}
	glog.Infof("application entered at %#08x with stack %#08x", r.Entry, r.StackPointer)
	return nil
}

func (p *Platform) Close() error {
	var errs []error
	if p.flash != nil {
		errs = append(errs, p.flash.Close())
	}
	if p.port != nil {
		errs = append(errs, p.port.Close())
	}
	glog.Flush()
	return errors.Join(errs...)
}
