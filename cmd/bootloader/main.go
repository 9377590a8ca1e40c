// Command bootloader starts the application installed in flash.
//
// It signals its start on the status LED, logs the application
// metadata to the diagnostic UART and transfers control to the
// application. If the application can't be started the LED
// breathes a failure pattern forever.
//
// Built with TinyGo for the board it runs on the device. Built
// with Go it boots a flash image file on a simulated core.
package main

import (
	"fmt"
	"os"

	"easyboot.dev/appmeta"
	"easyboot.dev/boot"
	"easyboot.dev/diag"
	"easyboot.dev/driver/led"
	"easyboot.dev/flash"
	"easyboot.dev/indicator"
)

// Version is set by the Go linker with -ldflags='-X main.Version=...'.
var Version string

// Board is the platform's view of the device.
type Board struct {
	Flash    flash.Reader
	HW       boot.Hardware
	Layout   boot.Layout
	LED      led.Indicator
	Log      diag.Logger
	Watchdog indicator.Watchdog
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bootloader: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	p, err := Init()
	if err != nil {
		return err
	}
	defer p.Close()
	e := start(p.Board())
	return p.Boot(e)
}

// start announces the bootloader and the installed application
// and returns the engine that transfers control to it.
func start(b *Board) *boot.Engine {
	log := b.Log
	if log == nil {
		log = diag.Discard
	}
	ind := &indicator.Indicator{
		LED:      b.LED,
		Log:      log,
		Watchdog: b.Watchdog,
	}
	ver := Version
	if ver == "" {
		ver = "dev"
	}
	diag.Printf(log, "Bootloader %s", ver)
	ind.BootBlink()

	meta := appmeta.NewReader(b.Flash)
	meta.Addr = b.Layout.Metadata
	name, version := meta.DisplayName()
	diag.Printf(log, "Booting %s %s", name, version)
	// Metadata is informational; an invalid record doesn't
	// prevent the boot.
	if err := meta.PrintInfo(log); err != nil {
		var head [16]byte
		if b.Flash.Read(meta.Addr, head[:]) == nil {
			diag.Printf(log, "Metadata: %s", diag.Hex(head[:]))
		}
	}

	return boot.NewEngine(b.HW, b.Layout, ind)
}
