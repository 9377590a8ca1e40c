//go:build tinygo && cortexm

package main

import (
	"machine"

	"easyboot.dev/boot"
	"easyboot.dev/cortexm"
	"easyboot.dev/diag"
	"easyboot.dev/driver/led"
	"easyboot.dev/flash"
)

// Status LED pins of the S32K312 evaluation board, numbered
// 32 per port.
const (
	LED_RED   = machine.Pin(29) // PTA29
	LED_GREEN = machine.Pin(30) // PTA30
	LED_BLUE  = machine.Pin(31) // PTA31
)

type Platform struct {
	board Board
}

func Init() (*Platform, error) {
	f := flash.NewMapped(flash.CodeBlock0, flash.CodeBlock1)
	if err := f.Init(); err != nil {
		return nil, err
	}
	uart := machine.DefaultUART
	uart.Configure(machine.UARTConfig{BaudRate: 115200})
	p := &Platform{board: Board{
		Flash:  f,
		HW:     new(cortexm.Core),
		Layout: boot.DefaultLayout,
		LED: &led.RGB{
			R: led.ConfigureOutput(LED_RED),
			G: led.ConfigureOutput(LED_GREEN),
			B: led.ConfigureOutput(LED_BLUE),
		},
		Log: diag.NewUART(uart),
	}}
	return p, nil
}

func (p *Platform) Board() *Board {
	return &p.board
}

// Boot transfers control to the application. It doesn't return.
func (p *Platform) Boot(e *boot.Engine) error {
	e.Boot()
	return nil
}

func (p *Platform) Close() error {
	return nil
}
