// Package config loads the YAML board configuration of the host
// bootloader and tools.
//
// The configuration is read from the file given by a --config
// flag, or the EASYBOOT_CONFIG environment variable when no flag
// is given. Without either, the defaults describe the S32K312
// flash layout with a simulated LED and a log on standard output.
//
// Addresses are written as YAML integers and may use hexadecimal:
//
//	layout:
//	  application: 0x00440000
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"easyboot.dev/appmeta"
	"easyboot.dev/boot"
	"easyboot.dev/cortexm"
	"easyboot.dev/flash"
)

// EnvVar names the configuration file when no path is given.
const EnvVar = "EASYBOOT_CONFIG"

// Addr is a flash or memory address.
type Addr uint32

func (a *Addr) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: address must be a scalar", n.Line)
	}
	v, err := strconv.ParseUint(n.Value, 0, 32)
	if err != nil {
		return fmt.Errorf("line %d: invalid address %q", n.Line, n.Value)
	}
	*a = Addr(v)
	return nil
}

func (a Addr) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!int",
		Value: fmt.Sprintf("0x%08X", uint32(a)),
	}, nil
}

// Config is the board configuration.
type Config struct {
	// Board names the board in logs.
	Board string `yaml:"board"`

	// Layout is the fixed flash layout shared with the linker
	// scripts.
	Layout LayoutConfig `yaml:"layout"`

	// Flash configures the flash image of the simulator.
	Flash FlashConfig `yaml:"flash"`

	// LED configures the status LED.
	LED LEDConfig `yaml:"led"`

	// Log configures the diagnostic UART.
	Log LogConfig `yaml:"log"`

	// Watchdog configures feeding of a watchdog from the
	// failure loop.
	Watchdog WatchdogConfig `yaml:"watchdog"`

	// Sim configures the simulated core of the host bootloader.
	Sim SimConfig `yaml:"sim"`
}

// LayoutConfig mirrors boot.Layout.
type LayoutConfig struct {
	Bootloader  Addr `yaml:"bootloader"`
	Application Addr `yaml:"application"`
	Metadata    Addr `yaml:"metadata"`
	// VectorTable is programmed into VTOR before the jump.
	// Default: the application base.
	VectorTable Addr `yaml:"vector_table"`
}

// FlashConfig configures the flash image file.
type FlashConfig struct {
	// Image is the path of the flash image file. It is created
	// erased if missing.
	// Default: flash.img
	Image string `yaml:"image"`

	// Regions are the valid flash address ranges.
	// Default: the two code flash blocks.
	Regions []RegionConfig `yaml:"regions"`

	// Protected lists addresses of sectors that reject writes
	// and erases.
	Protected []Addr `yaml:"protected"`
}

type RegionConfig struct {
	Base Addr `yaml:"base"`
	Size Addr `yaml:"size"`
}

// LEDConfig names the GPIO pins of the RGB LED. With no pins the
// LED is simulated.
type LEDConfig struct {
	Red   string `yaml:"red"`
	Green string `yaml:"green"`
	Blue  string `yaml:"blue"`

	// Steps limits the simulated failure pattern to a number of
	// brightness steps. Zero runs it forever.
	Steps int `yaml:"steps"`
}

// LogConfig configures the diagnostic log.
type LogConfig struct {
	// Port is the serial device of the UART. Empty logs to
	// standard output.
	Port string `yaml:"port"`

	// Baud is the UART speed.
	// Default: 115200
	Baud int `yaml:"baud"`
}

type WatchdogConfig struct {
	Enabled bool `yaml:"enabled"`

	// Timeout is the longest time between two feeds before the
	// watchdog resets the core. The failure loop feeds once per
	// breathing cycle, 1.62s.
	// Default: 2s
	Timeout time.Duration `yaml:"timeout"`
}

// SimConfig configures the simulated core.
type SimConfig struct {
	// RAM preloads words outside the flash, such as the entry
	// point word the application expects after its initial
	// stack pointer value.
	RAM []WordConfig `yaml:"ram"`
}

type WordConfig struct {
	Addr  Addr `yaml:"addr"`
	Value Addr `yaml:"value"`
}

// Default returns the default configuration.
func Default() *Config {
	l := boot.DefaultLayout
	return &Config{
		Board: "s32k312",
		Layout: LayoutConfig{
			Bootloader:  Addr(l.Bootloader),
			Application: Addr(l.Application),
			Metadata:    Addr(l.Metadata),
			VectorTable: Addr(l.VectorTable),
		},
		Flash: FlashConfig{
			Image: "flash.img",
			Regions: []RegionConfig{
				{Base: Addr(flash.CodeBlock0.Base), Size: Addr(flash.CodeBlock0.Size)},
				{Base: Addr(flash.CodeBlock1.Base), Size: Addr(flash.CodeBlock1.Size)},
			},
		},
		Log: LogConfig{
			Baud: 115200,
		},
		Watchdog: WatchdogConfig{
			Timeout: 2 * time.Second,
		},
	}
}

// Load loads the configuration file at path, or the file named by
// EnvVar if path is empty. Without either it returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads and validates the configuration file at path.
// Fields missing from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a configuration.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	// A file listing regions replaces the default regions.
	cfg.Flash.Regions = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if len(cfg.Flash.Regions) == 0 {
		cfg.Flash.Regions = Default().Flash.Regions
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BootLayout returns the layout for the boot engine.
func (c *Config) BootLayout() boot.Layout {
	return boot.Layout{
		Bootloader:  uint32(c.Layout.Bootloader),
		Application: uint32(c.Layout.Application),
		Metadata:    uint32(c.Layout.Metadata),
		VectorTable: uint32(c.Layout.VectorTable),
	}
}

// Regions returns the flash regions.
func (c *Config) Regions() []flash.Region {
	var regs []flash.Region
	for _, r := range c.Flash.Regions {
		regs = append(regs, flash.Region{Base: uint32(r.Base), Size: uint32(r.Size)})
	}
	return regs
}

// Span returns the smallest region covering all flash regions.
func (c *Config) Span() flash.Region {
	return flash.Span(c.Regions())
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	regs := c.Regions()
	for i, r := range regs {
		switch {
		case r.Size == 0:
			errs = append(errs, fmt.Errorf("flash.regions[%d]: empty", i))
			continue
		case r.Base%flash.SectorSize != 0 || r.Size%flash.SectorSize != 0:
			errs = append(errs, fmt.Errorf("flash.regions[%d]: %v not sector aligned", i, r))
		case r.Base > ^uint32(0)-(r.Size-1):
			errs = append(errs, fmt.Errorf("flash.regions[%d]: overflows the address space", i))
			continue
		}
		for j, o := range regs[:i] {
			if o.Size != 0 && r.Base <= o.End() && o.Base <= r.End() {
				errs = append(errs, fmt.Errorf("flash.regions[%d]: %v overlaps flash.regions[%d]", i, r, j))
			}
		}
	}

	inFlash := func(addr, size uint32) bool {
		for _, r := range regs {
			if r.Size != 0 && addr >= r.Base && size <= r.Size && addr-r.Base <= r.Size-size {
				return true
			}
		}
		return false
	}
	l := c.Layout
	if !inFlash(uint32(l.Bootloader), 4) {
		errs = append(errs, fmt.Errorf("layout.bootloader: %#08x outside flash", uint32(l.Bootloader)))
	}
	if !inFlash(uint32(l.Application), 16) {
		errs = append(errs, fmt.Errorf("layout.application: %#08x outside flash", uint32(l.Application)))
	}
	if !inFlash(uint32(l.Metadata), appmeta.Size) {
		errs = append(errs, fmt.Errorf("layout.metadata: %#08x outside flash", uint32(l.Metadata)))
	}
	if l.Bootloader >= l.Application {
		errs = append(errs, errors.New("layout: bootloader must precede the application"))
	}
	if l.Application >= l.Metadata {
		errs = append(errs, errors.New("layout: application must precede the metadata"))
	}
	if l.Application%4 != 0 || l.Metadata%4 != 0 {
		errs = append(errs, errors.New("layout: application and metadata must be word aligned"))
	}
	for i, w := range c.Sim.RAM {
		switch addr := uint32(w.Addr); {
		case addr%4 != 0:
			errs = append(errs, fmt.Errorf("sim.ram[%d]: %#08x not word aligned", i, addr))
		case inFlash(addr, 4):
			errs = append(errs, fmt.Errorf("sim.ram[%d]: %#08x inside flash", i, addr))
		}
	}
	if uint32(l.VectorTable)&^cortexm.VTORMask != 0 {
		errs = append(errs, fmt.Errorf("layout.vector_table: %#08x not 128-byte aligned", uint32(l.VectorTable)))
	}

	leds := 0
	for _, p := range []string{c.LED.Red, c.LED.Green, c.LED.Blue} {
		if p != "" {
			leds++
		}
	}
	if leds != 0 && leds != 3 {
		errs = append(errs, errors.New("led: either all or none of red, green and blue must be set"))
	}
	if c.LED.Steps < 0 {
		errs = append(errs, errors.New("led.steps must not be negative"))
	}
	if c.Log.Baud <= 0 {
		errs = append(errs, fmt.Errorf("log.baud: invalid rate %d", c.Log.Baud))
	}
	if c.Watchdog.Enabled && c.Watchdog.Timeout <= 0 {
		errs = append(errs, errors.New("watchdog.timeout must be positive"))
	}

	return errors.Join(errs...)
}
