//go:build unix

// Command bootctl builds, inspects and verifies flash images for
// the bootloader, and monitors its diagnostic UART.
//
// Subcommand pack installs an application binary or UF2 file
// with its metadata record into a flash image. Subcommands info
// and verify inspect the installed application, erase erases it,
// uf2 converts between binary and UF2 files and monitor prints
// the lines received from the UART.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"easyboot.dev/config"
)

var (
	packCmd    = newCommand("pack", "[flags] app.bin|app.uf2")
	infoCmd    = newCommand("info", "[flags]")
	verifyCmd  = newCommand("verify", "[flags]")
	eraseCmd   = newCommand("erase", "[flags]")
	uf2Cmd     = newCommand("uf2", "[flags] input output")
	monitorCmd = newCommand("monitor", "[flags]")

	packName    = packCmd.String("name", "", "application `name`, at most 15 bytes")
	packVersion = packCmd.String("version", "", "application `version`, at most 11 bytes")
	packBuilt   = packCmd.Int64("build-time", 0, "build time in UNIX `seconds` (default now)")

	infoCBOR = infoCmd.Bool("cbor", false, "write the record to stdout as CBOR")
	infoDiag = infoCmd.Bool("diag", false, "print the CBOR record in diagnostic notation")

	eraseAll = eraseCmd.Bool("all", false, "erase every flash region, including the bootloader")

	uf2Unpack = uf2Cmd.BoolP("unpack", "x", false, "convert a UF2 file to a binary")

	monitorPort  = monitorCmd.StringP("port", "p", "", "serial `device` (default from the configuration)")
	monitorBaud  = monitorCmd.Int("baud", 0, "UART `rate` (default from the configuration)")
	monitorUntil = monitorCmd.String("until", "", "exit after a line containing `text`")

	configFile string
	imageFile  string
)

func newCommand(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	fs.StringVar(&configFile, "config", "", "board configuration `file` (default $"+config.EnvVar+")")
	fs.StringVar(&imageFile, "image", "", "flash image `file`, overriding the configuration")
	fs.AddGoFlagSet(flag.CommandLine)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: bootctl %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

func main() {
	if len(os.Args) <= 1 {
		fmt.Fprintf(os.Stderr, "bootctl: specify 'pack', 'info', 'verify', 'erase', 'uf2' or 'monitor' command\n")
		os.Exit(2)
	}
	err := run(os.Args[1], os.Args[2:])
	glog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootctl: %v\n", err)
		os.Exit(2)
	}
}

func run(cmd string, args []string) error {
	var fs *pflag.FlagSet
	switch cmd {
	case "pack":
		fs = packCmd
	case "info":
		fs = infoCmd
	case "verify":
		fs = verifyCmd
	case "erase":
		fs = eraseCmd
	case "uf2":
		fs = uf2Cmd
	case "monitor":
		fs = monitorCmd
	default:
		return fmt.Errorf("unknown command: %q", cmd)
	}
	fs.Parse(args)
	// glog reads its flags from the standard flag set.
	flag.CommandLine.Parse(nil)

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if imageFile != "" {
		cfg.Flash.Image = imageFile
	}

	switch cmd {
	case "pack":
		if fs.NArg() != 1 {
			fs.Usage()
			os.Exit(2)
		}
		built := time.Now()
		if *packBuilt != 0 {
			built = time.Unix(*packBuilt, 0)
		}
		return pack(cfg, fs.Arg(0), *packName, *packVersion, built)
	case "info":
		switch {
		case *infoDiag:
			return printDiag(os.Stdout, cfg)
		case *infoCBOR:
			return writeCBOR(os.Stdout, cfg)
		default:
			return info(os.Stdout, cfg)
		}
	case "verify":
		return verify(os.Stdout, cfg)
	case "erase":
		return erase(cfg, *eraseAll)
	case "uf2":
		if fs.NArg() != 2 {
			fs.Usage()
			os.Exit(2)
		}
		return convertUF2(fs.Arg(0), fs.Arg(1), *uf2Unpack, cfg.BootLayout().Application)
	case "monitor":
		port, baud := *monitorPort, *monitorBaud
		if port == "" {
			port = cfg.Log.Port
		}
		if baud == 0 {
			baud = cfg.Log.Baud
		}
		return monitor(os.Stdout, port, baud, *monitorUntil)
	}
	panic("unreachable")
}
