//go:build unix

package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"

	"easyboot.dev/appmeta"
	"easyboot.dev/boot"
	"easyboot.dev/config"
	"easyboot.dev/diag"
	"easyboot.dev/driver/uart"
	"easyboot.dev/flash"
	"easyboot.dev/internal/codec"
	"easyboot.dev/uf2"
)

// stackPointerOffset locates the initial stack pointer in an
// application image.
const stackPointerOffset = 0x0C

// openFlash opens the configured flash image.
func openFlash(cfg *config.Config) (*flash.File, error) {
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
	return f, nil
}

// loadApp reads an application binary or UF2 file.
func loadApp(path string, addr uint32) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".uf2") {
		return data, nil
	}
	start, image, err := uf2.Decode(bytes.NewReader(data), uf2.FamilyS32K3)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if start != addr {
		return nil, fmt.Errorf("%s: image targets %#08x, application starts at %#08x", path, start, addr)
	}
	return image, nil
}

// pack installs the application at path and its metadata into
// the flash image.
func pack(cfg *config.Config, path, name, version string, built time.Time) error {
	l := cfg.BootLayout()
	image, err := loadApp(path, l.Application)
	if err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	if len(image) == 0 {
		return fmt.Errorf("pack: %s: empty image", path)
	}
	if room := l.Metadata - l.Application; uint64(len(image)) > uint64(room) {
		return fmt.Errorf("pack: %s: %d bytes exceed the %d bytes before the metadata", path, len(image), room)
	}
	if len(name) > appmeta.NameSize-1 {
		glog.Warningf("pack: name %q truncated to %d bytes", name, appmeta.NameSize-1)
	}
	if len(version) > appmeta.VersionSize-1 {
		glog.Warningf("pack: version %q truncated to %d bytes", version, appmeta.VersionSize-1)
	}
	if len(image) >= stackPointerOffset+4 {
		sp := binary.LittleEndian.Uint32(image[stackPointerOffset:])
		if !boot.ValidStackPointer(sp) {
			glog.Warningf("pack: %s: initial stack pointer %#08x will be rejected at boot", path, sp)
		}
	}
	rec := appmeta.New(name, version, built, l.Application, image)
	enc, err := rec.MarshalBinary()
	if err != nil {
		return err
	}

	f, err := openFlash(cfg)
	if err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	defer f.Close()
	// Pad to whole words with erased bytes.
	padded := image
	if n := len(image) % 4; n != 0 {
		padded = append(image[:len(image):len(image)], bytes.Repeat([]byte{flash.Erased}, 4-n)...)
	}
	if err := flash.Program(f, l.Application, padded); err != nil {
		return fmt.Errorf("pack: application: %w", err)
	}
	if err := flash.Program(f, l.Metadata, enc); err != nil {
		return fmt.Errorf("pack: metadata: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	glog.Infof("packed %s %s: %d bytes at %#08x, CRC32 0x%08X", rec.Name(), rec.VersionString(), rec.ImageSize, rec.FlashAddr, rec.CRC32)
	return nil
}

// readRecord reads the metadata record of the flash image.
func readRecord(cfg *config.Config) (*flash.File, appmeta.Record, error) {
	f, err := openFlash(cfg)
	if err != nil {
		return nil, appmeta.Record{}, err
	}
	r, err := appmeta.Read(f, cfg.BootLayout().Metadata)
	if err != nil {
		f.Close()
		return nil, appmeta.Record{}, err
	}
	return f, r, nil
}

type lineWriter struct {
	w io.Writer
}

func (l lineWriter) LogLine(s string) {
	fmt.Fprintln(l.w, s)
}

// info prints the metadata record.
func info(w io.Writer, cfg *config.Config) error {
	f, err := openFlash(cfg)
	if err != nil {
		return err
	}
	defer f.Close()
	m := appmeta.NewReader(f)
	m.Addr = cfg.BootLayout().Metadata
	return m.PrintInfo(lineWriter{w})
}

// metadataInfo is the CBOR form of a metadata record.
type metadataInfo struct {
	Name      string `cbor:"1,keyasint"`
	Version   string `cbor:"2,keyasint"`
	BuildTime uint32 `cbor:"3,keyasint"`
	FlashAddr uint32 `cbor:"4,keyasint"`
	ImageSize uint32 `cbor:"5,keyasint"`
	CRC32     uint32 `cbor:"6,keyasint"`
}

func encodeInfo(cfg *config.Config) ([]byte, error) {
	f, r, err := readRecord(cfg)
	if err != nil {
		return nil, err
	}
	f.Close()
	return codec.Marshal(metadataInfo{
		Name:      r.Name(),
		Version:   r.VersionString(),
		BuildTime: r.BuildTime,
		FlashAddr: r.FlashAddr,
		ImageSize: r.ImageSize,
		CRC32:     r.CRC32,
	})
}

func writeCBOR(w io.Writer, cfg *config.Config) error {
	data, err := encodeInfo(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func printDiag(w io.Writer, cfg *config.Config) error {
	data, err := encodeInfo(cfg)
	if err != nil {
		return err
	}
	s, err := codec.Diagnose(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, s)
	return err
}

// verify checks the installed application the way the
// bootloader would, and its checksum.
func verify(w io.Writer, cfg *config.Config) error {
	l := cfg.BootLayout()
	f, r, err := readRecord(cfg)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	defer f.Close()
	var word [4]byte
	if err := f.Read(l.Application+stackPointerOffset, word[:]); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	var errs []error
	if sp := binary.LittleEndian.Uint32(word[:]); !boot.ValidStackPointer(sp) {
		errs = append(errs, fmt.Errorf("verify: invalid initial stack pointer %#08x", sp))
	}
	if r.FlashAddr != l.Application {
		errs = append(errs, fmt.Errorf("verify: record describes an image at %#08x, application starts at %#08x", r.FlashAddr, l.Application))
	} else if err := appmeta.Verify(f, r); err != nil {
		errs = append(errs, fmt.Errorf("verify: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s: %d bytes, CRC32 0x%08X: ok\n", r.Name(), r.VersionString(), r.ImageSize, r.CRC32)
	return nil
}

// erase erases the application and its metadata, or every
// region if all is set.
func erase(cfg *config.Config, all bool) error {
	f, err := openFlash(cfg)
	if err != nil {
		return fmt.Errorf("erase: %w", err)
	}
	defer f.Close()
	l := cfg.BootLayout()
	var regions []flash.Region
	if all {
		regions = cfg.Regions()
	} else {
		start := l.Application &^ (flash.SectorSize - 1)
		end := l.Metadata + appmeta.Size
		regions = []flash.Region{{Base: start, Size: end - start}}
	}
	for _, r := range regions {
		count := (r.Size + flash.SectorSize - 1) / flash.SectorSize
		if err := f.EraseSectors(r.Base, count); err != nil {
			return fmt.Errorf("erase: %v: %w", r, err)
		}
		glog.Infof("erased %d sectors from %#08x", count, r.Base)
	}
	return f.Sync()
}

// convertUF2 converts the binary in to a UF2 file targeting
// addr, or the UF2 file in to a binary if unpack is set.
func convertUF2(in, out string, unpack bool, addr uint32) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	if unpack {
		start, image, err := uf2.Decode(bytes.NewReader(data), uf2.FamilyS32K3)
		if err != nil {
			return fmt.Errorf("uf2: %s: %w", in, err)
		}
		glog.Infof("%s: %d bytes at %#08x", in, len(image), start)
		buf.Write(image)
	} else if err := uf2.Encode(buf, uf2.FamilyS32K3, addr, data); err != nil {
		return fmt.Errorf("uf2: %s: %w", in, err)
	}
	return os.WriteFile(out, buf.Bytes(), 0o644)
}

// monitor prints the lines received on the serial port until
// a line contains until.
func monitor(w io.Writer, port string, baud int, until string) error {
	s, err := uart.Open(port, baud, 0)
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	defer s.Close()
	return printLines(w, s, until)
}

func printLines(w io.Writer, r io.Reader, until string) error {
	var found bool
	err := uart.Lines(r, func(line string) bool {
		fmt.Fprintf(w, "%s %s\n", time.Now().Format(time.TimeOnly), line)
		found = until != "" && strings.Contains(line, until)
		return !found
	})
	if err == nil && until != "" && !found {
		return fmt.Errorf("monitor: %q not received", until)
	}
	return err
}

var _ diag.Logger = lineWriter{}
