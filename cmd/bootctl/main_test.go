//go:build unix

package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"easyboot.dev/appmeta"
	"easyboot.dev/config"
	"easyboot.dev/flash"
	"easyboot.dev/internal/codec"
)

var testBuilt = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Flash.Image = filepath.Join(t.TempDir(), "flash.img")
	return cfg
}

// testApp writes an application binary with a valid vector
// table head and returns its path and contents.
func testApp(t *testing.T, size int) (string, []byte) {
	app := make([]byte, size)
	for i := range app {
		app[i] = byte(i)
	}
	binary.LittleEndian.PutUint32(app[stackPointerOffset:], 0x20400000)
	path := filepath.Join(t.TempDir(), "app.bin")
	require.NoError(t, os.WriteFile(path, app, 0o644))
	return path, app
}

func TestPackInfoVerify(t *testing.T) {
	cfg := testConfig(t)
	path, app := testApp(t, 3*flash.SectorSize+3)
	require.NoError(t, pack(cfg, path, "MyApp", "1.2.3", testBuilt))

	out := new(bytes.Buffer)
	require.NoError(t, info(out, cfg))
	require.Equal(t, strings.Join([]string{
		"App Name: MyApp",
		"Version: 1.2.3",
		"Build Time: 2024-05-15 12:00:00 (1715774400)",
		"Flash Address: 0x00440000",
		"Image Size: 24579 bytes",
		fmt.Sprintf("CRC32: 0x%08X", appmeta.Checksum(app)),
		"",
	}, "\n"), out.String())

	out.Reset()
	require.NoError(t, verify(out, cfg))
	require.Contains(t, out.String(), "MyApp 1.2.3: 24579 bytes")

	out.Reset()
	require.NoError(t, writeCBOR(out, cfg))
	var m metadataInfo
	require.NoError(t, codec.Unmarshal(out.Bytes(), &m))
	require.Equal(t, "MyApp", m.Name)
	require.Equal(t, uint32(len(app)), m.ImageSize)

	out.Reset()
	require.NoError(t, printDiag(out, cfg))
	require.Contains(t, out.String(), `1: "MyApp"`)
}

func TestVerifyCorrupt(t *testing.T) {
	cfg := testConfig(t)
	path, _ := testApp(t, 1024)
	require.NoError(t, pack(cfg, path, "MyApp", "1.2.3", testBuilt))

	f, err := openFlash(cfg)
	require.NoError(t, err)
	require.NoError(t, flash.Program(f, cfg.BootLayout().Application+512, []byte{0, 0, 0, 0}))
	require.NoError(t, f.Close())

	err = verify(new(bytes.Buffer), cfg)
	var mismatch *appmeta.MismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
}

func TestVerifyEmpty(t *testing.T) {
	cfg := testConfig(t)
	err := verify(new(bytes.Buffer), cfg)
	require.ErrorIs(t, err, appmeta.ErrInvalid)
	require.ErrorIs(t, info(new(bytes.Buffer), cfg), appmeta.ErrInvalid)
}

func TestPackTooLarge(t *testing.T) {
	cfg := testConfig(t)
	l := cfg.BootLayout()
	path, _ := testApp(t, int(l.Metadata-l.Application)+4)
	require.ErrorContains(t, pack(cfg, path, "Big", "1", testBuilt), "exceed")
}

func TestErase(t *testing.T) {
	cfg := testConfig(t)
	path, _ := testApp(t, 1024)
	require.NoError(t, pack(cfg, path, "MyApp", "1.2.3", testBuilt))
	require.NoError(t, erase(cfg, false))
	require.ErrorIs(t, verify(new(bytes.Buffer), cfg), appmeta.ErrInvalid)

	cfg.Flash.Protected = []config.Addr{config.Addr(cfg.BootLayout().Application)}
	var ferr flash.Error
	require.True(t, errors.As(erase(cfg, false), &ferr))
	require.Equal(t, flash.ErrSectorProtected, ferr)
}

func TestPackUF2(t *testing.T) {
	cfg := testConfig(t)
	path, app := testApp(t, 1000)
	uf2Path := filepath.Join(t.TempDir(), "app.uf2")
	require.NoError(t, convertUF2(path, uf2Path, false, cfg.BootLayout().Application))
	require.NoError(t, pack(cfg, uf2Path, "MyApp", "2.0", testBuilt))
	require.NoError(t, verify(new(bytes.Buffer), cfg))

	binPath := filepath.Join(t.TempDir(), "app.bin")
	require.NoError(t, convertUF2(uf2Path, binPath, true, 0))
	got, err := os.ReadFile(binPath)
	require.NoError(t, err)
	require.Equal(t, app, got)

	require.ErrorContains(t, pack(cfg, uf2Path+".missing", "x", "1", testBuilt), "no such file")
	other := filepath.Join(t.TempDir(), "other.uf2")
	require.NoError(t, convertUF2(path, other, false, 0x00500000))
	require.ErrorContains(t, pack(cfg, other, "x", "1", testBuilt), "targets")
}

func TestPrintLines(t *testing.T) {
	in := strings.NewReader("Bootloader dev\r\nBooting MyApp 1.2.3\r\nApp Name: MyApp\r\n")
	out := new(bytes.Buffer)
	require.NoError(t, printLines(out, in, "Booting"))
	require.Contains(t, out.String(), " Booting MyApp 1.2.3\n")
	require.NotContains(t, out.String(), "App Name")

	err := printLines(new(bytes.Buffer), strings.NewReader("Bootloader dev\r\n"), "Boot failure")
	require.ErrorContains(t, err, "not received")
}

func TestRegionGap(t *testing.T) {
	cfg, err := config.Parse([]byte(`
flash:
  regions:
    - base: 0x00400000
      size: 0x1D2000
    - base: 0x00600000
      size: 0x100000
`))
	require.NoError(t, err)
	cfg.Flash.Image = filepath.Join(t.TempDir(), "flash.img")
	require.Equal(t, flash.Region{Base: 0x00400000, Size: 0x300000}, cfg.Span())

	f, err := openFlash(cfg)
	require.NoError(t, err)
	defer f.Close()
	buf := make([]byte, 4)
	require.Equal(t, flash.ErrInvalidParam, f.Read(0x005E0000, buf))
	require.Equal(t, flash.ErrInvalidParam, f.Write(0x005E0000, buf))
	require.NoError(t, f.Read(0x00600000, buf))
}
