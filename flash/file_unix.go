//go:build unix && !tinygo

package flash

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a flash device backed by a memory mapped image file.
// The file holds the span of the regions, including any gaps
// between them; a missing file is created fully erased. Accesses
// outside the regions fail like those of the device.
type File struct {
	*Memory
	f *os.File
}

func OpenFile(path string, regions []Region) (*File, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("flash: %s: no regions", path)
	}
	for _, reg := range regions {
		if reg.Size == 0 || reg.Base%SectorSize != 0 || reg.Size%SectorSize != 0 {
			return nil, fmt.Errorf("flash: %s: region %v is not sector aligned", path, reg)
		}
	}
	r := Span(regions)
	if r.Size == 0 {
		return nil, fmt.Errorf("flash: %s: regions span the address space", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("flash: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("flash: %w", err)
	}
	switch size := fi.Size(); {
	case size == 0:
		if _, err := f.Write(bytes.Repeat([]byte{Erased}, int(r.Size))); err != nil {
			f.Close()
			return nil, fmt.Errorf("flash: %s: %w", path, err)
		}
	case size != int64(r.Size):
		f.Close()
		return nil, fmt.Errorf("flash: %s: image is %d bytes, region %v needs %d", path, size, r, r.Size)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(r.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("flash: mmap %s: %w", path, err)
	}
	m := NewMemory(r.Base, mem)
	m.regions = append([]Region(nil), regions...)
	return &File{Memory: m, f: f}, nil
}

// Sync flushes written sectors to the image file.
func (d *File) Sync() error {
	return unix.Msync(d.mem, unix.MS_SYNC)
}

func (d *File) Close() error {
	d.Free()
	err := unix.Munmap(d.mem)
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	d.mem = nil
	return err
}
