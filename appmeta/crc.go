package appmeta

import (
	"fmt"
	"hash/crc32"

	"easyboot.dev/flash"
)

// Checksum returns the IEEE CRC-32 of an image.
func Checksum(image []byte) uint32 {
	return crc32.ChecksumIEEE(image)
}

// ImageCRC computes the checksum of the image described by r,
// reading it from f in sector sized chunks. Images whose size is
// not a word multiple are read up to the next word and the
// padding is excluded from the checksum.
func ImageCRC(f flash.Reader, r Record) (uint32, error) {
	var buf [flash.SectorSize]byte
	crc := uint32(0)
	addr, remaining := r.FlashAddr, r.ImageSize
	for remaining > 0 {
		n := min(remaining, uint32(len(buf)))
		words := (n + 3) &^ 3
		if err := f.Read(addr, buf[:words]); err != nil {
			return 0, fmt.Errorf("appmeta: image at %#08x: %w", addr, err)
		}
		crc = crc32.Update(crc, crc32.IEEETable, buf[:n])
		addr += n
		remaining -= n
	}
	return crc, nil
}

// MismatchError reports an image whose checksum differs from its
// record.
type MismatchError struct {
	Stored, Computed uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("appmeta: image checksum 0x%08X, record says 0x%08X", e.Computed, e.Stored)
}

// Verify recomputes the image checksum and compares it with the
// stored one. The boot path doesn't call it; it serves the
// flashing tools.
func Verify(f flash.Reader, r Record) error {
	crc, err := ImageCRC(f, r)
	if err != nil {
		return err
	}
	if crc != r.CRC32 {
		return &MismatchError{Stored: r.CRC32, Computed: crc}
	}
	return nil
}
