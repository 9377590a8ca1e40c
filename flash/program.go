package flash

// Program writes data at addr while preserving the contents of
// the surrounding sectors that Write would otherwise erase. The
// range is padded to whole words with erased bytes.
func Program(d Device, addr uint32, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidParam
	}
	start := sectorOf(addr)
	end := addr + uint32(len(data))
	if end < addr {
		return ErrInvalidParam
	}
	stop := sectorOf(end-1) + SectorSize
	buf := make([]byte, stop-start)
	if err := d.Read(start, buf); err != nil {
		return err
	}
	copy(buf[addr-start:], data)
	return d.Write(start, buf)
}
