// Package appmeta reads the metadata record that the flashing
// tool stores next to the application image.
//
// The record has a fixed, packed little endian layout:
//
//	0x00  magic             uint32  0xAABBCCDD
//	0x04  app_name          [16]byte NUL terminated
//	0x14  version           [12]byte NUL terminated
//	0x20  build_timestamp   uint32  UNIX seconds
//	0x24  flash_start_addr  uint32
//	0x28  image_size        uint32
//	0x2C  crc32             uint32  IEEE, over the image only
//
// Only the magic is checked. The other fields are reported as
// stored, even if a partial flash left them garbled.
package appmeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"easyboot.dev/diag"
	"easyboot.dev/flash"
)

const (
	Magic = 0xAABBCCDD
	// Addr is the flash address of the record.
	Addr = 0x005CFFF0
	// Size of the encoded record.
	Size = 0x30

	NameSize    = 16
	VersionSize = 12

	offMagic     = 0x00
	offName      = 0x04
	offVersion   = 0x14
	offTimestamp = 0x20
	offFlash     = 0x24
	offSize      = 0x28
	offCRC       = 0x2c
)

// Unknown is displayed in place of the fields of an invalid
// record.
const Unknown = "Unknown"

var (
	ErrInvalid     = errors.New("appmeta: invalid app metadata")
	ErrBufferEmpty = errors.New("appmeta: empty destination buffer")
)

// Record is a decoded metadata record.
type Record struct {
	Magic     uint32
	AppName   [NameSize]byte
	Version   [VersionSize]byte
	BuildTime uint32
	FlashAddr uint32
	ImageSize uint32
	CRC32     uint32
}

// Valid reports whether the record carries the expected magic.
func (r *Record) Valid() bool {
	return r.Magic == Magic
}

// Name returns the application name up to the first NUL.
func (r *Record) Name() string {
	return cstring(r.AppName[:])
}

// VersionString returns the version up to the first NUL.
func (r *Record) VersionString() string {
	return cstring(r.Version[:])
}

// Built returns the build timestamp.
func (r *Record) Built() time.Time {
	return time.Unix(int64(r.BuildTime), 0).UTC()
}

// Decode decodes a record from b, which must hold at least Size
// bytes.
func Decode(b []byte) (Record, error) {
	if len(b) < Size {
		return Record{}, fmt.Errorf("appmeta: short record: %d bytes", len(b))
	}
	bo := binary.LittleEndian
	var r Record
	r.Magic = bo.Uint32(b[offMagic:])
	copy(r.AppName[:], b[offName:offName+NameSize])
	copy(r.Version[:], b[offVersion:offVersion+VersionSize])
	r.BuildTime = bo.Uint32(b[offTimestamp:])
	r.FlashAddr = bo.Uint32(b[offFlash:])
	r.ImageSize = bo.Uint32(b[offSize:])
	r.CRC32 = bo.Uint32(b[offCRC:])
	return r, nil
}

// MarshalBinary encodes the record in its flash layout.
func (r Record) MarshalBinary() ([]byte, error) {
	bo := binary.LittleEndian
	b := make([]byte, Size)
	bo.PutUint32(b[offMagic:], r.Magic)
	copy(b[offName:], r.AppName[:])
	copy(b[offVersion:], r.Version[:])
	bo.PutUint32(b[offTimestamp:], r.BuildTime)
	bo.PutUint32(b[offFlash:], r.FlashAddr)
	bo.PutUint32(b[offSize:], r.ImageSize)
	bo.PutUint32(b[offCRC:], r.CRC32)
	return b, nil
}

// New returns a valid record. Name and version are truncated to
// leave room for their terminators.
func New(name, version string, built time.Time, flashAddr uint32, image []byte) Record {
	r := Record{
		Magic:     Magic,
		BuildTime: uint32(built.Unix()),
		FlashAddr: flashAddr,
		ImageSize: uint32(len(image)),
		CRC32:     Checksum(image),
	}
	copy(r.AppName[:NameSize-1], name)
	copy(r.Version[:VersionSize-1], version)
	return r
}

// Read reads the record at addr. It returns ErrInvalid if the
// magic doesn't match. Flash errors are returned unchanged.
func Read(f flash.Reader, addr uint32) (Record, error) {
	var buf [Size]byte
	if err := f.Read(addr, buf[:]); err != nil {
		return Record{}, err
	}
	r, err := Decode(buf[:])
	if err != nil {
		return Record{}, err
	}
	if !r.Valid() {
		return Record{}, ErrInvalid
	}
	return r, nil
}

// Reader reads the fields of the record at a fixed address.
// Every method reads the record anew.
type Reader struct {
	Flash flash.Reader
	Addr  uint32
}

func NewReader(f flash.Reader) *Reader {
	return &Reader{Flash: f, Addr: Addr}
}

func (m *Reader) Read() (Record, error) {
	return Read(m.Flash, m.Addr)
}

// AppName copies the application name into dst as a NUL
// terminated string, truncated to len(dst)-1 bytes.
func (m *Reader) AppName(dst []byte) error {
	if len(dst) == 0 {
		return ErrBufferEmpty
	}
	r, err := m.Read()
	if err != nil {
		return err
	}
	copyString(dst, r.AppName[:])
	return nil
}

// Version copies the version into dst as a NUL terminated
// string, truncated to len(dst)-1 bytes.
func (m *Reader) Version(dst []byte) error {
	if len(dst) == 0 {
		return ErrBufferEmpty
	}
	r, err := m.Read()
	if err != nil {
		return err
	}
	copyString(dst, r.Version[:])
	return nil
}

// DisplayName returns the application name and version, or
// Unknown for both if the record can't be read.
func (m *Reader) DisplayName() (name, version string) {
	r, err := m.Read()
	if err != nil {
		return Unknown, Unknown
	}
	return r.Name(), r.VersionString()
}

// PrintInfo logs the fields of the record, one per line.
func (m *Reader) PrintInfo(l diag.Logger) error {
	r, err := m.Read()
	if err != nil {
		l.LogLine("Invalid app metadata")
		return err
	}
	diag.Printf(l, "App Name: %s", r.Name())
	diag.Printf(l, "Version: %s", r.VersionString())
	diag.Printf(l, "Build Time: %s (%d)", r.Built().Format(time.DateTime), r.BuildTime)
	diag.Printf(l, "Flash Address: 0x%08X", r.FlashAddr)
	diag.Printf(l, "Image Size: %d bytes", r.ImageSize)
	diag.Printf(l, "CRC32: 0x%08X", r.CRC32)
	return nil
}

// copyString copies the NUL terminated string in src to dst,
// truncating it to len(dst)-1 bytes. The rest of dst is zeroed.
func copyString(dst, src []byte) {
	s := src
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	n := copy(dst[:len(dst)-1], s)
	clear(dst[n:])
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
