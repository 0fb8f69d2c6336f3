// Package gimi reads GIMI files: profiled HEIF containers carrying
// georeferenced imagery with embedded KLV provenance metadata.
package gimi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Box types relevant to the GIMI profile. Everything else is skipped.
const (
	TypeFtyp = "ftyp"
	TypeMeta = "meta"
	TypeHdlr = "hdlr"
	TypePitm = "pitm"
	TypeIinf = "iinf"
	TypeInfe = "infe"
	TypeIref = "iref"
	TypeIloc = "iloc"
	TypeIprp = "iprp"
	TypeIpco = "ipco"
	TypeIpma = "ipma"
	TypeIspe = "ispe"
	TypePixi = "pixi"
	TypeHvcC = "hvcC"
	TypeUncC = "uncC"
	TypeIdat = "idat"
	TypeMdat = "mdat"
	TypeUUID = "uuid"
)

// BoxHeader is the parsed header of a single ISOBMFF box.
type BoxHeader struct {
	Type       string
	Size       int64 // total size including the header
	HeaderSize int64
	Offset     int64 // absolute file offset of the box start
	UserType   []byte
}

// PayloadOffset returns the absolute file offset of the box payload.
func (h *BoxHeader) PayloadOffset() int64 {
	return h.Offset + h.HeaderSize
}

// PayloadSize returns the size of the box payload in bytes.
func (h *BoxHeader) PayloadSize() int64 {
	return h.Size - h.HeaderSize
}

// ReadBoxHeader reads the box header at offset off. A 32-bit size of 1
// switches to the 64-bit largesize form; a size of 0 extends the box to
// the end of the file.
func ReadBoxHeader(r io.ReaderAt, off, fileSize int64) (*BoxHeader, error) {
	var buf [16]byte
	if _, err := r.ReadAt(buf[:8], off); err != nil {
		return nil, err
	}

	h := &BoxHeader{
		Type:       string(buf[4:8]),
		Size:       int64(binary.BigEndian.Uint32(buf[:4])),
		HeaderSize: 8,
		Offset:     off,
	}

	switch h.Size {
	case 0:
		h.Size = fileSize - off
	case 1:
		if _, err := r.ReadAt(buf[8:16], off+8); err != nil {
			return nil, err
		}
		h.Size = int64(binary.BigEndian.Uint64(buf[8:16]))
		h.HeaderSize = 16
	}

	if h.Type == TypeUUID {
		userType := make([]byte, 16)
		if _, err := r.ReadAt(userType, off+h.HeaderSize); err != nil {
			return nil, err
		}
		h.UserType = userType
		h.HeaderSize += 16
	}

	if h.Size < h.HeaderSize {
		return nil, fmt.Errorf("box '%s' at offset %d has invalid size %d", h.Type, off, h.Size)
	}
	if off+h.Size > fileSize {
		return nil, fmt.Errorf("box '%s' at offset %d overruns the file", h.Type, off)
	}
	return h, nil
}

// fullBox holds the version and flags prefix common to ISO full boxes.
type fullBox struct {
	Version byte
	Flags   uint32
}

func readFullBox(p *payload) (fullBox, error) {
	v, err := p.uint32()
	if err != nil {
		return fullBox{}, err
	}
	return fullBox{Version: byte(v >> 24), Flags: v & 0xFFFFFF}, nil
}

// payload is a cursor over the bytes of a single box payload.
type payload struct {
	data []byte
	pos  int
	box  string
}

func newPayload(r io.ReaderAt, h *BoxHeader) (*payload, error) {
	data := make([]byte, h.PayloadSize())
	if _, err := r.ReadAt(data, h.PayloadOffset()); err != nil {
		return nil, fmt.Errorf("reading '%s' payload: %v", h.Type, err)
	}
	return &payload{data: data, box: h.Type}, nil
}

func (p *payload) remaining() int { return len(p.data) - p.pos }

func (p *payload) bytes(n int) ([]byte, error) {
	if p.remaining() < n {
		return nil, fmt.Errorf("box '%s' payload truncated at offset %d", p.box, p.pos)
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

func (p *payload) uint8() (uint8, error) {
	b, err := p.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (p *payload) uint16() (uint16, error) {
	b, err := p.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (p *payload) uint32() (uint32, error) {
	b, err := p.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (p *payload) uint64() (uint64, error) {
	b, err := p.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// uint reads an unsigned big-endian integer of 0, 2, 4 or 8 bytes, the
// field widths iloc declares through its *_size nibbles.
func (p *payload) uint(size int) (uint64, error) {
	switch size {
	case 0:
		return 0, nil
	case 2:
		v, err := p.uint16()
		return uint64(v), err
	case 4:
		v, err := p.uint32()
		return uint64(v), err
	case 8:
		return p.uint64()
	}
	return 0, fmt.Errorf("box '%s': unsupported field size %d", p.box, size)
}

func (p *payload) cstring() (string, error) {
	i := bytes.IndexByte(p.data[p.pos:], 0)
	if i < 0 {
		s := string(p.data[p.pos:])
		p.pos = len(p.data)
		return s, nil
	}
	s := string(p.data[p.pos : p.pos+i])
	p.pos += i + 1
	return s, nil
}

// walkBoxes calls fn for each box in [off, end). fn may recurse by
// calling walkBoxes on the box payload range.
func walkBoxes(r io.ReaderAt, off, end, fileSize int64, fn func(h *BoxHeader) error) error {
	for off < end {
		h, err := ReadBoxHeader(r, off, fileSize)
		if err != nil {
			return err
		}
		if err := fn(h); err != nil {
			return err
		}
		off += h.Size
	}
	return nil
}
