package gimi

import (
	"fmt"
	"io"
	"os"
)

// Major brands accepted as GIMI input. geo1 is the GIMI brand from the
// OGC testbed profile; the generic HEIF brands cover sample files that
// predate it.
var supportedBrands = map[string]bool{
	"geo1": true,
	"mif1": true,
	"msf1": true,
	"heic": true,
	"heim": true,
	"heis": true,
	"heix": true,
}

// Item is one entry of the container's item table with its location
// extents and associated properties resolved.
type Item struct {
	ID          uint32
	Type        string // infe item_type, e.g. "hvc1", "unci", "mime"
	Name        string
	ContentType string // for mime items, e.g. "application/x-klv"

	Properties []Property
	Extents    []Extent

	// ConstructionMethod 0 locates extents in the file, 1 in idat.
	ConstructionMethod uint8
	BaseOffset         uint64
}

// Extent is a single iloc extent of an item payload.
type Extent struct {
	Offset uint64
	Length uint64
}

// Property is one box from the ipco container associated to an item.
type Property struct {
	Type    string
	Payload []byte
}

// Reference is a single item reference (iref), e.g. a cdsc link from a
// metadata item to the image it describes.
type Reference struct {
	Type   string
	FromID uint32
	ToIDs  []uint32
}

// File is a parsed GIMI container. The underlying reader stays open for
// item payload extraction until Close.
type File struct {
	Brand         string
	PrimaryItemID uint32
	Items         []*Item
	References    []Reference

	r    io.ReaderAt
	c    io.Closer
	size int64
	idat []byte
}

// Open parses the container structure of the GIMI file at path.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, err
	}
	f, err := Parse(fh, info.Size())
	if err != nil {
		fh.Close()
		return nil, err
	}
	f.c = fh
	return f, nil
}

// Parse parses a GIMI container from r.
func Parse(r io.ReaderAt, size int64) (*File, error) {
	f := &File{r: r, size: size}

	var sawFtyp, sawMeta bool
	err := walkBoxes(r, 0, size, size, func(h *BoxHeader) error {
		switch h.Type {
		case TypeFtyp:
			sawFtyp = true
			return f.parseFtyp(h)
		case TypeMeta:
			sawMeta = true
			return f.parseMeta(h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sawFtyp {
		return nil, fmt.Errorf("not an ISOBMFF file: no ftyp box")
	}
	if !sawMeta {
		return nil, fmt.Errorf("no meta box: file carries no image items")
	}
	return f, nil
}

// Close releases the underlying file handle, if any.
func (f *File) Close() error {
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

func (f *File) parseFtyp(h *BoxHeader) error {
	p, err := newPayload(f.r, h)
	if err != nil {
		return err
	}
	brand, err := p.bytes(4)
	if err != nil {
		return err
	}
	f.Brand = string(brand)
	if supportedBrands[f.Brand] {
		return nil
	}

	// Fall back to the compatible brand list.
	p.pos += 4 // minor version
	for p.remaining() >= 4 {
		b, _ := p.bytes(4)
		if supportedBrands[string(b)] {
			return nil
		}
	}
	return fmt.Errorf("unsupported brand '%s'", f.Brand)
}

func (f *File) parseMeta(h *BoxHeader) error {
	// meta is a full box; its children start after version/flags.
	var ipco []Property
	var ipma map[uint32][]uint16

	err := walkBoxes(f.r, h.PayloadOffset()+4, h.Offset+h.Size, f.size, func(c *BoxHeader) error {
		switch c.Type {
		case TypePitm:
			return f.parsePitm(c)
		case TypeIinf:
			return f.parseIinf(c)
		case TypeIref:
			return f.parseIref(c)
		case TypeIloc:
			return f.parseIloc(c)
		case TypeIdat:
			p, err := newPayload(f.r, c)
			if err != nil {
				return err
			}
			f.idat = p.data
			return nil
		case TypeIprp:
			var err error
			ipco, ipma, err = f.parseIprp(c)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Attach ipco properties to items through the 1-based ipma indices.
	for _, item := range f.Items {
		for _, idx := range ipma[item.ID] {
			if int(idx) < 1 || int(idx) > len(ipco) {
				return fmt.Errorf("item %d references ipco property %d out of %d", item.ID, idx, len(ipco))
			}
			item.Properties = append(item.Properties, ipco[idx-1])
		}
	}
	return nil
}

func (f *File) parsePitm(h *BoxHeader) error {
	p, err := newPayload(f.r, h)
	if err != nil {
		return err
	}
	fb, err := readFullBox(p)
	if err != nil {
		return err
	}
	if fb.Version == 0 {
		id, err := p.uint16()
		f.PrimaryItemID = uint32(id)
		return err
	}
	f.PrimaryItemID, err = p.uint32()
	return err
}

func (f *File) parseIinf(h *BoxHeader) error {
	p, err := newPayload(f.r, h)
	if err != nil {
		return err
	}
	fb, err := readFullBox(p)
	if err != nil {
		return err
	}
	if fb.Version == 0 {
		if _, err := p.uint16(); err != nil {
			return err
		}
	} else {
		if _, err := p.uint32(); err != nil {
			return err
		}
	}

	return walkBoxes(f.r, h.PayloadOffset()+int64(p.pos), h.Offset+h.Size, f.size, func(c *BoxHeader) error {
		if c.Type != TypeInfe {
			return nil
		}
		return f.parseInfe(c)
	})
}

func (f *File) parseInfe(h *BoxHeader) error {
	p, err := newPayload(f.r, h)
	if err != nil {
		return err
	}
	fb, err := readFullBox(p)
	if err != nil {
		return err
	}
	if fb.Version < 2 {
		return fmt.Errorf("infe version %d not supported, GIMI uses version >= 2", fb.Version)
	}

	item := &Item{}
	if fb.Version == 2 {
		id, err := p.uint16()
		if err != nil {
			return err
		}
		item.ID = uint32(id)
	} else {
		if item.ID, err = p.uint32(); err != nil {
			return err
		}
	}
	if _, err := p.uint16(); err != nil { // item_protection_index
		return err
	}
	typ, err := p.bytes(4)
	if err != nil {
		return err
	}
	item.Type = string(typ)
	if item.Name, err = p.cstring(); err != nil {
		return err
	}
	if item.Type == "mime" {
		if item.ContentType, err = p.cstring(); err != nil {
			return err
		}
	}
	f.Items = append(f.Items, item)
	return nil
}

func (f *File) parseIref(h *BoxHeader) error {
	p, err := newPayload(f.r, h)
	if err != nil {
		return err
	}
	fb, err := readFullBox(p)
	if err != nil {
		return err
	}
	wide := fb.Version > 0

	readID := func() (uint32, error) {
		if wide {
			return p.uint32()
		}
		id, err := p.uint16()
		return uint32(id), err
	}

	for p.remaining() > 0 {
		// Each reference is itself a box whose type names the relation.
		size, err := p.uint32()
		if err != nil {
			return err
		}
		typ, err := p.bytes(4)
		if err != nil {
			return err
		}
		_ = size

		ref := Reference{Type: string(typ)}
		if ref.FromID, err = readID(); err != nil {
			return err
		}
		count, err := p.uint16()
		if err != nil {
			return err
		}
		for i := 0; i < int(count); i++ {
			id, err := readID()
			if err != nil {
				return err
			}
			ref.ToIDs = append(ref.ToIDs, id)
		}
		f.References = append(f.References, ref)
	}
	return nil
}

func (f *File) parseIloc(h *BoxHeader) error {
	p, err := newPayload(f.r, h)
	if err != nil {
		return err
	}
	fb, err := readFullBox(p)
	if err != nil {
		return err
	}
	if fb.Version > 2 {
		return fmt.Errorf("iloc version %d not supported", fb.Version)
	}

	sizes, err := p.uint16()
	if err != nil {
		return err
	}
	offsetSize := int(sizes >> 12 & 0xF)
	lengthSize := int(sizes >> 8 & 0xF)
	baseOffsetSize := int(sizes >> 4 & 0xF)
	indexSize := 0
	if fb.Version > 0 {
		indexSize = int(sizes & 0xF)
	}

	var itemCount uint32
	if fb.Version < 2 {
		c, err := p.uint16()
		if err != nil {
			return err
		}
		itemCount = uint32(c)
	} else if itemCount, err = p.uint32(); err != nil {
		return err
	}

	for i := 0; i < int(itemCount); i++ {
		var itemID uint32
		if fb.Version < 2 {
			id, err := p.uint16()
			if err != nil {
				return err
			}
			itemID = uint32(id)
		} else if itemID, err = p.uint32(); err != nil {
			return err
		}

		var method uint8
		if fb.Version > 0 {
			m, err := p.uint16()
			if err != nil {
				return err
			}
			method = uint8(m & 0xF)
		}
		if _, err := p.uint16(); err != nil { // data_reference_index
			return err
		}
		baseOffset, err := p.uint(baseOffsetSize)
		if err != nil {
			return err
		}
		extentCount, err := p.uint16()
		if err != nil {
			return err
		}

		item := f.Item(itemID)
		if item == nil {
			// iloc may precede iinf; register a placeholder.
			item = &Item{ID: itemID}
			f.Items = append(f.Items, item)
		}
		item.ConstructionMethod = method
		item.BaseOffset = baseOffset

		for e := 0; e < int(extentCount); e++ {
			if indexSize > 0 {
				if _, err := p.uint(indexSize); err != nil {
					return err
				}
			}
			off, err := p.uint(offsetSize)
			if err != nil {
				return err
			}
			length, err := p.uint(lengthSize)
			if err != nil {
				return err
			}
			item.Extents = append(item.Extents, Extent{Offset: off, Length: length})
		}
	}
	return nil
}

func (f *File) parseIprp(h *BoxHeader) ([]Property, map[uint32][]uint16, error) {
	var props []Property
	assoc := make(map[uint32][]uint16)

	err := walkBoxes(f.r, h.PayloadOffset(), h.Offset+h.Size, f.size, func(c *BoxHeader) error {
		switch c.Type {
		case TypeIpco:
			return walkBoxes(f.r, c.PayloadOffset(), c.Offset+c.Size, f.size, func(pb *BoxHeader) error {
				p, err := newPayload(f.r, pb)
				if err != nil {
					return err
				}
				props = append(props, Property{Type: pb.Type, Payload: p.data})
				return nil
			})
		case TypeIpma:
			p, err := newPayload(f.r, c)
			if err != nil {
				return err
			}
			fb, err := readFullBox(p)
			if err != nil {
				return err
			}
			entryCount, err := p.uint32()
			if err != nil {
				return err
			}
			for i := 0; i < int(entryCount); i++ {
				var itemID uint32
				if fb.Version == 0 {
					id, err := p.uint16()
					if err != nil {
						return err
					}
					itemID = uint32(id)
				} else if itemID, err = p.uint32(); err != nil {
					return err
				}
				assocCount, err := p.uint8()
				if err != nil {
					return err
				}
				for a := 0; a < int(assocCount); a++ {
					var idx uint16
					if fb.Flags&1 != 0 {
						v, err := p.uint16()
						if err != nil {
							return err
						}
						idx = v & 0x7FFF
					} else {
						v, err := p.uint8()
						if err != nil {
							return err
						}
						idx = uint16(v & 0x7F)
					}
					assoc[itemID] = append(assoc[itemID], idx)
				}
			}
			return nil
		}
		return nil
	})
	return props, assoc, err
}

// Item returns the item with the given ID, or nil.
func (f *File) Item(id uint32) *Item {
	for _, item := range f.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// ItemsByType returns all items whose infe item_type matches typ.
func (f *File) ItemsByType(typ string) []*Item {
	var out []*Item
	for _, item := range f.Items {
		if item.Type == typ {
			out = append(out, item)
		}
	}
	return out
}

// DescribingItems returns metadata items linked to imageID by a cdsc
// item reference.
func (f *File) DescribingItems(imageID uint32) []*Item {
	var out []*Item
	for _, ref := range f.References {
		if ref.Type != "cdsc" {
			continue
		}
		for _, to := range ref.ToIDs {
			if to == imageID {
				if item := f.Item(ref.FromID); item != nil {
					out = append(out, item)
				}
			}
		}
	}
	return out
}

// ItemPayload assembles the payload bytes of an item from its iloc
// extents. Construction method 0 reads from the file, method 1 from the
// idat box.
func (f *File) ItemPayload(item *Item) ([]byte, error) {
	if len(item.Extents) == 0 {
		return nil, fmt.Errorf("item %d has no extents", item.ID)
	}

	var total uint64
	for _, e := range item.Extents {
		total += e.Length
	}
	out := make([]byte, 0, total)

	for _, e := range item.Extents {
		off := item.BaseOffset + e.Offset
		switch item.ConstructionMethod {
		case 0:
			buf := make([]byte, e.Length)
			if _, err := f.r.ReadAt(buf, int64(off)); err != nil {
				return nil, fmt.Errorf("item %d extent at %d: %v", item.ID, off, err)
			}
			out = append(out, buf...)
		case 1:
			if off+e.Length > uint64(len(f.idat)) {
				return nil, fmt.Errorf("item %d extent [%d,%d) outside idat of %d bytes", item.ID, off, off+e.Length, len(f.idat))
			}
			out = append(out, f.idat[off:off+e.Length]...)
		default:
			return nil, fmt.Errorf("item %d uses unsupported construction method %d", item.ID, item.ConstructionMethod)
		}
	}
	return out, nil
}

// ItemExtents returns the resolved absolute file ranges of an item for
// handing to out-of-process decoders. Only construction method 0 items
// have stable file ranges.
func (f *File) ItemExtents(item *Item) ([]Extent, error) {
	if item.ConstructionMethod != 0 {
		return nil, fmt.Errorf("item %d payload is not file-resident", item.ID)
	}
	out := make([]Extent, len(item.Extents))
	for i, e := range item.Extents {
		out[i] = Extent{Offset: item.BaseOffset + e.Offset, Length: e.Length}
	}
	return out, nil
}

// Property helpers.

// Ispe returns the image spatial extent (width, height) of an item.
func (item *Item) Ispe() (width, height int, ok bool) {
	for _, prop := range item.Properties {
		if prop.Type != TypeIspe {
			continue
		}
		p := &payload{data: prop.Payload, box: TypeIspe}
		if _, err := readFullBox(p); err != nil {
			return 0, 0, false
		}
		w, err := p.uint32()
		if err != nil {
			return 0, 0, false
		}
		h, err := p.uint32()
		if err != nil {
			return 0, 0, false
		}
		return int(w), int(h), true
	}
	return 0, 0, false
}

// Pixi returns the per-channel bit depths of an item.
func (item *Item) Pixi() ([]int, bool) {
	for _, prop := range item.Properties {
		if prop.Type != TypePixi {
			continue
		}
		p := &payload{data: prop.Payload, box: TypePixi}
		if _, err := readFullBox(p); err != nil {
			return nil, false
		}
		n, err := p.uint8()
		if err != nil {
			return nil, false
		}
		depths := make([]int, n)
		for i := range depths {
			d, err := p.uint8()
			if err != nil {
				return nil, false
			}
			depths[i] = int(d)
		}
		return depths, true
	}
	return nil, false
}

// DecoderConfig returns the raw codec configuration payload (hvcC for
// HEVC items, uncC for uncompressed items), if present.
func (item *Item) DecoderConfig() ([]byte, bool) {
	for _, prop := range item.Properties {
		if prop.Type == TypeHvcC || prop.Type == TypeUncC {
			return prop.Payload, true
		}
	}
	return nil, false
}
