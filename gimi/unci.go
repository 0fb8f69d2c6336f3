package gimi

import (
	"fmt"
)

// uncConfig is the decoded uncC property of an uncompressed image item.
type uncConfig struct {
	Profile    string
	Interleave uint8
	BitDepths  []int
}

const (
	interleaveComponent = 0
	interleavePixel     = 1
)

func parseUncC(raw []byte) (*uncConfig, error) {
	p := &payload{data: raw, box: TypeUncC}
	fb, err := readFullBox(p)
	if err != nil {
		return nil, err
	}

	profile, err := p.bytes(4)
	if err != nil {
		return nil, err
	}
	cfg := &uncConfig{Profile: string(profile)}

	// Version 1 carries only a well-known profile.
	if fb.Version == 1 {
		switch cfg.Profile {
		case "rgb3":
			cfg.Interleave = interleavePixel
			cfg.BitDepths = []int{8, 8, 8}
		case "rgba":
			cfg.Interleave = interleavePixel
			cfg.BitDepths = []int{8, 8, 8, 8}
		default:
			return nil, fmt.Errorf("uncC profile '%s' not supported", cfg.Profile)
		}
		return cfg, nil
	}

	count, err := p.uint32()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(count); i++ {
		if _, err := p.uint16(); err != nil { // component_index
			return nil, err
		}
		bits, err := p.uint8()
		if err != nil {
			return nil, err
		}
		cfg.BitDepths = append(cfg.BitDepths, int(bits)+1)
		if _, err := p.uint8(); err != nil { // component_format
			return nil, err
		}
		if _, err := p.uint8(); err != nil { // component_align_size
			return nil, err
		}
	}

	sampling, err := p.uint8()
	if err != nil {
		return nil, err
	}
	if sampling != 0 {
		return nil, fmt.Errorf("uncC sampling type %d not supported", sampling)
	}
	interleave, err := p.uint8()
	if err != nil {
		return nil, err
	}
	if interleave > interleavePixel {
		return nil, fmt.Errorf("uncC interleave type %d not supported", interleave)
	}
	cfg.Interleave = interleave
	return cfg, nil
}

// DecodeUnci decodes an uncompressed image item into planar 8-bit band
// buffers. Only 8-bit components with component or pixel interleaving
// are supported; HEVC items go through the out-of-process codec workers
// instead.
func (f *File) DecodeUnci(item *Item) ([][]byte, error) {
	if item.Type != "unci" {
		return nil, fmt.Errorf("item %d is '%s', not an uncompressed image", item.ID, item.Type)
	}

	raw, ok := item.DecoderConfig()
	if !ok {
		return nil, fmt.Errorf("item %d has no uncC property", item.ID)
	}
	cfg, err := parseUncC(raw)
	if err != nil {
		return nil, err
	}
	for _, bits := range cfg.BitDepths {
		if bits != 8 {
			return nil, fmt.Errorf("item %d has %d-bit components, only 8-bit uncompressed data is supported", item.ID, bits)
		}
	}

	width, height, ok := item.Ispe()
	if !ok {
		return nil, fmt.Errorf("item %d has no ispe property", item.ID)
	}

	data, err := f.ItemPayload(item)
	if err != nil {
		return nil, err
	}

	nBands := len(cfg.BitDepths)
	pixels := width * height
	if len(data) < pixels*nBands {
		return nil, fmt.Errorf("item %d payload has %d bytes, want %d", item.ID, len(data), pixels*nBands)
	}

	bands := make([][]byte, nBands)
	switch cfg.Interleave {
	case interleaveComponent:
		for b := range bands {
			bands[b] = data[b*pixels : (b+1)*pixels]
		}
	case interleavePixel:
		for b := range bands {
			bands[b] = make([]byte, pixels)
		}
		for i := 0; i < pixels; i++ {
			for b := 0; b < nBands; b++ {
				bands[b][i] = data[i*nBands+b]
			}
		}
	}
	return bands, nil
}
