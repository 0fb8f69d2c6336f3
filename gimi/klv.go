package gimi

import (
	"encoding/binary"
	"log"
	"math"
	"time"
)

// MISB ST0601 tags carried by GIMI provenance items.
const (
	klvTagChecksum       = 1
	klvTagTimestamp      = 2
	klvTagMissionID      = 3
	klvTagVersion        = 65
	klvTagCornerLatPoint1 = 82
	klvTagCornerLonPoint1 = 83
	klvTagCornerLatPoint2 = 84
	klvTagCornerLonPoint2 = 85
	klvTagCornerLatPoint3 = 86
	klvTagCornerLonPoint3 = 87
	klvTagCornerLatPoint4 = 88
	klvTagCornerLonPoint4 = 89
)

// Full-range corner point scales from ST0601. The divisor is 2^32-2,
// the encoding reserves the most negative int32 as an error indicator.
const (
	klvLatScale = 180.0 / 4294967294.0
	klvLonScale = 360.0 / 4294967294.0
)

const klvMaxIterations = 1000

// CornerPoint is one image corner in geographic coordinates.
type CornerPoint struct {
	Lat float64
	Lon float64
}

// KLVMetadata holds the decoded ST0601 fields of a provenance item.
// BeginPosition is nil when the timestamp is absent or out of range.
type KLVMetadata struct {
	Title         string
	Version       uint8
	BeginPosition *time.Time
	Checksum      uint16
	HasChecksum   bool

	// Corners are the four image corners in acquisition order:
	// upper left, upper right, lower right, lower left.
	Corners [4]CornerPoint
	hasCorner [4]bool
}

// HasCorners reports whether all four corner points were present.
func (m *KLVMetadata) HasCorners() bool {
	return m.hasCorner[0] && m.hasCorner[1] && m.hasCorner[2] && m.hasCorner[3]
}

// DecodeKLV decodes a MISB ST0601 local set from data. Unknown tags are
// skipped over their declared length. Only BER short-form tags and
// lengths are supported; a long-form byte is skipped with a warning and
// decoding resumes at the next byte, matching the tolerant handling
// expected of provenance sidecars.
func DecodeKLV(data []byte) *KLVMetadata {
	meta := &KLVMetadata{}

	pos := 0
	for i := 0; i < klvMaxIterations; i++ {
		if pos+2 > len(data) {
			log.Printf("klv: local set ended without checksum")
			return meta
		}

		tag := data[pos]
		size := data[pos+1]
		if tag >= 0x80 || size >= 0x80 {
			log.Printf("klv: BER long form at offset %d not supported, skipping", pos)
			pos++
			continue
		}
		pos += 2
		if pos+int(size) > len(data) {
			log.Printf("klv: tag %d declares %d bytes past end of set", tag, size)
			return meta
		}
		val := data[pos : pos+int(size)]
		pos += int(size)

		switch int(tag) {
		case klvTagChecksum:
			if len(val) == 2 {
				meta.Checksum = binary.BigEndian.Uint16(val)
				meta.HasChecksum = true
			}
			return meta

		case klvTagTimestamp:
			if len(val) != 8 {
				log.Printf("klv: timestamp has %d bytes, want 8", len(val))
				continue
			}
			usec := binary.BigEndian.Uint64(val)
			if usec > math.MaxInt64/1000 {
				log.Printf("klv: timestamp %d out of range", usec)
				continue
			}
			t := time.Unix(0, int64(usec)*1000).UTC()
			meta.BeginPosition = &t

		case klvTagMissionID:
			meta.Title = string(val)

		case klvTagVersion:
			if len(val) == 1 {
				meta.Version = val[0]
			}

		case klvTagCornerLatPoint1, klvTagCornerLonPoint1,
			klvTagCornerLatPoint2, klvTagCornerLonPoint2,
			klvTagCornerLatPoint3, klvTagCornerLonPoint3,
			klvTagCornerLatPoint4, klvTagCornerLonPoint4:
			if len(val) != 4 {
				log.Printf("klv: corner tag %d has %d bytes, want 4", tag, len(val))
				continue
			}
			raw := int32(binary.BigEndian.Uint32(val))
			corner := (int(tag) - klvTagCornerLatPoint1) / 2
			if (int(tag)-klvTagCornerLatPoint1)%2 == 0 {
				meta.Corners[corner].Lat = klvLatScale * float64(raw)
			} else {
				meta.Corners[corner].Lon = klvLonScale * float64(raw)
			}
			meta.hasCorner[corner] = true
		}
	}

	log.Printf("klv: local set exceeded %d elements, truncating", klvMaxIterations)
	return meta
}
