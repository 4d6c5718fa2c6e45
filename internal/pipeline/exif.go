package pipeline

import "encoding/binary"

const (
	markerSOI  = 0xffd8
	markerAPP1 = 0xffe1
	markerSOS  = 0xffda

	exifHeader     = 0x45786966 // "Exif"
	byteOrderBE    = 0x4d4d     // "MM"
	byteOrderLE    = 0x4949     // "II"
	orientationTag = 0x0112
)

// exifSegment returns the raw APP1 Exif segment, marker bytes included,
// from a JPEG stream. Returns nil when no such segment appears before the
// image data.
func exifSegment(data []byte) []byte {
	if len(data) < 4 || binary.BigEndian.Uint16(data) != markerSOI {
		return nil
	}

	offset := 2
	for offset+4 <= len(data) {
		marker := binary.BigEndian.Uint16(data[offset:])
		if marker == markerSOS || marker>>8 != 0xff {
			return nil
		}
		length := int(binary.BigEndian.Uint16(data[offset+2:]))
		if length < 2 || offset+2+length > len(data) {
			return nil
		}
		if marker == markerAPP1 && length >= 8 && binary.BigEndian.Uint32(data[offset+4:]) == exifHeader {
			return data[offset : offset+2+length]
		}
		offset += 2 + length
	}
	return nil
}

// neutralizedExifSegment copies the source's Exif APP1 segment with the
// orientation tag forced to 1. The decoded pixels already carry the
// rotation, so the reattached block must not claim one. Returns nil for
// streams without a usable segment.
func neutralizedExifSegment(data []byte) []byte {
	segment := exifSegment(data)
	if segment == nil {
		return nil
	}
	out := make([]byte, len(segment))
	copy(out, segment)

	// TIFF block starts after the marker, the length word and "Exif\x00\x00".
	tiff := out[10:]
	if len(tiff) < 8 {
		return nil
	}

	var order binary.ByteOrder
	switch binary.BigEndian.Uint16(tiff) {
	case byteOrderBE:
		order = binary.BigEndian
	case byteOrderLE:
		order = binary.LittleEndian
	default:
		return nil
	}

	ifd := int(order.Uint32(tiff[4:]))
	if ifd < 8 || ifd+2 > len(tiff) {
		return nil
	}
	count := int(order.Uint16(tiff[ifd:]))
	for i := 0; i < count; i++ {
		entry := ifd + 2 + i*12
		if entry+12 > len(tiff) {
			return nil
		}
		if order.Uint16(tiff[entry:]) == orientationTag {
			order.PutUint16(tiff[entry+8:], 1)
			break
		}
	}
	return out
}

// spliceExifSegment inserts an APP1 segment directly after the SOI marker
// of an encoded JPEG stream.
func spliceExifSegment(encoded, segment []byte) []byte {
	if len(encoded) < 2 || binary.BigEndian.Uint16(encoded) != markerSOI || len(segment) == 0 {
		return encoded
	}
	out := make([]byte, 0, len(encoded)+len(segment))
	out = append(out, encoded[:2]...)
	out = append(out, segment...)
	out = append(out, encoded[2:]...)
	return out
}
