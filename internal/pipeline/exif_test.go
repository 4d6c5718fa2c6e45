package pipeline

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"testing"
)

func TestExifSegmentRoundTrip(t *testing.T) {
	plain := encodeGrayJPEG(t, 8, 4)
	if exifSegment(plain) != nil {
		t.Fatal("plain stream should carry no Exif segment")
	}

	segment := buildExifSegment(t, 6)
	withExif := spliceExifSegment(plain, segment)

	got := exifSegment(withExif)
	if got == nil {
		t.Fatal("expected Exif segment after splice")
	}
	if !bytes.Equal(got, segment) {
		t.Fatal("extracted segment differs from spliced segment")
	}

	if _, err := jpeg.Decode(bytes.NewReader(withExif)); err != nil {
		t.Fatalf("spliced stream should stay decodable: %v", err)
	}
}

func TestNeutralizedExifSegment(t *testing.T) {
	source := spliceExifSegment(encodeGrayJPEG(t, 8, 4), buildExifSegment(t, 6))

	neutral := neutralizedExifSegment(source)
	if neutral == nil {
		t.Fatal("expected neutralized segment")
	}
	if got := readOrientationValue(t, neutral); got != 1 {
		t.Fatalf("neutralized orientation = %d, want 1", got)
	}

	// The source stream keeps its original tag value.
	if got := readOrientationValue(t, exifSegment(source)); got != 6 {
		t.Fatalf("source orientation = %d, want 6", got)
	}
}

func TestNeutralizedExifSegmentTruncated(t *testing.T) {
	payload := append([]byte("Exif\x00\x00"), 'X', 'X')
	segment := []byte{0xff, 0xe1, 0x00, byte(len(payload) + 2)}
	segment = append(segment, payload...)
	stream := spliceExifSegment(encodeGrayJPEG(t, 8, 4), segment)

	if got := neutralizedExifSegment(stream); got != nil {
		t.Fatalf("truncated TIFF block should be dropped, got %d bytes", len(got))
	}
}

// buildExifSegment returns a minimal APP1 Exif segment carrying a single
// big-endian orientation entry.
func buildExifSegment(t *testing.T, orientation uint16) []byte {
	t.Helper()

	tiff := []byte{
		'M', 'M', 0x00, 0x2a, // big-endian TIFF header
		0x00, 0x00, 0x00, 0x08, // IFD0 offset
		0x00, 0x01, // entry count
	}
	entry := make([]byte, 12)
	binary.BigEndian.PutUint16(entry[0:], orientationTag)
	binary.BigEndian.PutUint16(entry[2:], 3) // SHORT
	binary.BigEndian.PutUint32(entry[4:], 1)
	binary.BigEndian.PutUint16(entry[8:], orientation)
	tiff = append(tiff, entry...)
	tiff = append(tiff, 0x00, 0x00, 0x00, 0x00) // no next IFD

	payload := append([]byte("Exif\x00\x00"), tiff...)
	segment := []byte{0xff, 0xe1, byte((len(payload) + 2) >> 8), byte(len(payload) + 2)}
	return append(segment, payload...)
}

func readOrientationValue(t *testing.T, segment []byte) uint16 {
	t.Helper()

	if len(segment) < 20 {
		t.Fatalf("segment too short: %d bytes", len(segment))
	}
	tiff := segment[10:]
	ifd := int(binary.BigEndian.Uint32(tiff[4:]))
	count := int(binary.BigEndian.Uint16(tiff[ifd:]))
	for i := 0; i < count; i++ {
		entry := ifd + 2 + i*12
		if binary.BigEndian.Uint16(tiff[entry:]) == orientationTag {
			return binary.BigEndian.Uint16(tiff[entry+8:])
		}
	}
	t.Fatal("orientation entry not found")
	return 0
}

func encodeGrayJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7 % 251)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode gray jpeg: %v", err)
	}
	return buf.Bytes()
}
