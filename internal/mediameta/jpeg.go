package mediameta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"

	// Registered so provider responses delivered as WebP can still be
	// converted to JPEG before embedding.
	_ "golang.org/x/image/webp"
)

// EXIF tag IDs written into IFD0.
const (
	tagImageDescription = 0x010E
	tagSoftware         = 0x0131
)

const exifTypeASCII = 2

var (
	jpegSOI    = []byte{0xFF, 0xD8}
	exifHeader = []byte("Exif\x00\x00")

	errNotJPEG         = errors.New("mediameta: not a jpeg stream")
	errSegmentTooLarge = errors.New("mediameta: metadata record exceeds the app1 segment limit")
)

// embedJPEG writes desc and software into a fresh EXIF APP1 segment placed
// directly after the SOI marker. Bytes that are not already JPEG (PNG, WebP,
// GIF, paletted or alpha sources) are re-encoded as baseline JPEG first, since
// only JPEG carries the APP1 slot this codec uses. Any previously embedded
// Exif segment is replaced, not duplicated.
func embedJPEG(media []byte, desc, software string) ([]byte, error) {
	if !bytes.HasPrefix(media, jpegSOI) {
		converted, err := toJPEG(media)
		if err != nil {
			return nil, err
		}
		media = converted
	}

	segment, err := buildExifSegment(desc, software)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(media)+len(segment))
	out = append(out, jpegSOI...)
	out = append(out, segment...)

	rest, err := stripExifSegments(media[2:])
	if err != nil {
		return nil, err
	}
	return append(out, rest...), nil
}

// extractJPEG returns the ImageDescription string from the first Exif APP1
// segment, if any.
func extractJPEG(media []byte) (string, bool) {
	if !bytes.HasPrefix(media, jpegSOI) {
		return "", false
	}
	data := media[2:]
	for len(data) >= 4 {
		if data[0] != 0xFF {
			return "", false
		}
		marker := data[1]
		if marker == 0xD9 || marker == 0xDA {
			// EOI or start of scan: no metadata segments follow.
			return "", false
		}
		length := int(binary.BigEndian.Uint16(data[2:4]))
		if length < 2 || 2+length > len(data) {
			return "", false
		}
		payload := data[4 : 2+length]
		if marker == 0xE1 && bytes.HasPrefix(payload, exifHeader) {
			if desc, ok := readImageDescription(payload[len(exifHeader):]); ok {
				return desc, true
			}
		}
		data = data[2+length:]
	}
	return "", false
}

// toJPEG decodes any registered image format and re-encodes it as JPEG.
// Alpha and paletted layouts are flattened by the encoder.
func toJPEG(media []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(media))
	if err != nil {
		return nil, fmt.Errorf("mediameta: decode source image: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("mediameta: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// stripExifSegments copies every JPEG segment except Exif APP1 blocks.
// The input starts immediately after SOI; everything from SOS onward is
// entropy-coded data and is copied verbatim.
func stripExifSegments(data []byte) ([]byte, error) {
	var out []byte
	for len(data) >= 2 {
		if data[0] != 0xFF {
			return nil, errNotJPEG
		}
		marker := data[1]
		if marker == 0xDA {
			return append(out, data...), nil
		}
		if marker == 0xD9 {
			return append(out, data...), nil
		}
		if len(data) < 4 {
			return nil, errNotJPEG
		}
		length := int(binary.BigEndian.Uint16(data[2:4]))
		if length < 2 || 2+length > len(data) {
			return nil, errNotJPEG
		}
		segment := data[:2+length]
		if !(marker == 0xE1 && bytes.HasPrefix(segment[4:], exifHeader)) {
			out = append(out, segment...)
		}
		data = data[2+length:]
	}
	return out, nil
}

// buildExifSegment constructs a complete APP1 segment holding a little-endian
// TIFF block with two ASCII IFD0 entries: ImageDescription and Software. The
// segment length field is 16 bits, so a record that would not fit is an error
// rather than a wrapped length and a corrupt file.
func buildExifSegment(desc, software string) ([]byte, error) {
	descBytes := append([]byte(desc), 0x00)
	softBytes := append([]byte(software), 0x00)

	const (
		entryCount = 2
		ifdOffset  = 8
		// header(8) + count(2) + entries(2*12) + next-IFD pointer(4)
		dataOffset = ifdOffset + 2 + entryCount*12 + 4
	)

	tiff := make([]byte, 0, dataOffset+len(descBytes)+len(softBytes))
	tiff = append(tiff, 'I', 'I', 0x2A, 0x00)
	tiff = binary.LittleEndian.AppendUint32(tiff, ifdOffset)
	tiff = binary.LittleEndian.AppendUint16(tiff, entryCount)
	tiff = appendExifEntry(tiff, tagImageDescription, descBytes, uint32(dataOffset))
	tiff = appendExifEntry(tiff, tagSoftware, softBytes, uint32(dataOffset+len(descBytes)))
	tiff = binary.LittleEndian.AppendUint32(tiff, 0) // no next IFD
	tiff = append(tiff, descBytes...)
	tiff = append(tiff, softBytes...)

	length := 2 + len(exifHeader) + len(tiff)
	if length > 0xFFFF {
		return nil, errSegmentTooLarge
	}

	segment := make([]byte, 0, 4+len(exifHeader)+len(tiff))
	segment = append(segment, 0xFF, 0xE1)
	segment = binary.BigEndian.AppendUint16(segment, uint16(length))
	segment = append(segment, exifHeader...)
	return append(segment, tiff...), nil
}

// appendExifEntry writes one 12-byte ASCII IFD entry. Values of four bytes or
// fewer are stored inline, longer ones at the given data-area offset.
func appendExifEntry(tiff []byte, tag uint16, value []byte, offset uint32) []byte {
	tiff = binary.LittleEndian.AppendUint16(tiff, tag)
	tiff = binary.LittleEndian.AppendUint16(tiff, exifTypeASCII)
	tiff = binary.LittleEndian.AppendUint32(tiff, uint32(len(value)))
	if len(value) <= 4 {
		inline := make([]byte, 4)
		copy(inline, value)
		return append(tiff, inline...)
	}
	return binary.LittleEndian.AppendUint32(tiff, offset)
}

// readImageDescription parses a TIFF block and returns the IFD0
// ImageDescription value. Both byte orders are accepted since extraction must
// also work on files produced by other writers.
func readImageDescription(tiff []byte) (string, bool) {
	if len(tiff) < 8 {
		return "", false
	}
	var order binary.ByteOrder
	switch {
	case tiff[0] == 'I' && tiff[1] == 'I':
		order = binary.LittleEndian
	case tiff[0] == 'M' && tiff[1] == 'M':
		order = binary.BigEndian
	default:
		return "", false
	}
	if order.Uint16(tiff[2:4]) != 0x2A {
		return "", false
	}
	ifd := int(order.Uint32(tiff[4:8]))
	if ifd < 8 || ifd+2 > len(tiff) {
		return "", false
	}
	count := int(order.Uint16(tiff[ifd : ifd+2]))
	for i := 0; i < count; i++ {
		entry := ifd + 2 + i*12
		if entry+12 > len(tiff) {
			return "", false
		}
		if order.Uint16(tiff[entry:entry+2]) != tagImageDescription {
			continue
		}
		if order.Uint16(tiff[entry+2:entry+4]) != exifTypeASCII {
			continue
		}
		n := int(order.Uint32(tiff[entry+4 : entry+8]))
		if n == 0 {
			return "", false
		}
		var raw []byte
		if n <= 4 {
			raw = tiff[entry+8 : entry+8+n]
		} else {
			off := int(order.Uint32(tiff[entry+8 : entry+12]))
			if off < 0 || off+n > len(tiff) {
				return "", false
			}
			raw = tiff[off : off+n]
		}
		return string(bytes.TrimRight(raw, "\x00")), true
	}
	return "", false
}
