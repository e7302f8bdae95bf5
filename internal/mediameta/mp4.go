package mediameta

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/google/uuid"
)

// metadataBoxID identifies this application's private uuid box. MP4 reserves
// the `uuid` box type exactly for vendor extensions like this one, which keeps
// amended files valid for ordinary players.
var metadataBoxID = uuid.MustParse("696d6167-6573-7475-642e-6d6574613031")

var errNotMP4 = errors.New("mediameta: not an mp4 stream")

// embedMP4 appends a private uuid box carrying payload to the end of the
// container, replacing any instance written earlier. The input must open with
// an ftyp box and walk cleanly, otherwise the caller falls back to the raw
// bytes.
func embedMP4(media []byte, payload string) ([]byte, error) {
	if len(media) < 8 || string(media[4:8]) != "ftyp" {
		return nil, errNotMP4
	}
	stripped, err := stripMetadataBoxes(media)
	if err != nil {
		return nil, err
	}

	box := make([]byte, 0, 8+16+len(payload))
	box = binary.BigEndian.AppendUint32(box, uint32(8+16+len(payload)))
	box = append(box, "uuid"...)
	box = append(box, metadataBoxID[:]...)
	box = append(box, payload...)

	return append(stripped, box...), nil
}

// extractMP4 walks the top-level boxes looking for this application's uuid
// box and returns its payload.
func extractMP4(media []byte) (string, bool) {
	if len(media) < 8 || string(media[4:8]) != "ftyp" {
		return "", false
	}
	var found string
	ok := false
	err := walkTopLevelBoxes(media, func(fourcc string, body []byte) {
		if fourcc == "uuid" && len(body) >= 16 && bytes.Equal(body[:16], metadataBoxID[:]) {
			found = string(body[16:])
			ok = true
		}
	})
	if err != nil {
		return "", false
	}
	return found, ok
}

// stripMetadataBoxes returns media without any previously embedded private
// uuid box. A trailing size-zero box ("extends to end of file") is rewritten
// with its explicit size; anything appended after it would otherwise be
// swallowed into its body.
func stripMetadataBoxes(media []byte) ([]byte, error) {
	var out []byte
	err := walkTopLevelBoxesRaw(media, func(fourcc string, box, body []byte) {
		if fourcc == "uuid" && len(body) >= 16 && bytes.Equal(body[:16], metadataBoxID[:]) {
			return
		}
		out = append(out, withExplicitSize(box)...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// withExplicitSize returns box with any size-zero header replaced by the real
// size, using the largesize form when it does not fit in 32 bits.
func withExplicitSize(box []byte) []byte {
	if len(box) < 8 || binary.BigEndian.Uint32(box[:4]) != 0 {
		return box
	}
	if uint64(len(box)) <= 0xFFFFFFFF {
		out := make([]byte, 0, len(box))
		out = binary.BigEndian.AppendUint32(out, uint32(len(box)))
		return append(out, box[4:]...)
	}
	out := make([]byte, 0, len(box)+8)
	out = binary.BigEndian.AppendUint32(out, 1)
	out = append(out, box[4:8]...)
	out = binary.BigEndian.AppendUint64(out, uint64(len(box)+8))
	return append(out, box[8:]...)
}

func walkTopLevelBoxes(media []byte, visit func(fourcc string, body []byte)) error {
	return walkTopLevelBoxesRaw(media, func(fourcc string, _, body []byte) {
		visit(fourcc, body)
	})
}

// walkTopLevelBoxesRaw iterates the root box sequence, handling 64-bit
// largesize boxes and a final size-zero box extending to end of file.
func walkTopLevelBoxesRaw(media []byte, visit func(fourcc string, box, body []byte)) error {
	rest := media
	for len(rest) > 0 {
		if len(rest) < 8 {
			return errNotMP4
		}
		size := uint64(binary.BigEndian.Uint32(rest[:4]))
		fourcc := string(rest[4:8])
		headerLen := uint64(8)
		switch size {
		case 0:
			size = uint64(len(rest))
		case 1:
			if len(rest) < 16 {
				return errNotMP4
			}
			size = binary.BigEndian.Uint64(rest[8:16])
			headerLen = 16
		}
		if size < headerLen || size > uint64(len(rest)) {
			return errNotMP4
		}
		visit(fourcc, rest[:size], rest[headerLen:size])
		rest = rest[size:]
	}
	return nil
}
