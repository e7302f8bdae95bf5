// Package mediameta embeds generation provenance inside media files and reads
// it back. Images carry the record in an EXIF ImageDescription tag, videos in
// a private top-level uuid box, so no sidecar file is ever written next to an
// artifact.
package mediameta

import "strings"

// Kind discriminates the two artifact families the studio produces.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

// Ext returns the file extension used for artifacts of this kind.
func (k Kind) Ext() string {
	if k == KindVideo {
		return ".mp4"
	}
	return ".jpg"
}

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

// ArtifactMetadata is the provenance record stored inside every artifact.
// There is no seed field: the Airforce provider exposes no controllable seed,
// so none is ever sent or recorded. The generation timestamp lives in the
// filename, not here.
type ArtifactMetadata struct {
	Prompt         string
	NegativePrompt string
	Model          string
	Size           string
	Service        string
	AspectRatio    string
	Kind           Kind
}

// Embed returns a copy of media with meta written into the container's own
// metadata facility. Embedding is best-effort: when the bytes cannot be
// amended (unknown pixel format, corrupt container) the input is returned
// unmodified, because losing metadata is acceptable and losing media is not.
func Embed(media []byte, kind Kind, meta ArtifactMetadata) []byte {
	if kind == KindVideo {
		out, err := embedMP4(media, encodeFields(meta, true))
		if err != nil {
			return media
		}
		return out
	}
	out, err := embedJPEG(media, encodeFields(meta, false), meta.Service+" AI")
	if err != nil {
		return media
	}
	return out
}

// Extract reads the provenance record embedded by Embed. ok is false when the
// bytes carry no recognizable record.
func Extract(media []byte, kind Kind) (ArtifactMetadata, bool) {
	var (
		raw   string
		found bool
	)
	if kind == KindVideo {
		raw, found = extractMP4(media)
	} else {
		raw, found = extractJPEG(media)
	}
	if !found {
		return ArtifactMetadata{}, false
	}
	meta := decodeFields(raw)
	meta.Kind = kind
	return meta, true
}

// encodeFields serializes metadata as pipe-delimited "Key: value" segments.
// Empty fields are omitted; decodeFields treats a missing key as the empty
// string, so the round trip is lossless on values.
func encodeFields(meta ArtifactMetadata, withAspect bool) string {
	parts := make([]string, 0, 6)
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+": "+value)
		}
	}
	add("Prompt", meta.Prompt)
	add("Negative", meta.NegativePrompt)
	add("Model", meta.Model)
	add("Size", meta.Size)
	add("Service", meta.Service)
	if withAspect {
		add("AspectRatio", meta.AspectRatio)
	}
	return strings.Join(parts, " | ")
}

// decodeFields parses the pipe-delimited record. Unknown keys are ignored.
func decodeFields(raw string) ArtifactMetadata {
	var meta ArtifactMetadata
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Prompt":
			meta.Prompt = value
		case "Negative":
			meta.NegativePrompt = value
		case "Model":
			meta.Model = value
		case "Size":
			meta.Size = value
		case "Service":
			meta.Service = value
		case "AspectRatio":
			meta.AspectRatio = value
		}
	}
	return meta
}
