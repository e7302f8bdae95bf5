package airforce

import "imagestudio/internal/mediameta"

// ServiceName is the provider label recorded in artifact metadata.
const ServiceName = "Airforce"

// Models offered by the Airforce API.
const (
	ModelGrokImagine      = "grok-imagine"
	ModelImagen4          = "imagen-4"
	ModelGrokImagineVideo = "grok-imagine-video"
)

// FixedSize is the only output size the provider accepts. It is sent on every
// request even though it is not user-editable.
const FixedSize = "1024x1024"

// DefaultAspectRatio applies when the video model is requested without an
// explicit ratio.
const DefaultAspectRatio = "1:1"

// Models lists every selectable model, image models first.
func Models() []string {
	return []string{ModelGrokImagine, ModelImagen4, ModelGrokImagineVideo}
}

// AspectRatios lists the ratios the video model accepts.
func AspectRatios() []string {
	return []string{"1:1", "2:3", "3:2"}
}

// ValidModel reports whether model is one this provider offers.
func ValidModel(model string) bool {
	for _, m := range Models() {
		if m == model {
			return true
		}
	}
	return false
}

// ValidAspectRatio reports whether ratio is accepted by the video model.
func ValidAspectRatio(ratio string) bool {
	for _, r := range AspectRatios() {
		if r == ratio {
			return true
		}
	}
	return false
}

// KindForModel maps a model to the artifact kind it produces.
func KindForModel(model string) mediameta.Kind {
	if model == ModelGrokImagineVideo {
		return mediameta.KindVideo
	}
	return mediameta.KindImage
}

// GenerationRequest describes one generation. It is treated as immutable once
// handed to Generate.
type GenerationRequest struct {
	PositivePrompt string
	NegativePrompt string
	Model          string
	Size           string
	AspectRatio    string
	// ImageURLs is reserved for future image-to-video input. The wire
	// protocol accepts an image_urls field but this client never sends it.
	ImageURLs []string
}

// GenerationResult carries the decoded media bytes of a finished generation.
type GenerationResult struct {
	Kind  mediameta.Kind
	Bytes []byte
}
