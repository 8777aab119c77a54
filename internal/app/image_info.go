package app

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageSummary describes an image's format and dimensions without decoding
// its pixels. ok is false for unsupported or corrupt images.
func imageSummary(data []byte) (string, bool) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s image, %dx%d pixels", format, cfg.Width, cfg.Height), true
}
