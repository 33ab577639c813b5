package capture

import (
	"image"

	"github.com/disintegration/imaging"
)

// Normalize downscales img to exactly logicalWidth x logicalHeight when the
// captured image is larger in either dimension, which is what high-DPI
// displays produce. Otherwise img is returned unchanged. The boolean reports
// whether a resize happened.
func Normalize(img image.Image, logicalWidth, logicalHeight int) (image.Image, bool) {
	if logicalWidth <= 0 || logicalHeight <= 0 {
		return img, false
	}

	b := img.Bounds()
	if b.Dx() > logicalWidth || b.Dy() > logicalHeight {
		return imaging.Resize(img, logicalWidth, logicalHeight, imaging.Lanczos), true
	}
	return img, false
}
