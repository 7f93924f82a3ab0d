package services

import (
	"bytes"

	"github.com/disintegration/imaging"
)

// InspectImage decodes the upload and returns its display dimensions after EXIF rotation.
func InspectImage(data []byte) (width, height int, err error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, validationError("Uploaded file is not a supported image")
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}
