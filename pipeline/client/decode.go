package client

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spance/dermascan-go/pipeline/definitions"
)

var errEmptyImage = errors.New("empty image body")

// DecodeBitmap decodes raw image bytes fetched from sourceURL.
func DecodeBitmap(raw []byte, sourceURL string) (*definitions.Bitmap, error) {
	if len(raw) == 0 {
		return nil, errEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return definitions.NewBitmap(img, format, sourceURL), nil
}
