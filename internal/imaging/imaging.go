// Package imaging provides the encode/decode/crop primitives shared by the
// extractor (encode) and the recognizer (decode, crop, re-encode).
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imaging: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decodes picture according to pictureType. Only PNG is produced by this
// pipeline, but WebP-tagged payloads are rejected explicitly (rather than
// silently misdecoded) so the caller's protocol-mismatch warning is accurate.
func Decode(picture []byte, pictureType model.PictureType) (image.Image, error) {
	switch pictureType {
	case model.PictureTypePNG:
		img, err := png.Decode(bytes.NewReader(picture))
		if err != nil {
			return nil, fmt.Errorf("imaging: decode png: %w", err)
		}
		return img, nil
	default:
		return nil, fmt.Errorf("imaging: unsupported picture type %q", pictureType)
	}
}

// BoundingBox is a pixel-space rectangle, upper-left origin, exclusive of the
// bottom-right corner — the same convention as image.Rectangle.
type BoundingBox struct {
	X1, Y1, X2, Y2 int
}

// Crop extracts the bounding box from img and returns a tightly-packed RGBA
// copy, ready for re-encoding. draw.Draw (golang.org/x/image/draw) is used
// rather than the stdlib SubImage+manual copy so non-RGBA source images
// (e.g. YCbCr straight off a JPEG-family decode) are normalized in one pass.
func Crop(img image.Image, box BoundingBox) image.Image {
	rect := image.Rect(0, 0, box.X2-box.X1, box.Y2-box.Y1)
	dst := image.NewRGBA(rect)
	draw.Draw(dst, rect, img, image.Pt(box.X1, box.Y1), draw.Src)
	return dst
}
