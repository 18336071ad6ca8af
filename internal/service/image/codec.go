package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// jpegQuality is the maximum quality the JPEG encoder accepts.
const jpegQuality = 100

var errEmptyImage = errors.New("decoded image has no pixels")

// decodePayload turns a base64 payload, bare or as a data URL, into bytes.
// Whitespace and missing padding are tolerated.
func decodePayload(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.HasSuffix(payload[:comma], ";base64") {
			return nil, errors.New("data url is not base64 encoded")
		}
		payload = payload[comma+1:]
	}
	payload = strings.Join(strings.Fields(payload), "")

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return data, nil
}

// decodeImage decodes any registered image format into a bitmap.
func decodeImage(data []byte) (image.Image, string, error) {
	img, kind, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	if img.Bounds().Empty() {
		return nil, "", errEmptyImage
	}
	return img, kind, nil
}

// encodeImage writes img to w in format f at maximum quality.
func encodeImage(w io.Writer, img image.Image, f Format) error {
	if f == FormatPNG {
		return png.Encode(w, img)
	}
	return encodeJPEG(w, img)
}

func encodeJPEG(w io.Writer, img image.Image) error {
	opts := &jpeg.Options{Quality: jpegQuality}
	// Opaque NRGBA shares its layout with RGBA, which the encoder has a fast path for.
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Opaque() {
		return jpeg.Encode(w, &image.RGBA{Pix: nrgba.Pix, Stride: nrgba.Stride, Rect: nrgba.Rect}, opts)
	}
	return jpeg.Encode(w, img, opts)
}
