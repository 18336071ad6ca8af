package integration

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"time"

	"github.com/bulatminnakhmetov/canvas2image/internal/permission"
)

// AppURL is the address of the service under test
func AppURL() string {
	if url := os.Getenv("APP_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// Token signs a test token with JWT_SECRET. It returns "" when the service
// runs without auth.
func Token(storageWrite bool) (string, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", nil
	}
	return permission.IssueToken([]byte(secret), "integration", storageWrite, time.Hour)
}

// CanvasPNG renders a small gradient and returns it base64-encoded
func CanvasPNG() string {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
