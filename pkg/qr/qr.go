package qr

import (
	"errors"
	"strings"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the pixel width used when callers pass a non-positive size.
const DefaultSize = 256

// EncodePNG renders the payload as a PNG QR image.
func EncodePNG(payload string, size int) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errors.New("qr: payload is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}
