package qr

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const DefaultSizePx = 256

// Encoder turns a payload into PNG bytes.
type Encoder interface {
	Encode(payload string) ([]byte, error)
}

// PNGEncoder renders medium recovery QR codes.
type PNGEncoder struct {
	SizePx int
}

func NewPNGEncoder(sizePx int) PNGEncoder {
	if sizePx <= 0 {
		sizePx = DefaultSizePx
	}
	return PNGEncoder{SizePx: sizePx}
}

func (e PNGEncoder) Encode(payload string) ([]byte, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("qr payload is empty")
	}
	size := e.SizePx
	if size <= 0 {
		size = DefaultSizePx
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(payload string) ([]byte, error)

func (f EncoderFunc) Encode(payload string) ([]byte, error) {
	return f(payload)
}
