package qr

import (
	"bytes"
	"image/png"
	"testing"
)

func TestPNGEncoderProducesDecodableImage(t *testing.T) {
	enc := NewPNGEncoder(128)
	out, err := enc.Encode("1234567890123456")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if got := img.Bounds().Dx(); got != 128 {
		t.Fatalf("expected width 128, got %d", got)
	}
}

func TestPNGEncoderRejectsEmptyPayload(t *testing.T) {
	if _, err := NewPNGEncoder(0).Encode("  "); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if NewPNGEncoder(0).SizePx != DefaultSizePx {
		t.Fatal("expected default size")
	}
}
