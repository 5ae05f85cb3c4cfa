package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"mediaapi/internal/config"
)

// Transcoder re-encodes an image read from src into the canonical format on dst.
type Transcoder interface {
	Transcode(ctx context.Context, dst io.Writer, src io.Reader) error
}

// JPEGTranscoder decodes JPEG or PNG input and always re-encodes it as JPEG,
// including input that already is JPEG, so stored bytes are always a verified encode.
type JPEGTranscoder struct {
	Quality    int
	AutoOrient bool
	// MaxPixels bounds the declared width*height; zero or negative disables the check.
	MaxPixels int64
}

// NewJPEGTranscoder returns a JPEGTranscoder configured from cfg.
func NewJPEGTranscoder(cfg config.TranscodeConfig) *JPEGTranscoder {
	q := cfg.JPEGQuality
	if q <= 0 || q > 100 {
		q = 80
	}
	px := cfg.MaxPixels
	if px <= 0 {
		px = config.DefaultMaxPixels
	}
	return &JPEGTranscoder{Quality: q, AutoOrient: cfg.AutoOrient, MaxPixels: px}
}

func (t *JPEGTranscoder) Transcode(ctx context.Context, dst io.Writer, src io.Reader) error {
	// The header is read first; the bytes it consumed are replayed for the full decode.
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(src, &head))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if t.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > t.MaxPixels {
		return fmt.Errorf("decode image: %dx%d: %w", cfg.Width, cfg.Height, ErrImageTooLarge)
	}

	img, err := imaging.Decode(io.MultiReader(&head, src), imaging.AutoOrientation(t.AutoOrient))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := imaging.Encode(dst, img, imaging.JPEG, imaging.JPEGQuality(t.Quality)); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}
