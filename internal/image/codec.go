package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
)

// "BM" file signature of the legacy bitmap container.
var bmpSignature = []byte{0x42, 0x4d}

var ErrImageTooLarge = errors.New("image exceeds configured limits")

func IsBitmap(data []byte) bool {
	return len(data) >= 2 && bytes.Equal(data[:2], bmpSignature)
}

// Decode turns raw bytes into a pixel buffer. Legacy bitmaps are sniffed by
// signature and routed through the dedicated bmp decoder; everything else
// goes through the standard raster decoders.
func Decode(data []byte) (image.Image, error) {
	if IsBitmap(data) {
		img, err := bmp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// Meta reads the image header without decoding pixels.
func Meta(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if format == "" {
		return 0, 0, "", fmt.Errorf("%w: missing image format", ErrInvalidImage)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, "", fmt.Errorf("%w: unknown dimensions", ErrInvalidImage)
	}
	return cfg.Width, cfg.Height, format, nil
}

// Validate rejects images exceeding the byte-size or pixel-area limits
// before any tiling work happens.
func Validate(data []byte, byteLimit, pixelLimit int64) error {
	width, height, _, err := Meta(data)
	if err != nil {
		return err
	}

	if int64(len(data)) > byteLimit {
		return fmt.Errorf("%w: %d bytes over limit %d", ErrImageTooLarge, len(data), byteLimit)
	}
	if int64(width)*int64(height) > pixelLimit {
		return fmt.Errorf("%w: %dx%d pixels over limit %d", ErrImageTooLarge, width, height, pixelLimit)
	}
	return nil
}
