package image

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
)

// RenderTile cuts one plan entry out of the decoded source image, pads edge
// cells with transparent pixels up to the full tile size, and encodes the
// result in the format matching the planned file name.
func RenderTile(src image.Image, entry TileEntry, tileSize int) ([]byte, error) {
	rect := image.Rect(
		entry.Rect.Left,
		entry.Rect.Top,
		entry.Rect.Left+entry.Rect.Width,
		entry.Rect.Top+entry.Rect.Height,
	)

	tile := imaging.Crop(src, rect)
	if tile.Bounds().Dx() != entry.Rect.Width || tile.Bounds().Dy() != entry.Rect.Height {
		return nil, fmt.Errorf("%w: rect %v outside image bounds %v", ErrInvalidImage, rect, src.Bounds())
	}

	if entry.NeedsPadding() {
		canvas := imaging.New(tileSize, tileSize, color.NRGBA{})
		tile = imaging.Paste(canvas, tile, image.Pt(0, 0))
	}

	format, err := formatFor(entry.FileName)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, tile, format); err != nil {
		return nil, fmt.Errorf("encoding tile %s: %w", entry.FileName, err)
	}
	return buf.Bytes(), nil
}

func formatFor(fileName string) (imaging.Format, error) {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 {
		return imaging.PNG, nil
	}
	format, err := imaging.FormatFromExtension(fileName[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("%w: unsupported output format %q", ErrInvalidImage, fileName[idx+1:])
	}
	return format, nil
}
