package image

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidImage = errors.New("invalid image")

// Rect is a source rectangle inside the original image, in pixels.
type Rect struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// TileEntry describes one cell of the tile grid: where its pixels come from,
// how much right/bottom padding it needs to reach the full tile size, and the
// object name it is uploaded under.
type TileEntry struct {
	Row       int
	Column    int
	Rect      Rect
	PadRight  int
	PadBottom int
	FileName  string
}

func (e TileEntry) NeedsPadding() bool {
	return e.PadRight > 0 || e.PadBottom > 0
}

type TilePlan struct {
	Rows     int
	Columns  int
	Width    int
	Height   int
	TileSize int
	Entries  []TileEntry
}

// Plan computes the tile grid for an image of the given dimensions. Cells on
// the right and bottom edges may cover less than a full tile; their entries
// carry the padding needed to square them up.
func Plan(width, height, tileSize int, fileName string) (*TilePlan, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: cannot compute tile grid for %dx%d", ErrInvalidImage, width, height)
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size %d", ErrInvalidImage, tileSize)
	}

	numColumns := (width + tileSize - 1) / tileSize
	numRows := (height + tileSize - 1) / tileSize

	base, ext := splitFileName(fileName)
	rowWidth := digits(numRows - 1)
	columnWidth := digits(numColumns - 1)

	plan := &TilePlan{
		Rows:     numRows,
		Columns:  numColumns,
		Width:    width,
		Height:   height,
		TileSize: tileSize,
		Entries:  make([]TileEntry, 0, numRows*numColumns),
	}

	for row := 0; row < numRows; row++ {
		for column := 0; column < numColumns; column++ {
			startX := column * tileSize
			startY := row * tileSize
			endX := min(startX+tileSize, width)
			endY := min(startY+tileSize, height)
			rectWidth := endX - startX
			rectHeight := endY - startY

			entry := TileEntry{
				Row:    row,
				Column: column,
				Rect: Rect{
					Left:   startX,
					Top:    startY,
					Width:  rectWidth,
					Height: rectHeight,
				},
				FileName: tileFileName(base, ext, row, column, rowWidth, columnWidth),
			}
			if rectWidth < tileSize {
				entry.PadRight = tileSize - rectWidth
			}
			if rectHeight < tileSize {
				entry.PadBottom = tileSize - rectHeight
			}

			plan.Entries = append(plan.Entries, entry)
		}
	}

	return plan, nil
}

func tileFileName(base, ext string, row, column, rowWidth, columnWidth int) string {
	name := fmt.Sprintf("%s_%s_%s", base, padNumber(row, rowWidth), padNumber(column, columnWidth))
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func padNumber(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

func digits(n int) int {
	if n <= 0 {
		return 1
	}
	return len(strconv.Itoa(n))
}

func splitFileName(fileName string) (base, ext string) {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 {
		return fileName, ""
	}
	return fileName[:idx], fileName[idx+1:]
}
