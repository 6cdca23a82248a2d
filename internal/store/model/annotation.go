package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Tool string

const (
	ToolPen    Tool = "PEN"
	ToolEraser Tool = "ERASER"
)

// Line is one freehand stroke drawn on a tile. Stored as part of the
// annotation's jsonb lines column.
type Line struct {
	Tool              Tool      `json:"tool"`
	Size              float64   `json:"size"`
	AnnotationClassID string    `json:"annotationClassId"`
	Points            []float64 `json:"points"`
}

// Annotation is the per-tile record keyed by (project, image index). It is
// created empty when the tile is first registered; stroke and mask content
// is mutated by the annotation editor, never by the ingest pipeline.
type Annotation struct {
	ProjectID  uuid.UUID `gorm:"primaryKey"`
	ImageIndex int       `gorm:"primaryKey"`

	// Masks holds one raster mask per annotation class, empty at creation.
	Masks []byte `gorm:"type:jsonb"`
	Lines []byte `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type AnnotationList []Annotation

// NewEmptyAnnotation builds the placeholder record registered for a freshly
// uploaded tile: one empty mask per annotation class and no strokes.
func NewEmptyAnnotation(projectID uuid.UUID, imageIndex int, classCount int) Annotation {
	masks := make([][]byte, classCount)
	for i := range masks {
		masks[i] = []byte{}
	}
	masksJSON, _ := json.Marshal(masks)
	linesJSON, _ := json.Marshal([]Line{})

	return Annotation{
		ProjectID:  projectID,
		ImageIndex: imageIndex,
		Masks:      masksJSON,
		Lines:      linesJSON,
	}
}

// DecodeMasks returns the per-class mask blobs stored on the record.
func (a Annotation) DecodeMasks() ([][]byte, error) {
	var masks [][]byte
	if err := json.Unmarshal(a.Masks, &masks); err != nil {
		return nil, err
	}
	return masks, nil
}

// DecodeLines returns the freehand strokes stored on the record.
func (a Annotation) DecodeLines() ([]Line, error) {
	var lines []Line
	if err := json.Unmarshal(a.Lines, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (a Annotation) String() string {
	val, _ := json.Marshal(a)
	return string(val)
}
