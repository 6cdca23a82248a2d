package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "DRAFT"
	ProjectStatusUploading  ProjectStatus = "UPLOADING"
	ProjectStatusInProgress ProjectStatus = "IN_PROGRESS"
	ProjectStatusCompleting ProjectStatus = "COMPLETING"
	ProjectStatusCompleted  ProjectStatus = "COMPLETED"
)

type TrainingStatus string

const (
	TrainingStatusStop         TrainingStatus = "STOP"
	TrainingStatusInitializing TrainingStatus = "INITIALIZING"
	TrainingStatusRunning      TrainingStatus = "RUNNING"
)

type AnnotationClass struct {
	ID          uint      `gorm:"primaryKey"`
	ProjectID   uuid.UUID `gorm:"index;not null"`
	Name        string    `gorm:"not null"`
	Color       string    `gorm:"not null"`
	HotKey      *string
	Description *string
}

type Project struct {
	gorm.Model
	ID             uuid.UUID      `gorm:"primaryKey;"`
	Name           string         `gorm:"not null"`
	Description    string
	Status         ProjectStatus  `gorm:"not null;default:DRAFT"`
	TrainingStatus TrainingStatus `gorm:"not null;default:STOP"`

	// TotalImages is the authoritative count of persisted tiles. It only
	// ever grows, in lockstep with the annotation records keyed by
	// [0, TotalImages).
	TotalImages int `gorm:"not null;default:0"`

	SuggestImageIndices []byte            `gorm:"type:jsonb"`
	AnnotationClasses   []AnnotationClass `gorm:"constraint:OnDelete:CASCADE;"`

	TrainingProgress float64 `gorm:"default:0"`
	AvgDiceScore     float64 `gorm:"default:0"`
	ErrorDiceScore   float64 `gorm:"default:0"`
	AvgPrecision     float64 `gorm:"default:0"`
	AvgRecall        float64 `gorm:"default:0"`

	AnnotationUpdatedAt time.Time
	MetricUpdatedAt     time.Time

	CreatedBy string
}

type ProjectList []Project

func (p Project) String() string {
	val, _ := json.Marshal(p)
	return string(val)
}
