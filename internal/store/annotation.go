package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/annolab/tile-ingest/internal/store/model"
)

type Annotation interface {
	Get(ctx context.Context, projectID uuid.UUID, imageIndex int) (*model.Annotation, error)
	List(ctx context.Context, projectID uuid.UUID) (model.AnnotationList, error)
	Count(ctx context.Context, projectID uuid.UUID) (int64, error)
	BulkUpsert(ctx context.Context, annotations []model.Annotation) error
	InitialMigration() error
}

type AnnotationStore struct {
	db *gorm.DB
}

// Make sure we conform to Annotation interface
var _ Annotation = (*AnnotationStore)(nil)

func NewAnnotationStore(db *gorm.DB) Annotation {
	return &AnnotationStore{db: db}
}

func (a *AnnotationStore) InitialMigration() error {
	return a.db.AutoMigrate(&model.Annotation{})
}

func (a *AnnotationStore) Get(ctx context.Context, projectID uuid.UUID, imageIndex int) (*model.Annotation, error) {
	var annotation model.Annotation
	result := a.db.WithContext(ctx).
		Where("project_id = ? AND image_index = ?", projectID, imageIndex).
		First(&annotation)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &annotation, nil
}

func (a *AnnotationStore) List(ctx context.Context, projectID uuid.UUID) (model.AnnotationList, error) {
	var annotations model.AnnotationList
	result := a.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("image_index").
		Find(&annotations)
	if result.Error != nil {
		return nil, result.Error
	}
	return annotations, nil
}

func (a *AnnotationStore) Count(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	result := a.db.WithContext(ctx).Model(&model.Annotation{}).
		Where("project_id = ?", projectID).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// BulkUpsert registers annotation placeholders keyed by (project, image
// index). Existing records are left untouched, so re-running the same batch
// is safe.
func (a *AnnotationStore) BulkUpsert(ctx context.Context, annotations []model.Annotation) error {
	if len(annotations) == 0 {
		return nil
	}

	result := a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "image_index"}},
		DoNothing: true,
	}).Create(&annotations)

	return result.Error
}
