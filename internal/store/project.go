package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/annolab/tile-ingest/internal/store/model"
)

type Project interface {
	List(ctx context.Context) (model.ProjectList, error)
	Create(ctx context.Context, project model.Project) (*model.Project, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Update(ctx context.Context, id uuid.UUID, status *model.ProjectStatus, trainingStatus *model.TrainingStatus) (*model.Project, error)
	IncrementTotalImages(ctx context.Context, id uuid.UUID, delta int) (*model.Project, error)
	InitialMigration() error
}

type ProjectStore struct {
	db *gorm.DB
}

// Make sure we conform to Project interface
var _ Project = (*ProjectStore)(nil)

func NewProjectStore(db *gorm.DB) Project {
	return &ProjectStore{db: db}
}

func (p *ProjectStore) InitialMigration() error {
	return p.db.AutoMigrate(&model.Project{}, &model.AnnotationClass{})
}

func (p *ProjectStore) List(ctx context.Context) (model.ProjectList, error) {
	var projects model.ProjectList
	result := p.db.WithContext(ctx).Model(&projects).Order("id").Preload("AnnotationClasses").Find(&projects)
	if result.Error != nil {
		return nil, result.Error
	}
	return projects, nil
}

func (p *ProjectStore) Create(ctx context.Context, project model.Project) (*model.Project, error) {
	result := p.db.WithContext(ctx).Create(&project)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &project, nil
}

func (p *ProjectStore) Get(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	project := model.Project{ID: id}
	result := p.db.WithContext(ctx).Preload("AnnotationClasses").First(&project)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &project, nil
}

func (p *ProjectStore) Delete(ctx context.Context, id uuid.UUID) error {
	project := model.Project{ID: id}
	result := p.db.WithContext(ctx).Unscoped().Delete(&project)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

// Update applies a partial update and returns the updated row. A missing
// project surfaces as ErrRecordNotFound, never as a silent no-op.
func (p *ProjectStore) Update(ctx context.Context, id uuid.UUID, status *model.ProjectStatus, trainingStatus *model.TrainingStatus) (*model.Project, error) {
	project := model.Project{ID: id}
	selectFields := []string{}
	if status != nil {
		project.Status = *status
		selectFields = append(selectFields, "status")
	}
	if trainingStatus != nil {
		project.TrainingStatus = *trainingStatus
		selectFields = append(selectFields, "training_status")
	}

	result := p.db.WithContext(ctx).Model(&project).Clauses(clause.Returning{}).Select(selectFields).Updates(&project)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}

	return &project, nil
}

// IncrementTotalImages atomically advances the persisted-tile counter and
// returns the updated project. The counter never decreases.
func (p *ProjectStore) IncrementTotalImages(ctx context.Context, id uuid.UUID, delta int) (*model.Project, error) {
	result := p.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_images":          gorm.Expr("total_images + ?", delta),
			"annotation_updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}

	return p.Get(ctx, id)
}
