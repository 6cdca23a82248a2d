package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/annolab/tile-ingest/internal/store"
	"github.com/annolab/tile-ingest/internal/store/model"
)

// AnnotationClassForm is one annotation class definition supplied at project
// creation.
type AnnotationClassForm struct {
	Name        string
	Color       string
	HotKey      *string
	Description *string
}

type ProjectCreateForm struct {
	Name              string
	Description       string
	AnnotationClasses []AnnotationClassForm
	CreatedBy         string
}

type ProjectService struct {
	store store.Store
}

func NewProjectService(s store.Store) *ProjectService {
	return &ProjectService{store: s}
}

func (p *ProjectService) CreateProject(ctx context.Context, form ProjectCreateForm) (*model.Project, error) {
	id := uuid.New()
	classes := make([]model.AnnotationClass, len(form.AnnotationClasses))
	for i, c := range form.AnnotationClasses {
		classes[i] = model.AnnotationClass{
			ProjectID:   id,
			Name:        c.Name,
			Color:       c.Color,
			HotKey:      c.HotKey,
			Description: c.Description,
		}
	}

	project := model.Project{
		ID:                id,
		Name:              form.Name,
		Description:       form.Description,
		Status:            model.ProjectStatusDraft,
		TrainingStatus:    model.TrainingStatusStop,
		AnnotationClasses: classes,
		CreatedBy:         form.CreatedBy,
	}

	return p.store.Project().Create(ctx, project)
}

func (p *ProjectService) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	project, err := p.store.Project().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrProjectNotFound(id)
		}
		return nil, err
	}
	return project, nil
}

func (p *ProjectService) ListProjects(ctx context.Context) (model.ProjectList, error) {
	return p.store.Project().List(ctx)
}
