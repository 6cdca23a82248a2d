package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/annolab/tile-ingest/internal/store/model"
)

type Store interface {
	Project() Project
	Annotation() Annotation
	Statistics(ctx context.Context) (Statistics, error)
	InitialMigration() error
	Close() error
}

// Statistics aggregates project counters for the metrics collectors.
type Statistics struct {
	TotalProjects    int
	TotalTiles       int
	ProjectsByStatus map[string]int
}

type DataStore struct {
	project    Project
	annotation Annotation
	db         *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		project:    NewProjectStore(db),
		annotation: NewAnnotationStore(db),
		db:         db,
	}
}

func (s *DataStore) Project() Project {
	return s.project
}

func (s *DataStore) Annotation() Annotation {
	return s.annotation
}

func (s *DataStore) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{ProjectsByStatus: make(map[string]int)}

	var totalProjects int64
	if err := s.db.WithContext(ctx).Model(&model.Project{}).Count(&totalProjects).Error; err != nil {
		return stats, err
	}
	stats.TotalProjects = int(totalProjects)

	var totalTiles int64
	tx := s.db.WithContext(ctx).Model(&model.Project{}).
		Select("COALESCE(SUM(total_images), 0)").Scan(&totalTiles)
	if tx.Error != nil {
		return stats, tx.Error
	}
	stats.TotalTiles = int(totalTiles)

	var byStatus []struct {
		Status string
		Total  int
	}
	tx = s.db.WithContext(ctx).Model(&model.Project{}).
		Select("status, COUNT(*) AS total").Group("status").Scan(&byStatus)
	if tx.Error != nil {
		return stats, tx.Error
	}
	for _, row := range byStatus {
		stats.ProjectsByStatus[row.Status] = row.Total
	}

	return stats, nil
}

func (s *DataStore) InitialMigration() error {
	if err := s.project.InitialMigration(); err != nil {
		return err
	}
	return s.annotation.InitialMigration()
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
