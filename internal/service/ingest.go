package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/annolab/tile-ingest/internal/blobstore"
	"github.com/annolab/tile-ingest/internal/config"
	"github.com/annolab/tile-ingest/internal/image"
	"github.com/annolab/tile-ingest/internal/pod"
	"github.com/annolab/tile-ingest/internal/store"
	"github.com/annolab/tile-ingest/internal/store/model"
)

// IngestService drives the split-and-upload pipeline: download the staged
// original, plan the tile grid, render tiles and hand them to the upload
// coordinator, then stand up the training pod on a project's first upload.
type IngestService struct {
	store  store.Store
	blobs  blobstore.ObjectStore
	pods   *pod.Orchestrator
	cfg    *config.Config
	logger *zap.SugaredLogger
}

func NewIngestService(s store.Store, blobs blobstore.ObjectStore, pods *pod.Orchestrator, cfg *config.Config) *IngestService {
	return &IngestService{
		store:  s,
		blobs:  blobs,
		pods:   pods,
		cfg:    cfg,
		logger: zap.S().Named("ingest_service"),
	}
}

// SplitAndUpload processes the staged files in order. Any failure stops the
// remaining files and forces the project status back to DRAFT. The rollback
// is status-only: tiles and counter increments persisted by batches that
// already succeeded stay in place.
func (s *IngestService) SplitAndUpload(ctx context.Context, projectID uuid.UUID, fileNames []string) error {
	if err := s.process(ctx, projectID, fileNames); err != nil {
		s.logger.Errorw("upload failed, rolling project back to draft", "project", projectID, "error", err)
		s.rollbackToDraft(ctx, projectID)
		return err
	}
	return nil
}

func (s *IngestService) process(ctx context.Context, projectID uuid.UUID, fileNames []string) error {
	for _, fileName := range fileNames {
		if err := s.processFile(ctx, projectID, fileName); err != nil {
			return err
		}
		s.logger.Infow("split and upload finished", "project", projectID, "file", fileName)
	}
	return nil
}

func (s *IngestService) processFile(ctx context.Context, projectID uuid.UUID, fileName string) error {
	s.logger.Infow("downloading original", "project", projectID, "file", fileName)
	data, err := s.blobs.Download(ctx, s.cfg.Service.S3.OriginalBucket, fmt.Sprintf("%s/%s", projectID, fileName))
	if err != nil {
		return fmt.Errorf("downloading %s: %w", fileName, err)
	}

	if err := image.Validate(data, s.cfg.Service.ImageByteLimit, s.cfg.Service.ImagePixelLimit); err != nil {
		if errors.Is(err, image.ErrImageTooLarge) {
			return NewErrImageRejected(projectID, err)
		}
		return NewErrInvalidImage(fileName, err)
	}

	project, err := s.store.Project().Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrProjectNotFound(projectID)
		}
		return err
	}

	width, height, _, err := image.Meta(data)
	if err != nil {
		return NewErrInvalidImage(fileName, err)
	}

	plan, err := image.Plan(width, height, s.cfg.Service.TileSize, fileName)
	if err != nil {
		return NewErrInvalidImage(fileName, err)
	}

	src, err := image.Decode(data)
	if err != nil {
		return NewErrInvalidImage(fileName, err)
	}

	// The renderer feeds the coordinator lazily; cancelling unblocks the
	// producer when a batch fails mid-stream.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tiles := make(chan TileResult)
	go func() {
		defer close(tiles)
		for _, entry := range plan.Entries {
			buf, err := image.RenderTile(src, entry, plan.TileSize)
			result := TileResult{Tile: Tile{Name: entry.FileName, Data: buf}, Err: err}
			select {
			case tiles <- result:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	coordinator := NewUploadCoordinator(s.store, s.blobs, s.cfg.Service.S3.PublicBucket, s.cfg.Service.UploadBatchSize)
	firstUpload := project.TotalImages == 0

	persisted, err := coordinator.Run(ctx, projectID, len(project.AnnotationClasses), project.TotalImages, tiles)
	if err != nil {
		return err
	}
	s.logger.Infow("tiles persisted", "project", projectID, "file", fileName, "count", persisted)

	if firstUpload && persisted > 0 {
		if _, err := s.pods.CreateOrUpdate(ctx, projectID.String(), nil); err != nil {
			return fmt.Errorf("standing up training pod: %w", err)
		}
	}

	status := model.ProjectStatusInProgress
	if _, err := s.store.Project().Update(ctx, projectID, &status, nil); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrProjectUpdateConflict(projectID)
		}
		return err
	}

	return nil
}

func (s *IngestService) rollbackToDraft(ctx context.Context, projectID uuid.UUID) {
	status := model.ProjectStatusDraft
	if _, err := s.store.Project().Update(ctx, projectID, &status, nil); err != nil {
		s.logger.Errorw("failed to roll project back to draft", "project", projectID, "error", err)
	}
}
