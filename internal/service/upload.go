package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/annolab/tile-ingest/internal/blobstore"
	"github.com/annolab/tile-ingest/internal/store"
	"github.com/annolab/tile-ingest/internal/store/model"
	"github.com/annolab/tile-ingest/pkg/metrics"
)

// Tile is one rendered, encoded tile ready for upload.
type Tile struct {
	Name string
	Data []byte
}

// TileResult is one item of the lazily produced tile stream. A non-nil Err
// aborts the run before the failing tile's batch is flushed.
type TileResult struct {
	Tile Tile
	Err  error
}

// UploadCoordinator groups rendered tiles into fixed-size batches and, per
// batch, runs the object-store uploads concurrently with the bookkeeping
// pair (annotation bulk-upsert + tile counter increment). It does not move
// to the next batch until both branches of the current one finished.
type UploadCoordinator struct {
	store     store.Store
	blobs     blobstore.ObjectStore
	bucket    string
	batchSize int
}

func NewUploadCoordinator(s store.Store, blobs blobstore.ObjectStore, bucket string, batchSize int) *UploadCoordinator {
	return &UploadCoordinator{
		store:     s,
		blobs:     blobs,
		bucket:    bucket,
		batchSize: batchSize,
	}
}

// Run consumes the tile stream for one file and returns the number of tiles
// persisted. startIndex is the project's tile counter before this run;
// classCount sizes the per-tile mask placeholders. Batches flush in
// generation order, the final partial batch included.
func (c *UploadCoordinator) Run(ctx context.Context, projectID uuid.UUID, classCount, startIndex int, tiles <-chan TileResult) (int, error) {
	if err := c.blobs.EnsureBucket(ctx, c.bucket); err != nil {
		return 0, fmt.Errorf("ensuring bucket %s: %w", c.bucket, err)
	}

	persisted := 0
	batch := make([]Tile, 0, c.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.flushBatch(ctx, projectID, classCount, startIndex+persisted, batch); err != nil {
			return err
		}
		persisted += len(batch)
		batch = batch[:0]
		return nil
	}

	for result := range tiles {
		if result.Err != nil {
			return persisted, result.Err
		}

		batch = append(batch, result.Tile)
		if len(batch) == c.batchSize {
			if err := flush(); err != nil {
				return persisted, err
			}
		}
	}

	if err := flush(); err != nil {
		return persisted, err
	}
	return persisted, nil
}

func (c *UploadCoordinator) flushBatch(ctx context.Context, projectID uuid.UUID, classCount, startIndex int, batch []Tile) error {
	g, gctx := errgroup.WithContext(ctx)

	// Branch one: tile bytes to object storage, parallelism bounded by the
	// batch size.
	g.Go(func() error {
		uploads, uctx := errgroup.WithContext(gctx)
		uploads.SetLimit(c.batchSize)
		for _, tile := range batch {
			uploads.Go(func() error {
				path := fmt.Sprintf("%s/%s", projectID, tile.Name)
				return c.blobs.Upload(uctx, c.bucket, path, tile.Data)
			})
		}
		return uploads.Wait()
	})

	// Branch two: register annotation placeholders and advance the tile
	// counter. Both must succeed for the batch to count.
	g.Go(func() error {
		annotations := make([]model.Annotation, len(batch))
		for i := range batch {
			annotations[i] = model.NewEmptyAnnotation(projectID, startIndex+i, classCount)
		}
		if err := c.store.Annotation().BulkUpsert(gctx, annotations); err != nil {
			return fmt.Errorf("bulk upsert annotations: %w", err)
		}
		if _, err := c.store.Project().IncrementTotalImages(gctx, projectID, len(batch)); err != nil {
			return fmt.Errorf("incrementing total images: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		metrics.IncreaseTilesUploadedMetric("failed", len(batch))
		return err
	}
	metrics.IncreaseTilesUploadedMetric("uploaded", len(batch))
	return nil
}
