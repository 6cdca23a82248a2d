package service_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/annolab/tile-ingest/internal/store"
	"github.com/annolab/tile-ingest/internal/store/model"
)

// memBlobStore is an in-memory stand-in for the object store.
type memBlobStore struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte

	ensured []string

	// failAfter fails every upload once this many succeeded. Negative
	// disables the fault.
	failAfter int
	uploaded  int
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{buckets: map[string]map[string][]byte{}, failAfter: -1}
}

func (m *memBlobStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets[bucket]
	return ok, nil
}

func (m *memBlobStore) EnsureBucket(ctx context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured = append(m.ensured, bucket)
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = map[string][]byte{}
	}
	return nil
}

func (m *memBlobStore) Upload(ctx context.Context, bucket, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter >= 0 && m.uploaded >= m.failAfter {
		return fmt.Errorf("upload refused")
	}
	if _, ok := m.buckets[bucket]; !ok {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	m.buckets[bucket][path] = data
	m.uploaded++
	return nil
}

func (m *memBlobStore) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}
	data, ok := objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s/%s does not exist", bucket, path)
	}
	return data, nil
}

func (m *memBlobStore) put(bucket, path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = map[string][]byte{}
	}
	m.buckets[bucket][path] = data
}

func (m *memBlobStore) objectCount(bucket string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets[bucket])
}

func (m *memBlobStore) has(bucket, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets[bucket][path]
	return ok
}

// countingStore wraps a real store and records each tile-counter increment,
// to observe batch flush cycles.
type countingStore struct {
	store.Store
	project *countingProjectStore
}

func newCountingStore(inner store.Store) *countingStore {
	return &countingStore{
		Store:   inner,
		project: &countingProjectStore{Project: inner.Project()},
	}
}

func (c *countingStore) Project() store.Project {
	return c.project
}

type countingProjectStore struct {
	store.Project
	mu     sync.Mutex
	deltas []int
}

func (c *countingProjectStore) IncrementTotalImages(ctx context.Context, id uuid.UUID, delta int) (*model.Project, error) {
	c.mu.Lock()
	c.deltas = append(c.deltas, delta)
	c.mu.Unlock()
	return c.Project.IncrementTotalImages(ctx, id, delta)
}

func (c *countingProjectStore) increments() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.deltas...)
}
