package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

var _ Store = (*MemoryPostStore)(nil)

// MemoryPostStore keeps posts in a map keyed by source id.
// It is meant for development and tests; data is lost on restart.
type MemoryPostStore struct {
	mu       sync.RWMutex
	bySource map[string]core.Post
	now      func() time.Time
}

func NewMemoryPostStore() *MemoryPostStore {
	return &MemoryPostStore{
		bySource: make(map[string]core.Post),
		now:      time.Now,
	}
}

func (s *MemoryPostStore) FindBySourceID(ctx context.Context, sourceID string) (*core.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.bySource[sourceID]
	if !ok {
		return nil, nil
	}
	return clonePost(post), nil
}

func (s *MemoryPostStore) Insert(ctx context.Context, post *core.Post) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySource[post.SourceID]; exists {
		return "", fmt.Errorf("source id %q: %w", post.SourceID, core.ErrDuplicateSourceID)
	}

	stored := *clonePost(*post)
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now().UTC()
	s.bySource[stored.SourceID] = stored
	return stored.ID, nil
}

func (s *MemoryPostStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored posts.
func (s *MemoryPostStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySource)
}

func (s *MemoryPostStore) Close() error {
	return nil
}

func clonePost(p core.Post) *core.Post {
	if p.Meta.RawImages != nil {
		images := make([]string, len(p.Meta.RawImages))
		copy(images, p.Meta.RawImages)
		p.Meta.RawImages = images
	}
	return &p
}
