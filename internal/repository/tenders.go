package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/downoff/lucius-backend/internal/domain"
)

// TendersRepository persists normalized procurement notices. URL is the
// natural key: upserting an existing URL updates the record in place.
type TendersRepository interface {
	UpsertByURL(ctx context.Context, tender *domain.Tender) (created bool, err error)
	GetByURL(ctx context.Context, url string) (*domain.Tender, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Tender, error)
}

type MemoryTendersRepository struct {
	mu      sync.Mutex
	tenders map[string]*domain.Tender
}

func NewMemoryTendersRepository() *MemoryTendersRepository {
	return &MemoryTendersRepository{tenders: make(map[string]*domain.Tender)}
}

func (r *MemoryTendersRepository) UpsertByURL(_ context.Context, tender *domain.Tender) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := r.tenders[tender.URL]
	if ok {
		updated := *tender
		updated.ID = existing.ID
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = now
		r.tenders[tender.URL] = cloneTender(&updated)
		tender.ID = existing.ID
		return false, nil
	}

	stored := *tender
	if stored.ID == "" {
		stored.ID = tender.URL
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.tenders[tender.URL] = cloneTender(&stored)
	tender.ID = stored.ID
	return true, nil
}

func (r *MemoryTendersRepository) GetByURL(_ context.Context, url string) (*domain.Tender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tender, ok := r.tenders[url]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTender(tender), nil
}

func (r *MemoryTendersRepository) ListRecent(_ context.Context, limit int) ([]domain.Tender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	out := make([]domain.Tender, 0, len(r.tenders))
	for _, tender := range r.tenders {
		out = append(out, *cloneTender(tender))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneTender(tender *domain.Tender) *domain.Tender {
	clone := *tender
	clone.CPVCodes = append([]string(nil), tender.CPVCodes...)
	clone.DocumentLinks = append([]string(nil), tender.DocumentLinks...)
	clone.MatchedReasons = append([]string(nil), tender.MatchedReasons...)
	return &clone
}
