package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/downoff/lucius-backend/internal/domain"
)

func TestMemoryTendersRepository_UpsertCreatesThenUpdates(t *testing.T) {
	repo := NewMemoryTendersRepository()
	ctx := context.Background()

	tender := &domain.Tender{
		Source:         "contracts-finder",
		URL:            "https://example.com/notice/1",
		Title:          "Cloud hosting services",
		RelevanceScore: 20,
	}
	created, err := repo.UpsertByURL(ctx, tender)
	require.NoError(t, err)
	assert.True(t, created)

	update := &domain.Tender{
		Source:         "contracts-finder",
		URL:            "https://example.com/notice/1",
		Title:          "Cloud hosting services (amended)",
		RelevanceScore: 35,
	}
	created, err = repo.UpsertByURL(ctx, update)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repo.GetByURL(ctx, "https://example.com/notice/1")
	require.NoError(t, err)
	assert.Equal(t, "Cloud hosting services (amended)", stored.Title)
	assert.Equal(t, 35, stored.RelevanceScore)
	assert.Equal(t, tender.ID, stored.ID)
}

func TestMemoryTendersRepository_GetByURLNotFound(t *testing.T) {
	repo := NewMemoryTendersRepository()

	_, err := repo.GetByURL(context.Background(), "https://example.com/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTendersRepository_ListRecentOrdersByPublishedAt(t *testing.T) {
	repo := NewMemoryTendersRepository()
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	for i, url := range []string{"https://a", "https://b", "https://c"} {
		_, err := repo.UpsertByURL(ctx, &domain.Tender{
			URL:         url,
			Title:       url,
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "https://c", recent[0].URL)
	assert.Equal(t, "https://b", recent[1].URL)
}

func TestMemoryTendersRepository_ListRecentReturnsCopies(t *testing.T) {
	repo := NewMemoryTendersRepository()
	ctx := context.Background()

	_, err := repo.UpsertByURL(ctx, &domain.Tender{
		URL:      "https://example.com/notice/2",
		CPVCodes: []string{"72000000"},
	})
	require.NoError(t, err)

	listed, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].CPVCodes[0] = "mutated"

	stored, err := repo.GetByURL(ctx, "https://example.com/notice/2")
	require.NoError(t, err)
	assert.Equal(t, "72000000", stored.CPVCodes[0])
}
