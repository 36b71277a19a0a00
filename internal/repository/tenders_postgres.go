package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/downoff/lucius-backend/internal/domain"
)

type PostgresTendersRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresTendersRepository(pool *pgxpool.Pool) *PostgresTendersRepository {
	return &PostgresTendersRepository{pool: pool}
}

func (r *PostgresTendersRepository) UpsertByURL(ctx context.Context, tender *domain.Tender) (bool, error) {
	now := time.Now().UTC()
	var created bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tenders (
			url, source, title, description_raw, short_description, authority,
			country, cpv_codes, budget, deadline, published_at, document_links,
			relevance_score, matched_reasons, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)
		ON CONFLICT (url) DO UPDATE SET
			source = EXCLUDED.source,
			title = EXCLUDED.title,
			description_raw = EXCLUDED.description_raw,
			short_description = EXCLUDED.short_description,
			authority = EXCLUDED.authority,
			country = EXCLUDED.country,
			cpv_codes = EXCLUDED.cpv_codes,
			budget = EXCLUDED.budget,
			deadline = EXCLUDED.deadline,
			published_at = EXCLUDED.published_at,
			document_links = EXCLUDED.document_links,
			relevance_score = EXCLUDED.relevance_score,
			matched_reasons = EXCLUDED.matched_reasons,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)
	`,
		tender.URL, tender.Source, tender.Title, tender.DescriptionRaw,
		tender.ShortDescription, tender.Authority, tender.Country,
		tender.CPVCodes, tender.Budget, tender.Deadline, tender.PublishedAt,
		tender.DocumentLinks, tender.RelevanceScore, tender.MatchedReasons, now,
	).Scan(&created)
	if err != nil {
		return false, storageErr("upsert tender", err)
	}
	return created, nil
}

func (r *PostgresTendersRepository) GetByURL(ctx context.Context, url string) (*domain.Tender, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT url, source, title, description_raw, short_description, authority,
			country, cpv_codes, budget, deadline, published_at, document_links,
			relevance_score, matched_reasons, created_at, updated_at
		FROM tenders
		WHERE url = $1
	`, url)
	tender, err := scanTender(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr("query tender", err)
	}
	return tender, nil
}

func (r *PostgresTendersRepository) ListRecent(ctx context.Context, limit int) ([]domain.Tender, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT url, source, title, description_raw, short_description, authority,
			country, cpv_codes, budget, deadline, published_at, document_links,
			relevance_score, matched_reasons, created_at, updated_at
		FROM tenders
		ORDER BY published_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, storageErr("list tenders", err)
	}
	defer rows.Close()

	out := make([]domain.Tender, 0, limit)
	for rows.Next() {
		tender, err := scanTender(rows)
		if err != nil {
			return nil, storageErr("scan tender", err)
		}
		out = append(out, *tender)
	}
	if rows.Err() != nil {
		return nil, storageErr("iterate tenders", rows.Err())
	}
	return out, nil
}

func scanTender(row pgx.Row) (*domain.Tender, error) {
	var tender domain.Tender
	err := row.Scan(
		&tender.URL, &tender.Source, &tender.Title, &tender.DescriptionRaw,
		&tender.ShortDescription, &tender.Authority, &tender.Country,
		&tender.CPVCodes, &tender.Budget, &tender.Deadline, &tender.PublishedAt,
		&tender.DocumentLinks, &tender.RelevanceScore, &tender.MatchedReasons,
		&tender.CreatedAt, &tender.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tender.ID = tender.URL
	return &tender, nil
}
