package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socio-dl/socio-go/internal/model"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// ClampLimit bounds a requested history page size to [1, max].
func ClampLimit(limit, max int) int {
	if max <= 0 {
		max = MaxHistoryLimit
	}
	if limit <= 0 {
		return min(DefaultHistoryLimit, max)
	}
	return min(limit, max)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS jobs (
	seq          BIGSERIAL PRIMARY KEY,
	id           TEXT NOT NULL UNIQUE,
	identity     TEXT NOT NULL,
	source_url   TEXT NOT NULL,
	platform     TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	duration     DOUBLE PRECISION NOT NULL DEFAULT 0,
	file_size    BIGINT NOT NULL DEFAULT 0,
	format       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	download_url TEXT,
	expires_at   TIMESTAMPTZ,
	error_code   TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (status <> 'completed' OR (download_url IS NOT NULL AND expires_at > created_at))
);
CREATE INDEX IF NOT EXISTS jobs_identity_created_idx ON jobs (identity, created_at DESC, seq DESC);
`

// JobRepo is the Postgres-backed job history. Rows are only ever inserted.
type JobRepo struct {
	pool    *pgxpool.Pool
	maxList int
}

func NewJobRepo(pool *pgxpool.Pool, maxList int) *JobRepo {
	return &JobRepo{pool: pool, maxList: maxList}
}

// EnsureSchema creates the jobs table and its index if they do not exist.
func (r *JobRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure jobs schema: %w", err)
	}
	return nil
}

func (r *JobRepo) Append(ctx context.Context, rec *model.JobRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO jobs (id, identity, source_url, platform, title, duration, file_size,
			format, status, download_url, expires_at, error_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.Identity, rec.SourceURL, rec.Platform, rec.Title, rec.Duration, rec.FileSize,
		rec.RequestedFormat, string(rec.Status), nullIfEmpty(rec.DurableURL), rec.ExpiresAt,
		nullIfEmpty(rec.ErrorCode), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("append job %s: %w", rec.ID, err)
	}
	return nil
}

// ListByIdentity returns the newest records first; rows created in the same
// instant come back in reverse insertion order.
func (r *JobRepo) ListByIdentity(ctx context.Context, identity string, limit int) ([]model.JobRecord, error) {
	limit = ClampLimit(limit, r.maxList)

	rows, err := r.pool.Query(ctx, `
		SELECT id, identity, source_url, platform, title, duration, file_size, format,
			status, COALESCE(download_url, ''), expires_at, COALESCE(error_code, ''), created_at
		FROM jobs
		WHERE identity = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.JobRecord, error) {
		var rec model.JobRecord
		var status string
		err := row.Scan(&rec.ID, &rec.Identity, &rec.SourceURL, &rec.Platform, &rec.Title,
			&rec.Duration, &rec.FileSize, &rec.RequestedFormat, &status, &rec.DurableURL,
			&rec.ExpiresAt, &rec.ErrorCode, &rec.CreatedAt)
		rec.Status = model.JobStatus(status)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	if recs == nil {
		recs = []model.JobRecord{}
	}
	return recs, nil
}

// Ping reports whether the database answers, for readiness checks.
func (r *JobRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
