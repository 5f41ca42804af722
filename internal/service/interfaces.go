package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/socio-dl/socio-go/internal/model"
)

// QuotaStore is a remote atomic counter. Every failure, timeouts included,
// must wrap ErrQuotaStoreUnavailable.
type QuotaStore interface {
	Get(ctx context.Context, key string) (int64, error)
	Increment(ctx context.Context, key string) (int64, error)
	SetTTL(ctx context.Context, key string, ttl time.Duration) error
}

// Fetcher resolves and materializes media from a source URL.
type Fetcher interface {
	ResolveMetadata(ctx context.Context, sourceURL string) (*model.VideoInfo, error)
	// Materialize writes the media into dir, naming the file baseName plus an extension.
	Materialize(ctx context.Context, sourceURL, format, dir, baseName string) error
}

// Uploader publishes a local file and returns a publicly resolvable URL.
type Uploader interface {
	Publish(ctx context.Context, localPath, publicID string) (string, error)
}

// HistoryStore is the append-only job history.
type HistoryStore interface {
	Append(ctx context.Context, rec *model.JobRecord) error
	ListByIdentity(ctx context.Context, identity string, limit int) ([]model.JobRecord, error)
}

// EventPublisher announces finished jobs to downstream consumers.
type EventPublisher interface {
	PublishJob(ctx context.Context, rec *model.JobRecord) error
	Close() error
}
