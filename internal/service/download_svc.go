package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/socio-dl/socio-go/internal/metrics"
	"github.com/socio-dl/socio-go/internal/model"
	"github.com/socio-dl/socio-go/internal/platform"
)

// persistTimeout bounds the history write that follows a job.
const persistTimeout = 5 * time.Second

// DownloadService is the request-level flow behind the download API:
// platform check, quota, job slot, orchestration, history, event.
//
// The platform is validated before quota is consumed, so unsupported URLs
// never cost the caller a download.
type DownloadService struct {
	quota      *QuotaService
	jobs       *JobService
	slots      *JobSlots
	history    HistoryStore
	fetcher    Fetcher
	events     EventPublisher
	jobTimeout time.Duration
	logger     zerolog.Logger
}

type DownloadDeps struct {
	Quota      *QuotaService
	Jobs       *JobService
	Slots      *JobSlots
	History    HistoryStore
	Fetcher    Fetcher
	Events     EventPublisher
	JobTimeout time.Duration
}

func NewDownloadService(d DownloadDeps, logger zerolog.Logger) *DownloadService {
	return &DownloadService{
		quota:      d.Quota,
		jobs:       d.Jobs,
		slots:      d.Slots,
		history:    d.History,
		fetcher:    d.Fetcher,
		events:     d.Events,
		jobTimeout: d.JobTimeout,
		logger:     logger,
	}
}

// DownloadOutcome is a successful download. HistorySaved is false when the
// job succeeded but its record could not be written.
type DownloadOutcome struct {
	Result       *model.JobResult
	Decision     model.QuotaDecision
	HistorySaved bool
	PersistErr   error
}

// Download runs a quota-gated job for identity.
func (s *DownloadService) Download(ctx context.Context, identity, sourceURL, format string) (*DownloadOutcome, error) {
	plat := platform.Classify(sourceURL)
	if plat == platform.Unknown {
		return nil, ErrUnsupportedPlatform
	}

	decision, err := s.quota.CheckAndConsume(ctx, identity)
	if err != nil {
		return nil, err
	}

	release, err := s.slots.Acquire(ctx)
	if err != nil {
		s.logger.Warn().Str("identity", identity).Msg("download: no job slot available")
		return nil, err
	}
	defer release()

	jobCtx := ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	res, runErr := s.jobs.Run(jobCtx, sourceURL, format)

	rec := buildRecord(identity, sourceURL, plat, format, res, runErr)
	metrics.JobsTotal.WithLabelValues(string(rec.Status)).Inc()
	metrics.JobDuration.WithLabelValues(string(rec.Status)).Observe(time.Since(start).Seconds())

	persistErr := s.persist(ctx, rec)
	s.publish(ctx, rec)

	if runErr != nil {
		s.logger.Warn().Err(runErr).Str("job_id", rec.ID).Str("platform", plat).Msg("download: job failed")
		return nil, runErr
	}

	return &DownloadOutcome{
		Result:       res,
		Decision:     decision,
		HistorySaved: persistErr == nil,
		PersistErr:   persistErr,
	}, nil
}

// VideoInfo resolves display metadata without touching the quota.
func (s *DownloadService) VideoInfo(ctx context.Context, sourceURL string) (*model.VideoInfo, error) {
	plat := platform.Classify(sourceURL)
	if plat == platform.Unknown {
		return nil, ErrUnsupportedPlatform
	}

	info, err := s.fetcher.ResolveMetadata(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	info.Platform = plat
	info.OriginalURL = sourceURL
	if len(info.Formats) > model.MaxDisplayFormats {
		info.Formats = info.Formats[:model.MaxDisplayFormats]
	}
	return info, nil
}

// Usage is the read-only quota status for identity.
func (s *DownloadService) Usage(ctx context.Context, identity string) model.QuotaDecision {
	return s.quota.Usage(ctx, identity)
}

// MaxPerDay is the configured daily cap.
func (s *DownloadService) MaxPerDay() int64 {
	return s.quota.Max()
}

// History lists identity's recent jobs, newest first.
func (s *DownloadService) History(ctx context.Context, identity string, limit int) ([]model.JobRecord, error) {
	recs, err := s.history.ListByIdentity(ctx, identity, limit)
	if err != nil {
		if errors.Is(err, ErrPersistenceFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	return recs, nil
}

func (s *DownloadService) persist(ctx context.Context, rec *model.JobRecord) error {
	if err := rec.Validate(); err != nil {
		s.logger.Error().Err(err).Str("job_id", rec.ID).Msg("download: refusing to persist invalid record")
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	// The job already happened; a client disconnect must not lose its record.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.history.Append(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("job_id", rec.ID).Str("status", string(rec.Status)).Msg("download: history append failed")
		if errors.Is(err, ErrPersistenceFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	return nil
}

func (s *DownloadService) publish(ctx context.Context, rec *model.JobRecord) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.events.PublishJob(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Str("job_id", rec.ID).Msg("download: event publish failed")
	}
}

func buildRecord(identity, sourceURL, plat, format string, res *model.JobResult, runErr error) *model.JobRecord {
	rec := &model.JobRecord{
		Identity:        identity,
		SourceURL:       sourceURL,
		Platform:        plat,
		RequestedFormat: format,
		Status:          model.JobFailed,
	}
	if res != nil {
		rec.ID = res.ID
		rec.Title = res.Title
		rec.Duration = res.Duration
		rec.FileSize = res.FileSize
		rec.CreatedAt = res.CreatedAt
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	if runErr != nil {
		var jobErr *JobError
		if errors.As(runErr, &jobErr) {
			rec.ErrorCode = jobErr.Code()
			if rec.ID == "" {
				rec.ID = jobErr.JobID
			}
		} else {
			rec.ErrorCode = "JOB_FAILED"
		}
		return rec
	}

	expires := res.ExpiresAt
	rec.Status = model.JobCompleted
	rec.DurableURL = res.DurableURL
	rec.ExpiresAt = &expires
	return rec
}
