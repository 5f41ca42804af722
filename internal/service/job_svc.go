package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/socio-dl/socio-go/internal/model"
)

// DefaultArtifactTTL is how long a published artifact stays reachable.
const DefaultArtifactTTL = 24 * time.Hour

// JobService runs one fetch-and-publish job inside a private workspace.
type JobService struct {
	fetcher     Fetcher
	uploader    Uploader
	workDir     string
	folder      string
	artifactTTL time.Duration
	logger      zerolog.Logger
	now         func() time.Time
	newID       func() string
}

type JobConfig struct {
	WorkDir     string
	Folder      string
	ArtifactTTL time.Duration
}

func NewJobService(fetcher Fetcher, uploader Uploader, cfg JobConfig, logger zerolog.Logger) *JobService {
	if cfg.ArtifactTTL <= 0 {
		cfg.ArtifactTTL = DefaultArtifactTTL
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &JobService{
		fetcher:     fetcher,
		uploader:    uploader,
		workDir:     cfg.WorkDir,
		folder:      cfg.Folder,
		artifactTTL: cfg.ArtifactTTL,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// WorkspacePrefix names every job workspace directory, so orphans can be found.
const WorkspacePrefix = "job-"

// Workspace returns the directory owned by jobID.
func (s *JobService) Workspace(jobID string) string {
	return filepath.Join(s.workDir, WorkspacePrefix+jobID)
}

// Run fetches sourceURL with the given format preference and publishes the
// result. Every call allocates a new job id and a new durable artifact. The
// workspace is removed on every return path. On failure the returned error
// is a *JobError and the result carries the job id and creation time only.
func (s *JobService) Run(ctx context.Context, sourceURL, format string) (*model.JobResult, error) {
	jobID := s.newID()
	res := &model.JobResult{ID: jobID, CreatedAt: s.now()}
	log := s.logger.With().Str("job_id", jobID).Logger()

	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return res, newJobError(jobID, ErrDownloadFailed, err, "could not prepare work directory")
	}
	ws := s.Workspace(jobID)
	if err := os.Mkdir(ws, 0o700); err != nil {
		return res, newJobError(jobID, ErrDownloadFailed, err, "could not allocate workspace")
	}
	defer func() {
		if err := os.RemoveAll(ws); err != nil {
			log.Error().Err(err).Str("workspace", ws).Msg("job: workspace cleanup failed")
		}
	}()

	log.Info().Str("url", sourceURL).Str("format", format).Msg("job: started")

	info, err := s.fetcher.ResolveMetadata(ctx, sourceURL)
	if err != nil {
		return res, newJobError(jobID, ErrExtractionFailed, err, "could not read media information")
	}
	res.Title = info.Title
	res.Duration = info.Duration
	res.Thumbnail = info.Thumbnail

	if err := s.fetcher.Materialize(ctx, sourceURL, format, ws, jobID); err != nil {
		return res, newJobError(jobID, ErrDownloadFailed, err, "could not download media")
	}

	artifact, size, err := findArtifact(ws, jobID)
	if err != nil {
		return res, newJobError(jobID, err, nil, "download produced no usable file")
	}
	res.FileSize = size

	durableURL, err := s.uploader.Publish(ctx, artifact, s.publicID(jobID))
	if err != nil {
		return res, newJobError(jobID, ErrUploadFailed, err, "could not publish file")
	}
	if durableURL == "" {
		return res, newJobError(jobID, ErrUploadFailed, nil, "uploader returned an empty url")
	}

	res.DurableURL = durableURL
	res.ExpiresAt = s.now().Add(s.artifactTTL)
	if !res.ExpiresAt.After(res.CreatedAt) {
		res.ExpiresAt = res.CreatedAt.Add(s.artifactTTL)
	}

	log.Info().
		Int64("file_size", size).
		Str("download_url", durableURL).
		Time("expires_at", res.ExpiresAt).
		Msg("job: completed")
	return res, nil
}

func (s *JobService) publicID(jobID string) string {
	if s.folder == "" {
		return jobID
	}
	return path.Join(s.folder, jobID)
}

// findArtifact returns the single regular file in dir whose name starts with
// jobID. Partial-download leftovers are ignored.
func findArtifact(dir, jobID string) (string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}

	var matches []os.DirEntry
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, jobID) {
			continue
		}
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		matches = append(matches, e)
	}

	switch len(matches) {
	case 0:
		return "", 0, ErrNoArtifact
	case 1:
	default:
		return "", 0, ErrAmbiguousArtifact
	}

	info, err := matches[0].Info()
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}
	if info.Size() == 0 {
		return "", 0, fmt.Errorf("%w: file is empty", ErrNoArtifact)
	}
	return filepath.Join(dir, matches[0].Name()), info.Size(), nil
}
