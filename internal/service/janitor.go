package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/socio-dl/socio-go/internal/metrics"
)

// Janitor periodically removes job workspaces orphaned by a crash and local
// artifacts past their expiry. Workspaces of live jobs are always younger than
// the job timeout, so WorkspaceMaxAge must not be shorter than it.
type Janitor struct {
	workDir         string
	workspaceMaxAge time.Duration
	artifactDir     string
	artifactTTL     time.Duration
	interval        time.Duration
	logger          zerolog.Logger
	now             func() time.Time
	stopCh          chan struct{}
}

type JanitorConfig struct {
	WorkDir         string
	WorkspaceMaxAge time.Duration
	// ArtifactDir is empty when artifacts live off-host.
	ArtifactDir string
	ArtifactTTL time.Duration
	Interval    time.Duration
}

func NewJanitor(cfg JanitorConfig, logger zerolog.Logger) *Janitor {
	return &Janitor{
		workDir:         cfg.WorkDir,
		workspaceMaxAge: cfg.WorkspaceMaxAge,
		artifactDir:     cfg.ArtifactDir,
		artifactTTL:     cfg.ArtifactTTL,
		interval:        cfg.Interval,
		logger:          logger,
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}
}

// Start runs one sweep immediately, then every interval until ctx ends or Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info().Dur("interval", j.interval).Msg("janitor: starting")

	j.Sweep()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-ctx.Done():
			j.logger.Info().Msg("janitor: stopping (context cancelled)")
			return
		case <-j.stopCh:
			j.logger.Info().Msg("janitor: stopping (stop signal)")
			return
		}
	}
}

// Stop signals the janitor to stop.
func (j *Janitor) Stop() {
	close(j.stopCh)
}

// Sweep runs one cleanup cycle and returns how many paths were removed.
func (j *Janitor) Sweep() (workspaces, artifacts int) {
	start := j.now()

	workspaces = j.sweepDir(j.workDir, j.workspaceMaxAge, "workspace", func(e os.DirEntry) bool {
		return e.IsDir() && strings.HasPrefix(e.Name(), WorkspacePrefix)
	})
	if j.artifactDir != "" {
		artifacts = j.sweepDir(j.artifactDir, j.artifactTTL, "artifact", func(e os.DirEntry) bool {
			return e.Type().IsRegular()
		})
	}

	if workspaces > 0 || artifacts > 0 {
		j.logger.Info().
			Int("workspaces", workspaces).
			Int("artifacts", artifacts).
			Dur("elapsed", j.now().Sub(start)).
			Msg("janitor: sweep complete")
	}
	return workspaces, artifacts
}

func (j *Janitor) sweepDir(dir string, maxAge time.Duration, kind string, match func(os.DirEntry) bool) int {
	if dir == "" || maxAge <= 0 {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Error().Err(err).Str("dir", dir).Msg("janitor: read dir failed")
		}
		return 0
	}

	cutoff := j.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !match(e) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			j.logger.Error().Err(err).Str("path", path).Msg("janitor: remove failed")
			continue
		}
		metrics.JanitorRemoved.WithLabelValues(kind).Inc()
		removed++
	}
	return removed
}
