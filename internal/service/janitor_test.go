package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, dir bool, age time.Duration) {
	t.Helper()
	if dir {
		require.NoError(t, os.MkdirAll(path, 0o700))
	} else {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestJanitorSweep(t *testing.T) {
	work := t.TempDir()
	public := t.TempDir()

	touch(t, filepath.Join(work, "job-old"), true, 2*time.Hour)
	touch(t, filepath.Join(work, "job-new"), true, time.Minute)
	touch(t, filepath.Join(work, "keep-me"), true, 5*time.Hour)
	touch(t, filepath.Join(public, "old.mp4"), false, 48*time.Hour)
	touch(t, filepath.Join(public, "new.mp4"), false, time.Hour)

	j := NewJanitor(JanitorConfig{
		WorkDir:         work,
		WorkspaceMaxAge: time.Hour,
		ArtifactDir:     public,
		ArtifactTTL:     24 * time.Hour,
		Interval:        time.Hour,
	}, zerolog.Nop())

	ws, arts := j.Sweep()
	assert.Equal(t, 1, ws)
	assert.Equal(t, 1, arts)

	assert.NoDirExists(t, filepath.Join(work, "job-old"))
	assert.DirExists(t, filepath.Join(work, "job-new"))
	assert.DirExists(t, filepath.Join(work, "keep-me"))
	assert.NoFileExists(t, filepath.Join(public, "old.mp4"))
	assert.FileExists(t, filepath.Join(public, "new.mp4"))
}

func TestJanitorSweep_MissingDirs(t *testing.T) {
	j := NewJanitor(JanitorConfig{
		WorkDir:         filepath.Join(t.TempDir(), "nope"),
		WorkspaceMaxAge: time.Hour,
		Interval:        time.Hour,
	}, zerolog.Nop())

	ws, arts := j.Sweep()
	assert.Zero(t, ws)
	assert.Zero(t, arts)
}

func TestJanitorStartStop(t *testing.T) {
	work := t.TempDir()
	touch(t, filepath.Join(work, "job-stale"), true, 2*time.Hour)

	j := NewJanitor(JanitorConfig{WorkDir: work, WorkspaceMaxAge: time.Hour, Interval: time.Hour}, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		j.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(work, "job-stale"))
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)

	j.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
