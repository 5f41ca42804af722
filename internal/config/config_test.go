package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MAX_DOWNLOADS_PER_DAY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(5), cfg.Quota.MaxPerDay)
	assert.Equal(t, "UTC", cfg.Quota.Timezone)
	assert.Equal(t, 2*time.Second, cfg.Quota.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.ArtifactTTL)
	assert.Equal(t, "best[height<=720]", cfg.Jobs.DefaultFormat)
	assert.Equal(t, 3, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, 20, cfg.History.DefaultLimit)
	assert.Equal(t, 100, cfg.History.MaxLimit)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MAX_DOWNLOADS_PER_DAY", "12")
	t.Setenv("QUOTA_TIMEZONE", "Europe/Paris")
	t.Setenv("JOB_TIMEOUT", "90s")
	t.Setenv("YOUTUBE_NATIVE", "true")
	t.Setenv("PUBLIC_BASE_URL", "https://files.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(12), cfg.Quota.MaxPerDay)
	assert.Equal(t, "Europe/Paris", cfg.Location().String())
	assert.Equal(t, 90*time.Second, cfg.Jobs.Timeout)
	assert.True(t, cfg.Fetcher.YouTubeNative)
	assert.Equal(t, "https://files.example.com", cfg.Upload.PublicBaseURL)
}

func TestLoad_InvalidValuesReset(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MAX_DOWNLOADS_PER_DAY", "-3")
	t.Setenv("MAX_CONCURRENT_JOBS", "-1")
	t.Setenv("QUOTA_TIMEZONE", "Mars/Olympus")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(5), cfg.Quota.MaxPerDay)
	assert.Equal(t, 3, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, "UTC", cfg.Quota.Timezone)

	require.Len(t, cfg.Warnings, 3)
	assert.Contains(t, cfg.Warnings[0], "MAX_DOWNLOADS_PER_DAY")
	assert.Contains(t, cfg.Warnings[1], "MAX_CONCURRENT_JOBS")
	assert.Contains(t, cfg.Warnings[2], "Mars/Olympus")
}

func TestLoad_FileWithEnvExpansionAndOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
port: "9000"
redis_url: ${TEST_REDIS_URL}
quota:
  max_per_day: 7
  timeout: 500ms
jobs:
  artifact_ttl: 12h
upload:
  folder: media
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TEST_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("PORT", "")
	t.Setenv("MAX_DOWNLOADS_PER_DAY", "")
	t.Setenv("UPLOAD_FOLDER", "override")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisURL)
	assert.Equal(t, int64(7), cfg.Quota.MaxPerDay)
	assert.Equal(t, 500*time.Millisecond, cfg.Quota.Timeout)
	assert.Equal(t, 12*time.Hour, cfg.Jobs.ArtifactTTL)
	assert.Equal(t, "override", cfg.Upload.Folder)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestUploadConfig_Cloudinary(t *testing.T) {
	assert.False(t, UploadConfig{CloudName: "c"}.Cloudinary())
	assert.True(t, UploadConfig{CloudName: "c", APIKey: "k", APISecret: "s"}.Cloudinary())
}
