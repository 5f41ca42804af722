package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FilesRoute is where Local artifacts are served from.
const FilesRoute = "/files/"

// Local copies artifacts into a directory served by the API itself.
type Local struct {
	dir     string
	baseURL string
	logger  zerolog.Logger
}

// NewLocal creates dir if needed. Dir reports it as an absolute path.
func NewLocal(dir, baseURL string, logger zerolog.Logger) (*Local, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}, nil
}

// Dir is the directory artifacts are published into.
func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Publish(ctx context.Context, localPath, publicID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := path.Base(publicID) + filepath.Ext(localPath)

	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, name)); err != nil {
		return "", err
	}

	l.logger.Debug().Str("file", name).Msg("local storage: published")
	return l.baseURL + FilesRoute + name, nil
}
