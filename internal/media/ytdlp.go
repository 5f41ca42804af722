// Package media resolves and downloads media from supported platforms.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/socio-dl/socio-go/internal/model"
)

// DefaultFormat caps downloads at 720p.
const DefaultFormat = "best[height<=720]"

// YtDlp drives the yt-dlp binary.
type YtDlp struct {
	binaryPath string
	logger     zerolog.Logger
}

func NewYtDlp(binaryPath string, logger zerolog.Logger) *YtDlp {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	return &YtDlp{binaryPath: binaryPath, logger: logger}
}

// ResolveMetadata reads title, duration and formats without downloading.
func (y *YtDlp) ResolveMetadata(ctx context.Context, sourceURL string) (*model.VideoInfo, error) {
	out, err := y.run(ctx, "--dump-single-json", "--no-playlist", "--no-warnings", "--skip-download", "--", sourceURL)
	if err != nil {
		return nil, err
	}
	return parseInfo(out)
}

// Materialize downloads sourceURL into dir as baseName.<ext>.
func (y *YtDlp) Materialize(ctx context.Context, sourceURL, format, dir, baseName string) error {
	if format == "" {
		format = DefaultFormat
	}
	tmpl := filepath.Join(dir, baseName+".%(ext)s")
	_, err := y.run(ctx, "-f", format, "--no-playlist", "--no-warnings", "--no-progress", "-o", tmpl, "--", sourceURL)
	return err
}

func (y *YtDlp) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, y.binaryPath, args...)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("yt-dlp: %w", ctx.Err())
		}
		msg := lastLine(stderr.String())
		y.logger.Debug().Err(err).Str("stderr", msg).Msg("yt-dlp failed")
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, msg)
	}
	return out.Bytes(), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

type ytdlpInfo struct {
	Title     string        `json:"title"`
	Thumbnail string        `json:"thumbnail"`
	Duration  *float64      `json:"duration"`
	Formats   []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	FormatNote     string   `json:"format_note"`
	Ext            string   `json:"ext"`
	FileSize       *float64 `json:"filesize"`
	FileSizeApprox *float64 `json:"filesize_approx"`
}

func parseInfo(data []byte) (*model.VideoInfo, error) {
	var raw ytdlpInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	info := &model.VideoInfo{
		Title:     raw.Title,
		Thumbnail: raw.Thumbnail,
		Formats:   []model.Format{},
	}
	if info.Title == "" {
		info.Title = "Unknown"
	}
	if raw.Duration != nil {
		info.Duration = *raw.Duration
	}

	for _, f := range raw.Formats {
		if !displayFormat(f.FormatNote) {
			continue
		}
		info.Formats = append(info.Formats, model.Format{
			FormatNote: f.FormatNote,
			Ext:        f.Ext,
			FileSize:   sizeOf(f),
		})
	}
	return info, nil
}

// displayFormat keeps labelled formats that carry video.
func displayFormat(note string) bool {
	return note != "" && !strings.Contains(strings.ToLower(note), "audio")
}

func sizeOf(f ytdlpFormat) *int64 {
	v := f.FileSize
	if v == nil {
		v = f.FileSizeApprox
	}
	if v == nil || *v <= 0 {
		return nil
	}
	n := int64(*v)
	return &n
}
