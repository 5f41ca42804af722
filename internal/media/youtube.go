package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"github.com/socio-dl/socio-go/internal/model"
)

// YouTube fetches YouTube media natively, without the yt-dlp binary. It only
// downloads progressive formats (audio and video in one stream).
type YouTube struct {
	client *youtube.Client
	logger zerolog.Logger
}

func NewYouTube(logger zerolog.Logger) *YouTube {
	return &YouTube{client: &youtube.Client{}, logger: logger}
}

func (y *YouTube) ResolveMetadata(ctx context.Context, sourceURL string) (*model.VideoInfo, error) {
	video, err := y.client.GetVideoContext(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("youtube: %w", err)
	}

	info := &model.VideoInfo{
		Title:    video.Title,
		Duration: video.Duration.Seconds(),
		Formats:  []model.Format{},
	}
	if n := len(video.Thumbnails); n > 0 {
		info.Thumbnail = video.Thumbnails[n-1].URL
	}

	for _, f := range video.Formats {
		if !strings.HasPrefix(f.MimeType, "video/") || f.QualityLabel == "" {
			continue
		}
		var size *int64
		if f.ContentLength > 0 {
			n := f.ContentLength
			size = &n
		}
		info.Formats = append(info.Formats, model.Format{
			FormatNote: f.QualityLabel,
			Ext:        extFromMime(f.MimeType),
			FileSize:   size,
		})
	}
	return info, nil
}

func (y *YouTube) Materialize(ctx context.Context, sourceURL, format, dir, baseName string) error {
	video, err := y.client.GetVideoContext(ctx, sourceURL)
	if err != nil {
		return fmt.Errorf("youtube: %w", err)
	}

	f := pickProgressive(video.Formats, heightCap(format))
	if f == nil {
		return fmt.Errorf("youtube: no progressive format for %q", format)
	}

	stream, _, err := y.client.GetStreamContext(ctx, video, f)
	if err != nil {
		return fmt.Errorf("youtube: open stream: %w", err)
	}
	defer stream.Close()

	path := filepath.Join(dir, baseName+"."+extFromMime(f.MimeType))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	n, err := io.Copy(file, stream)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("youtube: write stream: %w", err)
	}

	y.logger.Debug().Str("itag", strconv.Itoa(f.ItagNo)).Int64("bytes", n).Msg("youtube: stream saved")
	return nil
}

var heightRe = regexp.MustCompile(`height\s*<=?\s*(\d+)`)

// heightCap extracts N from a "best[height<=N]" style selector, 0 when absent.
func heightCap(format string) int {
	m := heightRe.FindStringSubmatch(format)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// pickProgressive returns the tallest format carrying both audio and video
// whose height does not exceed maxHeight (0 means no cap).
func pickProgressive(formats youtube.FormatList, maxHeight int) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || !strings.HasPrefix(f.MimeType, "video/") {
			continue
		}
		if maxHeight > 0 && f.Height > maxHeight {
			continue
		}
		if best == nil || f.Height > best.Height {
			best = f
		}
	}
	return best
}

func extFromMime(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "mp4"
	}
	switch mt {
	case "video/webm", "audio/webm":
		return "webm"
	case "video/3gpp":
		return "3gp"
	case "audio/mp4":
		return "m4a"
	default:
		return "mp4"
	}
}
