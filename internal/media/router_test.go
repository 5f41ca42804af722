package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/socio-dl/socio-go/internal/model"
)

type namedFetcher string

func (n namedFetcher) ResolveMetadata(context.Context, string) (*model.VideoInfo, error) {
	return &model.VideoInfo{Title: string(n)}, nil
}

func (n namedFetcher) Materialize(context.Context, string, string, string, string) error {
	return nil
}

func TestRouter(t *testing.T) {
	r := NewRouter(namedFetcher("ytdlp")).Handle("youtube", namedFetcher("native"))
	ctx := context.Background()

	info, _ := r.ResolveMetadata(ctx, "https://www.youtube.com/watch?v=abc")
	assert.Equal(t, "native", info.Title)

	info, _ = r.ResolveMetadata(ctx, "https://www.instagram.com/reel/xyz")
	assert.Equal(t, "ytdlp", info.Title)

	assert.NoError(t, r.Materialize(ctx, "https://youtu.be/abc", "best", "/tmp", "j"))
}
