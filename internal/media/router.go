package media

import (
	"context"

	"github.com/socio-dl/socio-go/internal/model"
	"github.com/socio-dl/socio-go/internal/platform"
)

type fetcher interface {
	ResolveMetadata(ctx context.Context, sourceURL string) (*model.VideoInfo, error)
	Materialize(ctx context.Context, sourceURL, format, dir, baseName string) error
}

// Router sends each URL to the fetcher registered for its platform, falling
// back to the default.
type Router struct {
	fallback fetcher
	byName   map[string]fetcher
}

func NewRouter(fallback fetcher) *Router {
	return &Router{fallback: fallback, byName: make(map[string]fetcher)}
}

// Handle registers f for the named platform.
func (r *Router) Handle(platformName string, f fetcher) *Router {
	r.byName[platformName] = f
	return r
}

func (r *Router) pick(sourceURL string) fetcher {
	if f, ok := r.byName[platform.Classify(sourceURL)]; ok {
		return f
	}
	return r.fallback
}

func (r *Router) ResolveMetadata(ctx context.Context, sourceURL string) (*model.VideoInfo, error) {
	return r.pick(sourceURL).ResolveMetadata(ctx, sourceURL)
}

func (r *Router) Materialize(ctx context.Context, sourceURL, format, dir, baseName string) error {
	return r.pick(sourceURL).Materialize(ctx, sourceURL, format, dir, baseName)
}
