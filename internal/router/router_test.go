package router

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socio-dl/socio-go/internal/events"
	"github.com/socio-dl/socio-go/internal/handler"
	"github.com/socio-dl/socio-go/internal/metrics"
	"github.com/socio-dl/socio-go/internal/middleware"
	"github.com/socio-dl/socio-go/internal/repository"
	"github.com/socio-dl/socio-go/internal/service"
)

func newTestApp(t *testing.T, filesDir string) *fiber.App {
	t.Helper()
	metrics.Register(nil)

	quota := service.NewQuotaService(service.NewQuotaStoreFromURL("", time.Second, zerolog.Nop()), 5, time.UTC, zerolog.Nop())
	svc := service.NewDownloadService(service.DownloadDeps{
		Quota:      quota,
		Jobs:       service.NewJobService(nil, nil, service.JobConfig{WorkDir: t.TempDir()}, zerolog.Nop()),
		Slots:      service.NewJobSlots(1, time.Millisecond),
		History:    repository.NewMemoryJobRepo(100),
		Events:     events.Nop{},
		JobTimeout: time.Minute,
	}, zerolog.Nop())

	h := &Handlers{
		Root:        handler.Root("socio-go", "test", 5),
		Health:      handler.NewHealthHandler(nil, nil, "test"),
		VideoInfo:   handler.NewVideoInfoHandler(svc),
		Usage:       handler.NewUsageHandler(svc),
		Download:    handler.NewDownloadHandler(svc, "best"),
		History:     handler.NewHistoryHandler(svc, 20, 100),
		InfoLimiter: middleware.NewVideoInfoRateLimiter(1),
	}
	if filesDir != "" {
		h.Files = handler.NewFilesHandler(filesDir)
	}

	app := fiber.New()
	Setup(app, h, "*")
	return app
}

func TestRoutes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job1.mp4"), []byte("x"), 0o644))
	app := newTestApp(t, dir)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/", 200},
		{"GET", "/health/live", 200},
		{"GET", "/health/ready", 200},
		{"GET", "/metrics", 200},
		{"GET", "/api/usage", 200},
		{"GET", "/api/history", 200},
		{"GET", "/files/job1.mp4", 200},
		{"POST", "/api/download", 400},
		{"POST", "/api/video-info", 400},
		{"GET", "/api/unknown", 404},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestVideoInfoIsRateLimited(t *testing.T) {
	app := newTestApp(t, "")

	send := func() int {
		req := httptest.NewRequest("POST", "/api/video-info", nil)
		req.Header.Set("X-Forwarded-For", "192.0.2.10")
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, 400, send())
	assert.Equal(t, 429, send())
}

func TestFilesRouteAbsentWithoutLocalStorage(t *testing.T) {
	app := newTestApp(t, "")

	resp, err := app.Test(httptest.NewRequest("GET", "/files/job1.mp4", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t, "")

	req := httptest.NewRequest("OPTIONS", "/api/download", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 204, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}
