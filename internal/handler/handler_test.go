package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/socio-dl/socio-go/internal/events"
	"github.com/socio-dl/socio-go/internal/model"
	"github.com/socio-dl/socio-go/internal/repository"
	"github.com/socio-dl/socio-go/internal/service"
	"github.com/socio-dl/socio-go/internal/service/mocks"
)

const ytURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type apiFixture struct {
	app      *fiber.App
	fetcher  *mocks.MockFetcher
	uploader *mocks.MockUploader
	mr       *miniredis.Miniredis
}

type failingHistory struct{}

func (failingHistory) Append(context.Context, *model.JobRecord) error {
	return errors.New("db down")
}

func (failingHistory) ListByIdentity(context.Context, string, int) ([]model.JobRecord, error) {
	return nil, errors.New("db down")
}

func newAPIFixture(t *testing.T, max int64, history service.HistoryStore) *apiFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &apiFixture{
		fetcher:  mocks.NewMockFetcher(ctrl),
		uploader: mocks.NewMockUploader(ctrl),
		mr:       mr,
	}
	if history == nil {
		history = repository.NewMemoryJobRepo(100)
	}

	quota := service.NewQuotaService(service.NewRedisQuotaStore(rdb, time.Second), max, time.UTC, zerolog.Nop())
	jobs := service.NewJobService(f.fetcher, f.uploader, service.JobConfig{WorkDir: t.TempDir(), Folder: "downloads"}, zerolog.Nop())
	svc := service.NewDownloadService(service.DownloadDeps{
		Quota:      quota,
		Jobs:       jobs,
		Slots:      service.NewJobSlots(2, 50*time.Millisecond),
		History:    history,
		Fetcher:    f.fetcher,
		Events:     events.Nop{},
		JobTimeout: time.Minute,
	}, zerolog.Nop())

	app := fiber.New()
	app.Post("/api/video-info", NewVideoInfoHandler(svc).Lookup)
	app.Get("/api/usage", NewUsageHandler(svc).Get)
	app.Post("/api/download", NewDownloadHandler(svc, "best[height<=720]").Create)
	app.Get("/api/history", NewHistoryHandler(svc, 20, 100).List)
	f.app = app
	return f
}

func (f *apiFixture) expectJob() {
	f.fetcher.EXPECT().ResolveMetadata(gomock.Any(), ytURL).Return(&model.VideoInfo{Title: "Clip", Duration: 10}, nil)
	f.fetcher.EXPECT().Materialize(gomock.Any(), ytURL, "best[height<=720]", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, dir, base string) error {
			return os.WriteFile(filepath.Join(dir, base+".mp4"), []byte("bytes"), 0o600)
		})
	f.uploader.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, publicID string) (string, error) {
			return "https://cdn.example/" + publicID + ".mp4", nil
		})
}

func call(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("User-Agent", "test-agent")

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func errorOf(body map[string]any) map[string]any {
	e, _ := body["error"].(map[string]any)
	return e
}

func TestUsage_Fresh(t *testing.T) {
	f := newAPIFixture(t, 5, nil)

	resp, body := call(t, f.app, "GET", "/api/usage", nil)
	assert.Equal(t, 200, resp.StatusCode)
	assert.EqualValues(t, 0, body["downloads_used"])
	assert.EqualValues(t, 5, body["downloads_remaining"])
	assert.Contains(t, body, "reset_in_hours")
	assert.Contains(t, body, "reset_time")
	assert.Equal(t, "5", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "5", resp.Header.Get("X-RateLimit-Remaining"))
}

func TestDownload_SuccessThenHistory(t *testing.T) {
	f := newAPIFixture(t, 5, nil)
	f.expectJob()

	resp, body := call(t, f.app, "POST", "/api/download", map[string]string{"url": ytURL})
	require.Equal(t, 200, resp.StatusCode, body)

	assert.NotEmpty(t, body["download_id"])
	assert.Equal(t, "Clip", body["title"])
	assert.EqualValues(t, 5, body["file_size"])
	assert.Contains(t, body["download_url"], "https://cdn.example/downloads/")
	assert.NotEmpty(t, body["expires_at"])
	assert.NotContains(t, body, "warning")

	usage := body["usage"].(map[string]any)
	assert.EqualValues(t, 1, usage["downloads_used"])
	assert.EqualValues(t, 4, usage["downloads_remaining"])
	assert.Equal(t, "4", resp.Header.Get("X-RateLimit-Remaining"))

	resp, body = call(t, f.app, "GET", "/api/history", nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])
	downloads := body["downloads"].([]any)
	first := downloads[0].(map[string]any)
	assert.Equal(t, "completed", first["status"])
	assert.Equal(t, "youtube", first["platform"])
	assert.NotContains(t, first, "identity")
}

func TestDownload_QuotaExceeded(t *testing.T) {
	f := newAPIFixture(t, 1, nil)
	f.expectJob()

	resp, _ := call(t, f.app, "POST", "/api/download", map[string]string{"url": ytURL})
	require.Equal(t, 200, resp.StatusCode)

	resp, body := call(t, f.app, "POST", "/api/download", map[string]string{"url": ytURL})
	require.Equal(t, 429, resp.StatusCode)

	e := errorOf(body)
	assert.Equal(t, "QUOTA_EXCEEDED", e["code"])
	assert.EqualValues(t, 1, e["downloads_used"])
	assert.EqualValues(t, 0, e["downloads_remaining"])
	assert.Contains(t, e, "reset_in_hours")
	assert.Contains(t, e, "reset_time")
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
}

func TestDownload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{"malformed json", "{not json", "INVALID_BODY"},
		{"missing url", map[string]string{}, "INVALID_FIELD"},
		{"relative url", map[string]string{"url": "/watch"}, "INVALID_FIELD"},
		{"bad format", map[string]string{"url": ytURL, "format": "best;id"}, "INVALID_FIELD"},
		{"unsupported platform", map[string]string{"url": "https://vimeo.com/123"}, "UNSUPPORTED_PLATFORM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t, 5, nil)

			resp, body := call(t, f.app, "POST", "/api/download", tt.body)
			assert.Equal(t, 400, resp.StatusCode)
			assert.Equal(t, tt.wantCode, errorOf(body)["code"])

			_, usage := call(t, f.app, "GET", "/api/usage", nil)
			assert.EqualValues(t, 0, usage["downloads_used"], "rejected request must not spend quota")
		})
	}
}

func TestDownload_JobFailure(t *testing.T) {
	f := newAPIFixture(t, 5, nil)
	f.fetcher.EXPECT().ResolveMetadata(gomock.Any(), gomock.Any()).Return(&model.VideoInfo{}, nil)
	f.fetcher.EXPECT().Materialize(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("HTTP Error 403"))

	resp, body := call(t, f.app, "POST", "/api/download", map[string]string{"url": ytURL})
	require.Equal(t, 500, resp.StatusCode)
	e := errorOf(body)
	assert.Equal(t, "DOWNLOAD_FAILED", e["code"])
	assert.NotEmpty(t, e["download_id"])

	_, hist := call(t, f.app, "GET", "/api/history", nil)
	downloads := hist["downloads"].([]any)
	require.Len(t, downloads, 1)
	rec := downloads[0].(map[string]any)
	assert.Equal(t, "failed", rec["status"])
	assert.Equal(t, "DOWNLOAD_FAILED", rec["error_code"])
	assert.NotContains(t, rec, "download_url")
}

func TestDownload_PersistenceWarning(t *testing.T) {
	f := newAPIFixture(t, 5, failingHistory{})
	f.expectJob()

	resp, body := call(t, f.app, "POST", "/api/download", map[string]string{"url": ytURL})
	require.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, body["download_url"])

	warning := body["warning"].(map[string]any)
	assert.Equal(t, "PERSISTENCE_FAILED", warning["code"])

	resp, body = call(t, f.app, "GET", "/api/history", nil)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, "PERSISTENCE_FAILED", errorOf(body)["code"])
}

func TestDownload_QuotaBackendDownFailsOpen(t *testing.T) {
	f := newAPIFixture(t, 5, nil)
	f.mr.Close()
	f.expectJob()

	resp, body := call(t, f.app, "POST", "/api/download", map[string]string{"url": ytURL})
	require.Equal(t, 200, resp.StatusCode)
	usage := body["usage"].(map[string]any)
	assert.EqualValues(t, 5, usage["downloads_remaining"])
}

func TestVideoInfo(t *testing.T) {
	f := newAPIFixture(t, 5, nil)
	formats := make([]model.Format, 7)
	for i := range formats {
		formats[i] = model.Format{FormatNote: "720p", Ext: "mp4"}
	}
	f.fetcher.EXPECT().ResolveMetadata(gomock.Any(), ytURL).Return(&model.VideoInfo{Title: "Clip", Formats: formats}, nil)

	resp, body := call(t, f.app, "POST", "/api/video-info", map[string]string{"url": ytURL})
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "youtube", body["platform"])
	assert.Equal(t, ytURL, body["original_url"])
	assert.Len(t, body["formats"], 5)

	f.fetcher.EXPECT().ResolveMetadata(gomock.Any(), ytURL).Return(nil, errors.New("private video"))
	resp, body = call(t, f.app, "POST", "/api/video-info", map[string]string{"url": ytURL})
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "EXTRACTION_FAILED", errorOf(body)["code"])

	_, usage := call(t, f.app, "GET", "/api/usage", nil)
	assert.EqualValues(t, 0, usage["downloads_used"])
}

func TestHistory_Limit(t *testing.T) {
	f := newAPIFixture(t, 5, nil)

	resp, body := call(t, f.app, "GET", "/api/history?limit=abc", nil)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "INVALID_FIELD", errorOf(body)["code"])

	resp, body = call(t, f.app, "GET", "/api/history?limit=500", nil)
	assert.Equal(t, 200, resp.StatusCode)
	assert.EqualValues(t, 0, body["count"])
	assert.NotNil(t, body["downloads"])
}

func TestFilesHandler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job1.mp4"), []byte("video"), 0o644))

	app := fiber.New()
	app.Get("/files/:name", NewFilesHandler(dir).Serve)

	resp, err := app.Test(httptest.NewRequest("GET", "/files/job1.mp4", nil))
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "video", string(data))

	for _, p := range []string{"/files/missing.mp4", "/files/..%2Fsecret.mp4", "/files/noext"} {
		resp, err := app.Test(httptest.NewRequest("GET", p, nil))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, 404, resp.StatusCode, p)
	}
}

func TestHealthReady(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()

	app := fiber.New()
	h := NewHealthHandler(nil, rdb, "test")
	app.Get("/health/live", h.Live)
	app.Get("/health/ready", h.Ready)

	resp, body := call(t, app, "GET", "/health/live", nil)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, body = call(t, app, "GET", "/health/ready", nil)
	assert.Equal(t, 200, resp.StatusCode)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "disabled", checks["database"].(map[string]any)["status"])
	assert.Equal(t, "up", checks["redis"].(map[string]any)["status"])

	mr.Close()
	resp, body = call(t, app, "GET", "/health/ready", nil)
	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthReady_Database(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantCheck  string
	}{
		{"up", stubPinger{}, 200, "up"},
		{"down", stubPinger{err: errors.New("refused")}, 503, "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/health/ready", NewHealthHandler(tt.db, nil, "test").Ready)

			resp, body := call(t, app, "GET", "/health/ready", nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			checks := body["checks"].(map[string]any)
			assert.Equal(t, tt.wantCheck, checks["database"].(map[string]any)["status"])
			assert.Equal(t, "disabled", checks["redis"].(map[string]any)["status"])
		})
	}
}

func TestRoot(t *testing.T) {
	app := fiber.New()
	app.Get("/", Root("socio-go", "1.0.0", 5))

	resp, body := call(t, app, "GET", "/", nil)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "running", body["status"])
	assert.EqualValues(t, 5, body["max_downloads_per_day"])
	assert.Len(t, body["platforms"], 5)
}

func TestSanitizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"/files/abc.mp4": "/files/:name",
		"/api/download":  "/api/download",
		"/health/ready":  "/health/ready",
		"/":              "/",
		"/wp-admin.php":  "other",
	}
	for in, want := range tests {
		if got := sanitizeEndpoint(in); got != want {
			t.Errorf("sanitizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}
