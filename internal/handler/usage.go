package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/socio-dl/socio-go/internal/middleware"
	"github.com/socio-dl/socio-go/internal/service"
)

type UsageHandler struct {
	svc *service.DownloadService
}

func NewUsageHandler(svc *service.DownloadService) *UsageHandler {
	return &UsageHandler{svc: svc}
}

// Get handles GET /api/usage. Read-only: it never spends a download.
func (h *UsageHandler) Get(c fiber.Ctx) error {
	d := h.svc.Usage(c.Context(), clientIdentity(c))
	middleware.SetQuotaHeaders(c, h.svc.MaxPerDay(), d.Remaining, d.ResetAt)

	return c.JSON(fiber.Map{
		"downloads_used":      d.Used,
		"downloads_remaining": d.Remaining,
		"max_per_day":         h.svc.MaxPerDay(),
		"reset_in_hours":      d.ResetInHours,
		"reset_time":          d.ResetAt,
	})
}
