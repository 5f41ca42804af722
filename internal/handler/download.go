package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/socio-dl/socio-go/internal/middleware"
	"github.com/socio-dl/socio-go/internal/model"
	"github.com/socio-dl/socio-go/internal/service"
)

type DownloadHandler struct {
	svc           *service.DownloadService
	defaultFormat string
}

func NewDownloadHandler(svc *service.DownloadService, defaultFormat string) *DownloadHandler {
	return &DownloadHandler{svc: svc, defaultFormat: defaultFormat}
}

// Create handles POST /api/download
func (h *DownloadHandler) Create(c fiber.Ctx) error {
	var req model.DownloadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	sourceURL, errMsg := middleware.ValidateSourceURL(req.URL)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	format, errMsg := middleware.ValidateFormat(req.Format, h.defaultFormat)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	out, err := h.svc.Download(c.Context(), clientIdentity(c), sourceURL, format)
	if err != nil {
		return writeServiceError(c, err)
	}

	d := out.Decision
	middleware.SetQuotaHeaders(c, h.svc.MaxPerDay(), d.Remaining, d.ResetAt)

	resp := model.DownloadResponse{
		JobResult: out.Result,
		Usage: model.UsageSummary{
			Used:      d.Used,
			Remaining: d.Remaining,
		},
	}
	if !out.HistorySaved {
		resp.Warning = &model.Warning{
			Code:    "PERSISTENCE_FAILED",
			Message: "Download succeeded but could not be saved to history",
		}
	}
	return c.JSON(resp)
}
