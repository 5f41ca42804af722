package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/socio-dl/socio-go/internal/middleware"
	"github.com/socio-dl/socio-go/internal/model"
	"github.com/socio-dl/socio-go/internal/service"
)

type VideoInfoHandler struct {
	svc *service.DownloadService
}

func NewVideoInfoHandler(svc *service.DownloadService) *VideoInfoHandler {
	return &VideoInfoHandler{svc: svc}
}

// Lookup handles POST /api/video-info. It never consumes quota.
func (h *VideoInfoHandler) Lookup(c fiber.Ctx) error {
	var req model.VideoInfoRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	sourceURL, errMsg := middleware.ValidateSourceURL(req.URL)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	info, err := h.svc.VideoInfo(c.Context(), sourceURL)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(info)
}
