package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/socio-dl/socio-go/internal/middleware"
	"github.com/socio-dl/socio-go/internal/model"
	"github.com/socio-dl/socio-go/internal/service"
)

type HistoryHandler struct {
	svc          *service.DownloadService
	defaultLimit int
	maxLimit     int
}

func NewHistoryHandler(svc *service.DownloadService, defaultLimit, maxLimit int) *HistoryHandler {
	return &HistoryHandler{svc: svc, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// List handles GET /api/history?limit=N
func (h *HistoryHandler) List(c fiber.Ctx) error {
	limit, errMsg := middleware.ValidateLimit(fiber.Query[string](c, "limit"), h.defaultLimit, h.maxLimit)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	recs, err := h.svc.History(c.Context(), clientIdentity(c), limit)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(model.HistoryResponse{Downloads: recs, Count: len(recs)})
}
