package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/socio-dl/socio-go/internal/middleware"
	"github.com/socio-dl/socio-go/internal/platform"
	"github.com/socio-dl/socio-go/internal/service"
)

// writeServiceError maps service errors onto the API error envelope.
func writeServiceError(c fiber.Ctx, err error) error {
	var quotaErr *service.QuotaExceededError
	var jobErr *service.JobError

	switch {
	case errors.Is(err, service.ErrUnsupportedPlatform):
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "UNSUPPORTED_PLATFORM",
			"Unsupported platform. Supported: "+strings.Join(platform.Names(), ", "))

	case errors.As(err, &quotaErr):
		d := quotaErr.Decision
		middleware.SetQuotaHeaders(c, quotaErr.Max, d.Remaining, d.ResetAt)
		return middleware.ErrorResponseWith(c, fiber.StatusTooManyRequests, "QUOTA_EXCEEDED", quotaErr.Error(), fiber.Map{
			"downloads_used":      d.Used,
			"downloads_remaining": d.Remaining,
			"reset_in_hours":      d.ResetInHours,
			"reset_time":          d.ResetAt,
		})

	case errors.Is(err, service.ErrServerBusy):
		c.Set(fiber.HeaderRetryAfter, "30")
		return middleware.ErrorResponse(c, fiber.StatusServiceUnavailable, "SERVER_BUSY",
			"All download slots are busy. Please retry shortly.")

	case errors.As(err, &jobErr):
		return middleware.ErrorResponseWith(c, fiber.StatusInternalServerError, jobErr.Code(),
			"Download failed: "+jobErr.Message, fiber.Map{"download_id": jobErr.JobID})

	case errors.Is(err, service.ErrExtractionFailed):
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "EXTRACTION_FAILED",
			"Could not read media information for this URL")

	case errors.Is(err, service.ErrPersistenceFailed):
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "PERSISTENCE_FAILED",
			"Failed to read download history")

	default:
		middleware.Logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled service error")
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
