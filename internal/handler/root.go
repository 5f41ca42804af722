package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/socio-dl/socio-go/internal/platform"
)

// Root handles GET /
func Root(name, version string, maxPerDay int64) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":                  name,
			"version":               version,
			"status":                "running",
			"platforms":             platform.Names(),
			"max_downloads_per_day": maxPerDay,
		})
	}
}
