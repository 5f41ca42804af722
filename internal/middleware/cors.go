package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

// quotaHeaders are set on usage, download and throttled responses; browsers
// hide them from scripts unless exposed.
var quotaHeaders = []string{
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
	fiber.HeaderRetryAfter,
}

// allowedOrigins parses a comma-separated origin list. Blank entries are
// dropped; an empty list or "*" allows any origin.
func allowedOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return []string{"*"}
		}
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// NewCORS allows browser clients to call the JSON API and read quota headers.
func NewCORS(corsOrigins string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:  allowedOrigins(corsOrigins),
		AllowMethods:  []string{fiber.MethodGet, fiber.MethodPost},
		AllowHeaders:  []string{fiber.HeaderContentType, fiber.HeaderAccept},
		ExposeHeaders: quotaHeaders,
		MaxAge:        3600,
	})
}
