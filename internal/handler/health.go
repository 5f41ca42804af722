package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
)

// Pinger is a dependency readiness checks, such as the history repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	history Pinger
	rdb     *redis.Client
	version string
	startAt time.Time
}

// NewHealthHandler builds the probes. A nil history or client is reported as
// disabled and does not degrade readiness.
func NewHealthHandler(history Pinger, rdb *redis.Client, version string) *HealthHandler {
	return &HealthHandler{
		history: history,
		rdb:     rdb,
		version: version,
		startAt: time.Now(),
	}
}

// Live handles GET /health/live (liveness probe).
func (h *HealthHandler) Live(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready handles GET /health/ready (readiness probe with dependency checks).
func (h *HealthHandler) Ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{
		"database": checkDB(ctx, h.history),
		"redis":    checkRedis(ctx, h.rdb),
	}

	overallStatus := "healthy"
	for _, v := range checks {
		if check, ok := v.(fiber.Map); ok && check["status"] == "down" {
			overallStatus = "degraded"
		}
	}

	resp := fiber.Map{
		"status":         overallStatus,
		"checks":         checks,
		"uptime_seconds": int(time.Since(h.startAt).Seconds()),
		"version":        h.version,
	}

	status := fiber.StatusOK
	if overallStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(resp)
}

func checkDB(ctx context.Context, db Pinger) fiber.Map {
	if db == nil {
		return fiber.Map{"status": "disabled"}
	}
	start := time.Now()
	err := db.Ping(ctx)
	return probeResult(err, time.Since(start))
}

func checkRedis(ctx context.Context, rdb *redis.Client) fiber.Map {
	if rdb == nil {
		return fiber.Map{"status": "disabled"}
	}
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	return probeResult(err, time.Since(start))
}

func probeResult(err error, latency time.Duration) fiber.Map {
	if err != nil {
		return fiber.Map{
			"status":     "down",
			"latency_ms": latency.Milliseconds(),
			"error":      "connection failed",
		}
	}
	return fiber.Map{
		"status":     "up",
		"latency_ms": latency.Milliseconds(),
	}
}
