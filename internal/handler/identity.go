package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/socio-dl/socio-go/pkg/hash"
)

// clientIdentity derives the quota identity of the caller.
func clientIdentity(c fiber.Ctx) string {
	return hash.ClientIdentity(c.Get(fiber.HeaderXForwardedFor), c.IP(), c.Get(fiber.HeaderUserAgent))
}
