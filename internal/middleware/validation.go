package middleware

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Field length limits.
const (
	MaxURLLen    = 2048
	MaxFormatLen = 100
)

// formatRe matches yt-dlp format selectors such as "best[height<=720]" or
// "bestvideo+bestaudio/best".
var formatRe = regexp.MustCompile(`^[A-Za-z0-9_\-+/\[\]<>=!?*.:,() ]+$`)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return ErrorResponseWith(c, status, code, message, nil)
}

// ErrorResponseWith adds extra fields next to code and message.
func ErrorResponseWith(c fiber.Ctx, status int, code, message string, extra fiber.Map) error {
	body := fiber.Map{
		"code":    code,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	return c.Status(status).JSON(fiber.Map{"error": body})
}

// ValidateSourceURL checks that raw is an absolute http(s) URL.
func ValidateSourceURL(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "url is required"
	}
	if len(raw) > MaxURLLen {
		return "", "url must be at most 2048 characters"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "url is not a valid absolute URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "url must use http or https"
	}
	return raw, ""
}

// ValidateFormat returns def for an empty format and rejects selectors with
// characters yt-dlp does not use.
func ValidateFormat(format, def string) (string, string) {
	format = strings.TrimSpace(format)
	if format == "" {
		return def, ""
	}
	if len(format) > MaxFormatLen {
		return "", "format must be at most 100 characters"
	}
	if !formatRe.MatchString(format) {
		return "", "format contains invalid characters"
	}
	return format, ""
}

// ValidateLimit parses a page size. Empty means def; values above max are clamped.
func ValidateLimit(raw string, def, max int) (int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, ""
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, "limit must be a positive integer"
	}
	if n > max {
		n = max
	}
	return n, ""
}
