package handler

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofiber/fiber/v3"

	"github.com/socio-dl/socio-go/internal/middleware"
)

// fileNameRe matches names produced by the local uploader: a job id plus extension.
var fileNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9]{1,8}$`)

type FilesHandler struct {
	dir string
}

func NewFilesHandler(dir string) *FilesHandler {
	return &FilesHandler{dir: dir}
}

// Serve handles GET /files/:name, serving artifacts from the local public dir.
func (h *FilesHandler) Serve(c fiber.Ctx) error {
	name := c.Params("name")
	if !fileNameRe.MatchString(name) {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "File not found")
	}

	path := filepath.Join(h.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "File not found or expired")
	}

	c.Set("Content-Disposition", "attachment; filename="+name)
	return c.SendFile(path)
}
