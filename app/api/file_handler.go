package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"legis/provider"
)

const maxImportSize = 10 << 20

// FileHandler drops uploaded act files into the loader's source directory.
type FileHandler struct {
	identity  provider.IdentityProvider
	sourceDir string
}

func NewFileHandler(identity provider.IdentityProvider, sourceDir string) *FileHandler {
	return &FileHandler{
		identity:  identity,
		sourceDir: sourceDir,
	}
}

func (h *FileHandler) HandleImport(c *fiber.Ctx) error {
	if _, err := requireAdmin(c, h.identity); err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}
	name := filepath.Base(fileHeader.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".json") || strings.HasPrefix(name, ".") {
		return NewError(fiber.StatusBadRequest, "only .json act files are accepted")
	}
	if fileHeader.Size > maxImportSize {
		return NewError(fiber.StatusRequestEntityTooLarge, "file too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportSize))
	if err != nil {
		return err
	}
	if !json.Valid(data) {
		return NewError(fiber.StatusBadRequest, "file is not valid JSON")
	}

	if err := os.MkdirAll(h.sourceDir, 0755); err != nil {
		return err
	}
	// hidden temp name so the watcher never sees a partial file
	tmp := filepath.Join(h.sourceDir, "."+uuid.NewString()+".part")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	output := filepath.Join(h.sourceDir, name)
	if err := os.Rename(tmp, output); err != nil {
		os.Remove(tmp)
		return err
	}
	slog.Info("act file queued for import", "file", output, "size", len(data))

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"file": name})
}
