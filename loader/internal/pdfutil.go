package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// keep pdfcpu from creating a config dir in $HOME
	model.ConfigPath = "disable"
}

// IsLocalPDF reports whether file names a PDF on disk rather than a URL.
func IsLocalPDF(file string) bool {
	if file == "" || strings.Contains(file, "://") {
		return false
	}
	return strings.EqualFold(filepath.Ext(file), ".pdf")
}

// ValidatePDF checks that path is a readable PDF and returns its page count.
func ValidatePDF(path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("pdf not found: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, fmt.Errorf("invalid pdf %s: %w", filepath.Base(path), err)
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	if pages == 0 {
		return 0, fmt.Errorf("pdf %s has no pages", filepath.Base(path))
	}
	return pages, nil
}
