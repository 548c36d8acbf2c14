package parser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/tenkview/internal/layout"
)

// Parser converts raw filing bytes into a positioned layout.
type Parser interface {
	Parse(ctx context.Context, data []byte) (*layout.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".html": true,
	".htm":  true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, log *slog.Logger) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{Log: log}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Parse picks a parser by extension and runs it.
func Parse(ctx context.Context, filename string, data []byte, log *slog.Logger) (*layout.Document, error) {
	p, err := ForFile(filename, log)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, data)
}
