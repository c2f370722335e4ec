package document

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a supported document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOC  Format = "doc"
	FormatDOCX Format = "docx"
)

// DetectFormat resolves the format from the file extension of name.
func DetectFormat(name string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(name)), "."))
	switch Format(ext) {
	case FormatPDF, FormatDOC, FormatDOCX:
		return Format(ext), nil
	case "":
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, name)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
