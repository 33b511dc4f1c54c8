package blobstore

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxLabReportSize is the default upload limit. Files of exactly this size
// are rejected.
const MaxLabReportSize = 10 * 1024 * 1024

// AllowedContentTypes maps accepted lab report MIME types to their object
// key extension.
var AllowedContentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

var contentTypeAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
}

// SniffLen is how many leading bytes ValidateFile needs to detect the type.
const SniffLen = 3072

// FileHeader is what the client told us about an upload.
type FileHeader struct {
	Name         string
	DeclaredType string
	Size         int64
}

// NormalizeContentType lowercases t, strips parameters and resolves aliases
// such as image/jpg.
func NormalizeContentType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.Index(t, ";"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if canonical, ok := contentTypeAliases[t]; ok {
		return canonical
	}
	return t
}

// ValidateFile checks an upload before anything is stored. head holds the
// first bytes of the file; the sniffed type must agree with the declared one.
// It returns the canonical content type.
func ValidateFile(f FileHeader, head []byte, maxBytes int64) (string, error) {
	if strings.TrimSpace(f.Name) == "" {
		return "", ErrMissingFileName
	}
	if f.Size <= 0 {
		return "", ErrEmptyFile
	}
	if maxBytes <= 0 {
		maxBytes = MaxLabReportSize
	}
	if f.Size >= maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit is %d", ErrFileTooLarge, f.Size, maxBytes)
	}

	declared := NormalizeContentType(f.DeclaredType)
	if _, ok := AllowedContentTypes[declared]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidContentType, f.DeclaredType)
	}

	detected := mimetype.Detect(head)
	if !detected.Is(declared) {
		return "", fmt.Errorf("%w: declared %s but content is %s", ErrInvalidContentType, declared, detected.String())
	}
	return declared, nil
}

// Extension returns the object key extension for a validated content type.
func Extension(contentType string) string {
	return AllowedContentTypes[NormalizeContentType(contentType)]
}
