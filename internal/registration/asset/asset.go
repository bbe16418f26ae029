// Package asset validates, stores and hands out time-limited links to
// registration photos. Retrieval always goes through a signed URL.
package asset

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"slices"

	dErrors "eventpass/pkg/domain-errors"
)

// MaxSize is the largest accepted upload, 1 MiB.
const MaxSize int64 = 1 << 20

// AllowedTypes are the content types a photo upload may have.
var AllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "application/pdf"}

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

// Ref is a stable reference to a stored object, scoped to its owner.
type Ref string

func (r Ref) String() string { return string(r) }

// File is an upload candidate. Size is the declared size; stores enforce
// it again while copying Body.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Validate rejects oversized or unsupported files. It touches no I/O.
func Validate(f File) error {
	if f.Size <= 0 {
		return dErrors.New(dErrors.CodeValidation, "file is empty")
	}
	if f.Size > MaxSize {
		return dErrors.New(dErrors.CodeValidation, "file size exceeds 1MB, please choose a smaller file")
	}
	if !slices.Contains(AllowedTypes, f.ContentType) {
		return dErrors.New(dErrors.CodeValidation, "invalid file type, please upload a JPG, PNG, GIF, or PDF")
	}
	return nil
}

// Sniff detects the content type from the first 512 bytes and returns a
// File whose Body still yields the full content. A recognised sniffed type
// wins over the declared one; unrecognised content keeps the declared type.
func Sniff(f File) (File, error) {
	if f.Body == nil {
		return f, nil
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return f, fmt.Errorf("read file header: %w", err)
	}
	head = head[:n]

	detected := http.DetectContentType(head)
	if detected != "application/octet-stream" || f.ContentType == "" {
		f.ContentType = detected
	}
	f.Body = io.MultiReader(bytes.NewReader(head), f.Body)
	return f, nil
}

// Extension returns the file extension stored objects get for a content type.
func Extension(contentType string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	return ""
}

// ContentTypeOf maps a stored object's extension back to its content type.
func ContentTypeOf(ext string) string {
	for ct, e := range extensions {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}
