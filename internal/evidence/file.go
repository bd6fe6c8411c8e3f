// Package evidence validates and stores the supporting documents attached
// to a review (offer letters, payslips, screenshots).
package evidence

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Limits applied to evidence selections.
const (
	MaxFileSize       = 5 * 1024 * 1024
	MaxTotalSize      = 25 * 1024 * 1024
	MaxFiles          = 5
	MaxFilenameLength = 255
)

// File describes a selected evidence file without its content.
type File struct {
	Name      string
	Size      int64
	MIMEType  string
	Extension string
}

// NewFile builds a File, deriving the lowercased extension from name.
func NewFile(name string, size int64, mimeType string) File {
	return File{
		Name:      name,
		Size:      size,
		MIMEType:  strings.ToLower(strings.TrimSpace(mimeType)),
		Extension: strings.ToLower(filepath.Ext(name)),
	}
}

// Upload is a File together with the bytes to store.
type Upload struct {
	File
	Content []byte
}

// NewUpload wraps in-memory content. Size is taken from the content.
func NewUpload(name, mimeType string, content []byte) Upload {
	return Upload{
		File:    NewFile(name, int64(len(content)), mimeType),
		Content: content,
	}
}

// ReadUpload loads an evidence file from disk. The declared MIME type
// comes from the extension, as a browser would report it. Files larger
// than MaxFileSize are described but not read.
func ReadUpload(path string) (Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Upload{}, fmt.Errorf("reading evidence file: %w", err)
	}
	if info.IsDir() {
		return Upload{}, fmt.Errorf("evidence path %s is a directory", path)
	}

	name := filepath.Base(path)
	declared := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = declared[:i]
	}

	if info.Size() > MaxFileSize {
		return Upload{File: NewFile(name, info.Size(), declared)}, nil
	}

	content, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the user
	if err != nil {
		return Upload{}, fmt.Errorf("reading evidence file: %w", err)
	}

	return NewUpload(name, declared, content), nil
}

// Files returns the descriptions of a set of uploads.
func Files(uploads []Upload) []File {
	out := make([]File, len(uploads))
	for i, u := range uploads {
		out[i] = u.File
	}
	return out
}
