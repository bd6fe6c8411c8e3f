package evidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

const mb = 1024 * 1024

var (
	pdfBytes  = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

func TestValidateNewFiles_Accepts(t *testing.T) {
	t.Parallel()
	files := []File{
		NewFile("offer-letter.pdf", 2*mb, "application/pdf"),
		NewFile("payslip.PNG", 1*mb, "image/png"),
		NewFile("badge.jpeg", 512, "image/jpeg"),
		NewFile("office.webp", 10, "image/webp"),
	}
	require.NoError(t, ValidateNewFiles(files, nil))
}

func TestValidateNewFiles_PerFile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		file   File
		reason string
	}{
		{"disallowed mime", NewFile("notes.txt", 10, "text/plain"), "file type not allowed"},
		{"disallowed extension", NewFile("scan.gif", 10, "image/png"), "file type not allowed"},
		{"executable", NewFile("setup.exe", 10, "application/octet-stream"), "file type not allowed"},
		{"path separator", NewFile("a/b.pdf", 10, "application/pdf"), "path characters"},
		{"traversal", NewFile("..evil.pdf", 10, "application/pdf"), "path characters"},
		{"control char", NewFile("a\x01b.pdf", 10, "application/pdf"), "control characters"},
		{"too long", NewFile(strings.Repeat("a", 252)+".pdf", 10, "application/pdf"), "longer than 255"},
		{"denylisted fragment", NewFile("invoice.exe.pdf", 10, "application/pdf"), "executable or script"},
		{"script fragment", NewFile("payload.js.png", 10, "image/png"), "executable or script"},
		{"empty file", NewFile("blank.pdf", 0, "application/pdf"), "file is empty"},
		{"oversized", NewFile("big.pdf", 6*mb, "application/pdf"), "at most 5 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateNewFiles([]File{tt.file}, nil)
			require.ErrorIs(t, err, reviewerr.ErrFileValidation)
			assert.Contains(t, err.Error(), tt.reason)
			assert.Equal(t, tt.file.Name, reviewerr.Detail(err, "file"))
		})
	}
}

func TestValidateNewFiles_CountLimit(t *testing.T) {
	t.Parallel()
	files := make([]File, 6)
	for i := range files {
		files[i] = NewFile("doc.pdf", 1*mb, "application/pdf")
	}

	err := ValidateNewFiles(files, nil)
	require.ErrorIs(t, err, reviewerr.ErrFileValidation)
	assert.Contains(t, err.Error(), "too many files")
	assert.Equal(t, "count", reviewerr.Detail(err, "limit"))
}

func TestValidateNewFiles_CountIncludesExisting(t *testing.T) {
	t.Parallel()
	existing := []File{
		NewFile("a.pdf", 10, "application/pdf"),
		NewFile("b.pdf", 10, "application/pdf"),
		NewFile("c.pdf", 10, "application/pdf"),
		NewFile("d.pdf", 10, "application/pdf"),
	}
	require.NoError(t, ValidateNewFiles([]File{NewFile("e.pdf", 10, "application/pdf")}, existing))

	err := ValidateNewFiles([]File{
		NewFile("e.pdf", 10, "application/pdf"),
		NewFile("f.pdf", 10, "application/pdf"),
	}, existing)
	require.ErrorIs(t, err, reviewerr.ErrFileValidation)
}

func TestValidateNewFiles_TotalSize(t *testing.T) {
	t.Parallel()
	existing := []File{
		NewFile("a.pdf", 5*mb, "application/pdf"),
		NewFile("b.pdf", 5*mb, "application/pdf"),
		NewFile("c.pdf", 5*mb, "application/pdf"),
		NewFile("d.pdf", 5*mb, "application/pdf"),
	}
	require.NoError(t, ValidateNewFiles([]File{NewFile("e.pdf", 5*mb, "application/pdf")}, existing),
		"exactly 25 MB is allowed")

	// Already-attached files are not re-validated, so only the aggregate catches this.
	err := ValidateNewFiles(
		[]File{NewFile("e.pdf", 2*mb, "application/pdf")},
		[]File{NewFile("archive.pdf", 24*mb, "application/pdf")},
	)
	require.ErrorIs(t, err, reviewerr.ErrFileValidation)
	assert.Equal(t, "total_size", reviewerr.Detail(err, "limit"))
}

func TestValidateNewFiles_Empty(t *testing.T) {
	t.Parallel()
	require.NoError(t, ValidateNewFiles(nil, nil))
}

func TestValidateContent(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateContent(NewUpload("offer.pdf", "application/pdf", pdfBytes)))
	require.NoError(t, ValidateContent(NewUpload("shot.png", "image/png", pngBytes)))
	require.NoError(t, ValidateContent(NewUpload("photo.jpg", "image/jpeg", jpegBytes)))

	err := ValidateContent(NewUpload("renamed.pdf", "application/pdf", pngBytes))
	require.ErrorIs(t, err, reviewerr.ErrFileValidation)
	assert.Contains(t, err.Error(), "claims application/pdf")

	err = ValidateContent(NewUpload("script.pdf", "application/pdf", []byte("#!/bin/sh\nrm -rf /\n")))
	require.ErrorIs(t, err, reviewerr.ErrFileValidation)

	u := NewUpload("offer.pdf", "application/pdf", pdfBytes)
	u.Size++
	require.ErrorIs(t, ValidateContent(u), reviewerr.ErrFileValidation)
}

func TestNewFileDerivesExtension(t *testing.T) {
	t.Parallel()
	f := NewFile("Offer.Letter.PDF", 3, " Application/PDF ")
	assert.Equal(t, ".pdf", f.Extension)
	assert.Equal(t, "application/pdf", f.MIMEType)
}
