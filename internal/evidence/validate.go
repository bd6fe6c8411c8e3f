package evidence

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// allowedTypes maps each accepted MIME type to the extensions it may carry.
var allowedTypes = map[string][]string{ //nolint:gochecknoglobals // static allow-list
	"application/pdf": {".pdf"},
	"image/png":       {".png"},
	"image/jpeg":      {".jpg", ".jpeg"},
	"image/webp":      {".webp"},
}

// deniedFragments are rejected anywhere in a file name, case-insensitively.
var deniedFragments = []string{ //nolint:gochecknoglobals // static deny-list
	".exe", ".bat", ".cmd", ".com.", ".scr", ".msi", ".vbs", ".js", ".jar",
	".sh", ".php", ".ps1", ".dll", ".apk",
}

const pathCharacters = `/\:*?"<>|`

// AllowedTypesLabel is a human summary of accepted evidence types.
const AllowedTypesLabel = "PDF, PNG, JPEG or WEBP"

func allowedMIME(mimeType string) bool {
	_, ok := allowedTypes[mimeType]
	return ok
}

func allowedExtension(ext string) bool {
	for _, exts := range allowedTypes {
		for _, e := range exts {
			if e == ext {
				return true
			}
		}
	}
	return false
}

// ValidateNewFiles checks a batch of newly selected files against the
// files already attached. It stops at the first violation; the returned
// error names the offending file. A nil error means the batch is valid.
//
// Per-file checks run before the aggregate count and size checks.
func ValidateNewFiles(newFiles, existing []File) error {
	for _, f := range newFiles {
		if err := validateFile(f); err != nil {
			return err
		}
	}

	count := len(existing) + len(newFiles)
	if count > MaxFiles {
		return fileLimitError(
			fmt.Sprintf("too many files: %d selected, at most %d allowed", count, MaxFiles),
			"count", strconv.Itoa(MaxFiles),
		)
	}

	var total int64
	for _, f := range existing {
		total += f.Size
	}
	for _, f := range newFiles {
		total += f.Size
	}
	if total > MaxTotalSize {
		return fileLimitError(
			fmt.Sprintf("files total %s, at most %s allowed", HumanSize(total), HumanSize(MaxTotalSize)),
			"total_size", strconv.Itoa(MaxTotalSize),
		)
	}

	return nil
}

func validateFile(f File) error {
	ext := strings.ToLower(f.Extension)
	if ext == "" {
		ext = NewFile(f.Name, f.Size, f.MIMEType).Extension
	}
	if !allowedMIME(f.MIMEType) || !allowedExtension(ext) {
		return fileError(f.Name, "file type not allowed, use "+AllowedTypesLabel)
	}

	if strings.ContainsAny(f.Name, pathCharacters) || strings.Contains(f.Name, "..") {
		return fileError(f.Name, "file name contains path characters")
	}
	for _, r := range f.Name {
		if unicode.IsControl(r) {
			return fileError(f.Name, "file name contains control characters")
		}
	}

	if utf8.RuneCountInString(f.Name) > MaxFilenameLength {
		return fileError(f.Name, fmt.Sprintf("file name longer than %d characters", MaxFilenameLength))
	}

	lower := strings.ToLower(f.Name)
	for _, frag := range deniedFragments {
		if strings.Contains(lower, frag) {
			return fileError(f.Name, "file name looks like an executable or script")
		}
	}

	if f.Size <= 0 {
		return fileError(f.Name, "file is empty")
	}
	if f.Size > MaxFileSize {
		return fileError(f.Name, fmt.Sprintf("file is %s, at most %s allowed", HumanSize(f.Size), HumanSize(MaxFileSize)))
	}

	return nil
}

// ValidateContent sniffs the bytes of an upload and rejects content that
// is not an accepted type or does not match the declared type.
func ValidateContent(u Upload) error {
	if int64(len(u.Content)) != u.Size {
		return fileError(u.Name, "file content does not match its reported size")
	}

	detected := mimetype.Detect(u.Content)
	sniffed := detected.String()
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}

	if !allowedMIME(sniffed) {
		return fileError(u.Name, fmt.Sprintf("content is %s, use %s", sniffed, AllowedTypesLabel))
	}
	if sniffed != u.MIMEType {
		return fileError(u.Name, fmt.Sprintf("content is %s but the file claims %s", sniffed, u.MIMEType))
	}

	return nil
}

func fileError(name, reason string) error {
	return reviewerr.WithDetails(
		reviewerr.Newf(reviewerr.ErrFileValidation, "%s: %s", name, reason),
		map[string]string{"file": name},
	)
}

func fileLimitError(reason, limit, value string) error {
	return reviewerr.WithDetails(
		reviewerr.Newf(reviewerr.ErrFileValidation, "%s", reason),
		map[string]string{"limit": limit, "max": value},
	)
}

// HumanSize renders a byte count in MB for messages.
func HumanSize(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return fmt.Sprintf("%d MB", n/mib)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/mib)
}
