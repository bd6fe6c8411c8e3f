package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// ErrorEnvelope is the JSON shape of a failed command.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the machine-readable parts of a ReviewError.
type ErrorBody struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// ErrorBodyOf flattens any error into an ErrorBody. Plain errors become
// GENERAL_ERROR.
func ErrorBodyOf(err error) ErrorBody {
	var re *reviewerr.ReviewError
	if !errors.As(err, &re) {
		return ErrorBody{
			Code:     reviewerr.ErrGeneral.Code,
			Message:  err.Error(),
			ExitCode: reviewerr.ExitGeneral,
		}
	}
	body := ErrorBody{
		Code:       re.Code,
		Message:    re.Message,
		Details:    re.Details,
		Suggestion: re.Suggestion,
		ExitCode:   re.ExitCode,
	}
	if re.Cause != nil {
		body.Cause = re.Cause.Error()
	}
	return body
}

// FormatError writes err to w. Nothing is written for a nil error.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}
	body := ErrorBodyOf(err)
	if format == FormatJSON {
		return writeJSON(w, ErrorEnvelope{Error: body})
	}
	return writeErrorText(w, body)
}

func writeErrorText(w io.Writer, body ErrorBody) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error [%s]: %s\n", body.Code, body.Message)

	if len(body.Details) > 0 {
		sb.WriteString("\nDetails:\n")
		for _, k := range slices.Sorted(maps.Keys(body.Details)) {
			fmt.Fprintf(&sb, "  %s: %s\n", k, body.Details[k])
		}
	}
	if body.Cause != "" {
		fmt.Fprintf(&sb, "\nCause: %s\n", body.Cause)
	}
	if body.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", body.Suggestion)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
