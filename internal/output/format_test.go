package output_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewchain/reviewchain/internal/output"
)

type receipt struct {
	Hash string `json:"hash"`
}

func (r receipt) RenderText(w io.Writer) error {
	_, err := io.WriteString(w, "tx "+r.Hash+"\n")
	return err
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want output.Format
	}{
		{"json", output.FormatJSON},
		{" JSON ", output.FormatJSON},
		{"text", output.FormatText},
		{"auto", output.FormatAuto},
		{"", output.FormatAuto},
		{"yaml", output.FormatAuto},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, output.ParseFormat(tc.in), tc.in)
	}
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer

	assert.Equal(t, output.FormatText, output.DetectFormat(&buf, output.FormatText))
	assert.Equal(t, output.FormatJSON, output.DetectFormat(&buf, output.FormatAuto), "non-terminal writers get JSON")
	assert.Equal(t, output.FormatJSON, output.DetectFormat(&buf, ""))
	assert.False(t, output.IsTerminal(&buf))
}

func TestFormatterPrint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format output.Format
		value  any
		want   string
	}{
		{"renderer text", output.FormatText, receipt{Hash: "0xabc"}, "tx 0xabc\n"},
		{"renderer json", output.FormatJSON, receipt{Hash: "0xabc"}, "{\n  \"hash\": \"0xabc\"\n}\n"},
		{"string", output.FormatText, "done", "done\n"},
		{"number", output.FormatText, 42, "42\n"},
		{"table", output.FormatText, output.NewTable("ID").AddRow("7"), "ID\n--\n7\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			f := output.NewFormatter(tc.format, &buf)
			require.NoError(t, f.Print(tc.value))
			assert.Equal(t, tc.want, buf.String())
			assert.Equal(t, tc.format == output.FormatJSON, f.IsJSON())
		})
	}
}

func TestFormatterResolvesAuto(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	f := output.NewFormatter(output.FormatAuto, &buf)
	assert.Equal(t, output.FormatJSON, f.Format())
	assert.Same(t, &buf, f.Writer())
}
