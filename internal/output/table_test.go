package output_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewchain/reviewchain/internal/output"
)

func TestTableRender(t *testing.T) {
	t.Parallel()

	tbl := output.NewTable("ID", "COMPANY", "RATING").AlignRight(0, 2)
	tbl.AddRow("7", "Acme", "5")
	tbl.AddRow("128", "Café Noir", "3")

	want := " ID  COMPANY    RATING\n" +
		"---  ---------  ------\n" +
		"  7  Acme            5\n" +
		"128  Café Noir       3\n"
	assert.Equal(t, want, tbl.String())
	assert.Equal(t, 2, tbl.Len())
}

func TestTableRaggedRows(t *testing.T) {
	t.Parallel()

	tbl := output.NewTable("A", "B")
	tbl.AddRow("x")
	tbl.AddRow("y", "z", "extra")

	assert.Equal(t, "A  B\n-  -  -----\nx\ny  z  extra\n", tbl.String())
}

func TestTableEmpty(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, output.NewTable().Render(&buf))
	assert.Empty(t, buf.String())
}

func TestTableNoHeader(t *testing.T) {
	t.Parallel()
	tbl := output.NewTable().AddRow("network", "amoy").AddRow("chain_id", "80002")
	assert.Equal(t, "network   amoy\nchain_id  80002\n", tbl.String())
}

func TestTableWriteFailure(t *testing.T) {
	t.Parallel()
	require.Error(t, output.NewTable("A").AddRow("1").Render(failingWriter{}))
}
