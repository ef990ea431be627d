package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sheet() Dataset {
	return Dataset{
		Headers: []string{"Student", "Total", "Grade"},
		Rows: []map[string]string{
			{"Student": "Alice", "Total": "87.00", "Grade": "A"},
			{"Student": "Bob", "Total": "41.50", "Grade": "D"},
		},
		Summary: [][2]string{{"Class average", "64.25"}},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sheet())
	require.NoError(t, err)
	assert.Equal(t, "Student,Total,Grade\nAlice,87.00,A\nBob,41.50,D\nClass average,64.25\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestRendererPDF(t *testing.T) {
	out, err := NewRenderer().Render(FormatPDF, sheet(), "Mathematics results")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	require.Error(t, err)
}
