package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/tracelight/dataset-cli/internal/handle"
	"github.com/tracelight/dataset-cli/internal/model"
	"github.com/tracelight/dataset-cli/internal/store"
)

func sampleStates() []store.ExampleState {
	spanID := int64(31)
	created := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	return []store.ExampleState{
		{
			ExampleID: 5,
			SpanID:    &spanID,
			Revision: model.ExampleRevision{
				Input:     map[string]any{"q": "2+2"},
				Output:    map[string]any{"a": "4"},
				Metadata:  map[string]any{"source": "manual"},
				Kind:      model.RevisionCreate,
				CreatedAt: created,
			},
		},
		{
			ExampleID: 6,
			Revision: model.ExampleRevision{
				Input:     map[string]any{"q": "3+3"},
				Kind:      model.RevisionPatch,
				CreatedAt: created,
			},
		},
	}
}

func TestRows(t *testing.T) {
	rows, err := Rows(sampleStates())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"example_id", "span_id", "input", "output", "metadata", "created_at"}, rows[0])

	assert.Equal(t, handle.Encode(handle.KindDatasetExample, 5), rows[1][0])
	assert.Equal(t, handle.Encode(handle.KindSpan, 31), rows[1][1])
	assert.JSONEq(t, `{"q":"2+2"}`, rows[1][2])
	assert.JSONEq(t, `{"a":"4"}`, rows[1][3])
	assert.JSONEq(t, `{"source":"manual"}`, rows[1][4])
	assert.Equal(t, "2026-08-01T12:30:00Z", rows[1][5])

	// span-less example gets an empty span cell and "{}" payloads
	assert.Empty(t, rows[2][1])
	assert.Equal(t, "{}", rows[2][3])
	assert.Equal(t, "{}", rows[2][4])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleStates()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "example_id", records[0][0])
	assert.Equal(t, handle.Encode(handle.KindDatasetExample, 6), records[2][0])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "golden", sampleStates()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet["golden"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "example_id", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, handle.Encode(handle.KindDatasetExample, 5), sheet.Rows[1].Cells[0].String())
	assert.JSONEq(t, `{"q":"3+3"}`, sheet.Rows[2].Cells[2].String())
}

func TestWriteXLSX_EmptyDataset(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "empty", nil))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheet["empty"].Rows, 1)
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "ab", sanitizeSheetName("a:/b"))
	assert.Equal(t, "examples", sanitizeSheetName("[]"))

	long := sanitizeSheetName("this dataset name is far longer than the sheet limit allows")
	assert.Len(t, long, 31)
}
