// Package export renders the resolved state of a dataset's examples into
// flat files for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/tracelight/dataset-cli/internal/handle"
	"github.com/tracelight/dataset-cli/internal/store"
)

var header = []string{"example_id", "span_id", "input", "output", "metadata", "created_at"}

// Rows flattens example states into a header row plus one row per example.
// Internal ids are rendered as opaque handles; payloads are rendered as JSON.
func Rows(states []store.ExampleState) ([][]string, error) {
	rows := make([][]string, 0, len(states)+1)
	rows = append(rows, header)
	for _, st := range states {
		input, err := jsonCell(st.Revision.Input)
		if err != nil {
			return nil, err
		}
		output, err := jsonCell(st.Revision.Output)
		if err != nil {
			return nil, err
		}
		meta, err := jsonCell(st.Revision.Metadata)
		if err != nil {
			return nil, err
		}
		var spanHandle string
		if st.SpanID != nil {
			spanHandle = handle.Encode(handle.KindSpan, *st.SpanID)
		}
		rows = append(rows, []string{
			handle.Encode(handle.KindDatasetExample, st.ExampleID),
			spanHandle,
			input,
			output,
			meta,
			st.Revision.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return rows, nil
}

// WriteCSV writes the example states as CSV.
func WriteCSV(w io.Writer, states []store.ExampleState) error {
	rows, err := Rows(states)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// WriteXLSX writes the example states as a single-sheet workbook.
func WriteXLSX(w io.Writer, sheetName string, states []store.ExampleState) error {
	rows, err := Rows(states)
	if err != nil {
		return err
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sanitizeSheetName(sheetName))
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	for _, row := range rows {
		xr := sheet.AddRow()
		for _, cell := range row {
			xr.AddCell().SetString(cell)
		}
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

// sanitizeSheetName fits an arbitrary dataset name into the 31-char limit
// xlsx imposes and strips the characters it forbids.
func sanitizeSheetName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	if len(out) == 0 {
		return "examples"
	}
	return string(out)
}

func jsonCell(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", eris.Wrap(err, "export: marshal payload")
	}
	return string(b), nil
}
