package transcode

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const sheetName = "Businesses"

// ExportXLSX writes the same columns as ExportCSV into a single sheet.
// Every cell is a string so coordinates round-trip exactly.
func (t *Transcoder) ExportXLSX(ctx context.Context, w io.Writer, userID int64) error {
	records, err := t.load(ctx, userID)
	if err != nil {
		return err
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}
	for _, rec := range records {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().SetString(v)
		}
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write")
	}
	return nil
}

// ImportXLSX applies the first sheet of the workbook at path with the same
// rules as ImportCSV.
func (t *Transcoder) ImportXLSX(ctx context.Context, path string, userID int64) (*ImportResult, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, &FormatError{Reason: "workbook has no sheets"}
	}
	return t.apply(ctx, sheetRecords(f.Sheets[0]), userID)
}

// sheetRecords drops rows whose cells are all blank.
func sheetRecords(sheet *xlsx.Sheet) [][]string {
	var records [][]string
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		blank := true
		for j, c := range row.Cells {
			cells[j] = c.String()
			if strings.TrimSpace(cells[j]) != "" {
				blank = false
			}
		}
		if !blank {
			records = append(records, cells)
		}
	}
	return records
}
