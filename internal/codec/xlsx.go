package codec

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/snipermjy/password-manager/internal/storage"
)

const sheetName = "Sheet1"

func ExportXLSX(w io.Writer, records []storage.Credential) error {
	headers, rows, err := buildTable(records)
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}

	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	if err := writeSheetRow(file, 1, headers); err != nil {
		return fmt.Errorf("export xlsx: write header: %w", err)
	}
	for i, row := range rows {
		if err := writeSheetRow(file, i+2, row); err != nil {
			return fmt.Errorf("export xlsx: write row %d: %w", i+1, err)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("export xlsx: write workbook: %w", err)
	}
	return nil
}

func writeSheetRow(file *excelize.File, rowIndex int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowIndex)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, value := range values {
		row[i] = value
	}
	return file.SetSheetRow(sheetName, cell, &row)
}

func ImportXLSX(r io.Reader) ([]RawRecord, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("import xlsx: %w: %v", ErrFormat, err)
	}
	defer func() { _ = file.Close() }()

	sheet := file.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("import xlsx: %w: workbook has no sheets", ErrFormat)
	}

	all, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("import xlsx: read rows: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("import xlsx: %w: missing header row", ErrFormat)
	}

	return rowsToRecords(all[0], all[1:]), nil
}
