package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/snipermjy/password-manager/internal/storage"
)

// utf8BOM keeps spreadsheet applications from misreading the encoding.
const utf8BOM = "\uFEFF"

func ExportCSV(w io.Writer, records []storage.Credential) error {
	headers, rows, err := buildTable(records)
	if err != nil {
		return fmt.Errorf("export csv: %w", err)
	}

	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("export csv: write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("export csv: write header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("export csv: write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("export csv: flush: %w", err)
	}
	return nil
}

func ImportCSV(r io.Reader) ([]RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("import csv: %w: %v", ErrFormat, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("import csv: %w: missing header row", ErrFormat)
	}

	headers := all[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}

	return rowsToRecords(headers, all[1:]), nil
}
