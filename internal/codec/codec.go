// Package codec maps credential records to and from the three supported
// interchange formats: CSV (UTF-8 with BOM for spreadsheet compatibility),
// XLSX workbooks, and JSON arrays. The tabular formats share one localized
// header set; columns beyond the core mapping become custom fields on
// import.
package codec

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/snipermjy/password-manager/internal/storage"
)

var (
	ErrEmptyExport       = errors.New("codec: no records to export")
	ErrFormat            = errors.New("codec: malformed input")
	ErrUnsupportedFormat = errors.New("codec: unsupported format")
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatJSON  Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatExcel, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

func (f Format) Extension() string {
	switch f {
	case FormatExcel:
		return ".xlsx"
	case FormatJSON:
		return ".json"
	default:
		return ".csv"
	}
}

// Core column headers shared by the CSV and XLSX projections, in export
// order. The two trailing timestamp columns are emitted on export and
// recognized-but-dropped on import.
var coreHeaders = []string{
	"网站名称", "网址", "登录账号", "密码", "手机号", "邮箱",
	"分类", "备注", "注册时间", "创建时间", "最后修改时间",
}

var headerToField = map[string]string{
	"网站名称": "site_name",
	"网址":   "url",
	"登录账号": "login_account",
	"密码":   "password",
	"手机号":  "phone",
	"邮箱":   "email",
	"分类":   "category",
	"备注":   "notes",
	"注册时间": "register_date",
}

var importIgnoredHeaders = map[string]struct{}{
	"创建时间":   {},
	"最后修改时间": {},
}

// RawRecord is one loosely-typed imported row: core fields keyed by their
// canonical names plus any custom fields keyed by column header.
type RawRecord struct {
	Fields       map[string]string
	CustomFields map[string]string
}

// Export serializes records in the given format. Exporting zero records is
// an error for the tabular formats and an empty array for JSON.
func Export(w io.Writer, records []storage.Credential, format Format) error {
	switch format {
	case FormatCSV:
		return ExportCSV(w, records)
	case FormatExcel:
		return ExportXLSX(w, records)
	case FormatJSON:
		return ExportJSON(w, records)
	default:
		return fmt.Errorf("export: %w: %q", ErrUnsupportedFormat, format)
	}
}

func Import(r io.Reader, format Format) ([]RawRecord, error) {
	switch format {
	case FormatCSV:
		return ImportCSV(r)
	case FormatExcel:
		return ImportXLSX(r)
	case FormatJSON:
		return ImportJSON(r)
	default:
		return nil, fmt.Errorf("import: %w: %q", ErrUnsupportedFormat, format)
	}
}

// buildTable projects records into a header row plus one row per record:
// the core columns followed by one column per distinct custom-field name
// across the set (sorted for a stable layout). Cells for custom fields a
// record lacks are blank.
func buildTable(records []storage.Credential) ([]string, [][]string, error) {
	if len(records) == 0 {
		return nil, nil, ErrEmptyExport
	}

	customNames := map[string]struct{}{}
	for i := range records {
		for name := range records[i].CustomFields {
			customNames[name] = struct{}{}
		}
	}
	customColumns := make([]string, 0, len(customNames))
	for name := range customNames {
		customColumns = append(customColumns, name)
	}
	sort.Strings(customColumns)

	headers := append(append([]string{}, coreHeaders...), customColumns...)

	rows := make([][]string, 0, len(records))
	for i := range records {
		record := &records[i]
		row := []string{
			record.SiteName,
			record.URL,
			record.LoginAccount,
			record.Password,
			record.Phone,
			record.Email,
			record.Category,
			record.Notes,
			record.RegisterDate,
			record.CreatedAt.Format("2006-01-02 15:04:05"),
			record.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		for _, name := range customColumns {
			row = append(row, record.CustomFields[name])
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

// rowsToRecords applies the inverse header mapping to tabular data: core
// headers map to canonical field names, the timestamp columns are dropped,
// and every other column becomes a custom field. Missing cells are empty
// strings.
func rowsToRecords(headers []string, rows [][]string) []RawRecord {
	out := make([]RawRecord, 0, len(rows))
	for _, row := range rows {
		record := RawRecord{
			Fields:       map[string]string{},
			CustomFields: map[string]string{},
		}
		for i, header := range headers {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			if field, ok := headerToField[header]; ok {
				record.Fields[field] = value
				continue
			}
			if _, ignored := importIgnoredHeaders[header]; ignored {
				continue
			}
			record.CustomFields[header] = value
		}
		out = append(out, record)
	}
	return out
}

// Validate filters parsed rows, rejecting any missing a non-empty site
// name or password with a 1-indexed message, and returns the survivors
// plus the collected errors. The caller decides whether partial data is
// acceptable.
func Validate(records []RawRecord) ([]RawRecord, []string) {
	valid := make([]RawRecord, 0, len(records))
	var errs []string

	for idx, record := range records {
		if record.Fields["site_name"] == "" {
			errs = append(errs, fmt.Sprintf("第 %d 条：缺少网站名称", idx+1))
			continue
		}
		if record.Fields["password"] == "" {
			errs = append(errs, fmt.Sprintf("第 %d 条：缺少密码", idx+1))
			continue
		}
		valid = append(valid, record)
	}
	return valid, errs
}

// ToCredential converts a validated raw row into a credential ready for
// the record store.
func ToCredential(record RawRecord) storage.Credential {
	cred := storage.Credential{
		SiteName:     record.Fields["site_name"],
		URL:          record.Fields["url"],
		LoginAccount: record.Fields["login_account"],
		Password:     record.Fields["password"],
		Phone:        record.Fields["phone"],
		Email:        record.Fields["email"],
		Category:     record.Fields["category"],
		Notes:        record.Fields["notes"],
		RegisterDate: record.Fields["register_date"],
		CustomFields: map[string]string{},
	}
	for name, value := range record.CustomFields {
		cred.CustomFields[name] = value
	}
	return cred
}
