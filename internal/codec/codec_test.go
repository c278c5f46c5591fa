package codec

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/snipermjy/password-manager/internal/storage"
)

func sampleRecords() []storage.Credential {
	created := time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC)
	return []storage.Credential{
		{
			ID:           1,
			SiteName:     "GitHub",
			URL:          "https://github.com",
			LoginAccount: "octocat",
			Password:     "s3cret",
			Email:        "octo@example.com",
			Category:     "工作",
			Notes:        "primary, see \"backup codes\"",
			RegisterDate: "2024-05-01",
			CreatedAt:    created,
			UpdatedAt:    created,
			CustomFields: map[string]string{"安全问题": "猫的名字"},
		},
		{
			ID:           2,
			SiteName:     "淘宝",
			Password:     "p@ss,word",
			Phone:        "13800000000",
			Category:     "购物",
			RegisterDate: "2023-11-20",
			CreatedAt:    created,
			UpdatedAt:    created,
		},
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"csv", "excel", "json"} {
		format, err := ParseFormat(name)
		require.NoError(t, err)
		require.Equal(t, Format(name), format)
	}

	_, err := ParseFormat("xml")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormatExtension(t *testing.T) {
	t.Parallel()

	require.Equal(t, ".csv", FormatCSV.Extension())
	require.Equal(t, ".xlsx", FormatExcel.Extension())
	require.Equal(t, ".json", FormatJSON.Extension())
}

func TestCSVRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, sampleRecords()))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, utf8BOM), "expected a UTF-8 BOM")
	require.Contains(t, out, "网站名称,网址,登录账号,密码,手机号,邮箱,分类,备注,注册时间,创建时间,最后修改时间,安全问题")
	require.Contains(t, out, "2026-02-03 10:30:00")

	records, err := ImportCSV(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	require.Equal(t, "GitHub", first.Fields["site_name"])
	require.Equal(t, "s3cret", first.Fields["password"])
	require.Equal(t, "2024-05-01", first.Fields["register_date"])
	require.Equal(t, "primary, see \"backup codes\"", first.Fields["notes"])
	require.Equal(t, map[string]string{"安全问题": "猫的名字"}, first.CustomFields)

	second := records[1]
	require.Equal(t, "淘宝", second.Fields["site_name"])
	require.Equal(t, "p@ss,word", second.Fields["password"])
	// The custom column exists for every row; blank where unset.
	require.Equal(t, "", second.CustomFields["安全问题"])

	// Timestamp columns are recognized and dropped on import.
	_, hasCreated := first.CustomFields["创建时间"]
	require.False(t, hasCreated)
}

func TestCSVExportEmptyFails(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.ErrorIs(t, ExportCSV(&buf, nil), ErrEmptyExport)
}

func TestCSVImportMalformed(t *testing.T) {
	t.Parallel()

	_, err := ImportCSV(strings.NewReader(""))
	require.ErrorIs(t, err, ErrFormat)

	_, err = ImportCSV(strings.NewReader("a,\"unterminated\n"))
	require.ErrorIs(t, err, ErrFormat)
}

func TestXLSXRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, ExportXLSX(&buf, sampleRecords()))

	records, err := ImportXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, "GitHub", records[0].Fields["site_name"])
	require.Equal(t, "工作", records[0].Fields["category"])
	require.Equal(t, "猫的名字", records[0].CustomFields["安全问题"])
	require.Equal(t, "淘宝", records[1].Fields["site_name"])
	require.Equal(t, "13800000000", records[1].Fields["phone"])
}

func TestXLSXExportEmptyFails(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.ErrorIs(t, ExportXLSX(&buf, nil), ErrEmptyExport)
}

func TestXLSXImportMalformed(t *testing.T) {
	t.Parallel()

	_, err := ImportXLSX(strings.NewReader("not a zip archive"))
	require.ErrorIs(t, err, ErrFormat)
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, sampleRecords()))

	// Non-ASCII text is written literally, not escaped.
	require.Contains(t, buf.String(), "工作")

	records, err := ImportJSON(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, "GitHub", records[0].Fields["site_name"])
	require.Equal(t, "octo@example.com", records[0].Fields["email"])
	require.Equal(t, map[string]string{"安全问题": "猫的名字"}, records[0].CustomFields)
	require.Equal(t, "p@ss,word", records[1].Fields["password"])
}

func TestJSONExportEmptyWritesEmptyArray(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, nil))

	var decoded []any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Empty(t, decoded)
}

func TestJSONImportCoercesScalars(t *testing.T) {
	t.Parallel()

	input := `[{"site_name": "Bank", "password": "p", "phone": 13800000000, "notes": null}]`
	records, err := ImportJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "13800000000", records[0].Fields["phone"])
	require.Equal(t, "", records[0].Fields["notes"])
}

func TestJSONImportRejectsNonArray(t *testing.T) {
	t.Parallel()

	_, err := ImportJSON(strings.NewReader(`{"site_name": "GitHub"}`))
	require.ErrorIs(t, err, ErrFormat)
}

func TestValidateReportsOneIndexedRows(t *testing.T) {
	t.Parallel()

	records := []RawRecord{
		{Fields: map[string]string{"site_name": "GitHub", "password": "p"}},
		{Fields: map[string]string{"password": "p"}},
		{Fields: map[string]string{"site_name": "Bank"}},
		{Fields: map[string]string{"site_name": "淘宝", "password": "q"}},
	}

	valid, errs := Validate(records)
	require.Len(t, valid, 2)
	require.Equal(t, []string{
		"第 2 条：缺少网站名称",
		"第 3 条：缺少密码",
	}, errs)
}

func TestToCredential(t *testing.T) {
	t.Parallel()

	record := RawRecord{
		Fields: map[string]string{
			"site_name":     "GitHub",
			"password":      "s3cret",
			"category":      "工作",
			"register_date": "2024-05-01",
		},
		CustomFields: map[string]string{"pin": "1234"},
	}

	cred := ToCredential(record)
	require.Equal(t, "GitHub", cred.SiteName)
	require.Equal(t, "s3cret", cred.Password)
	require.Equal(t, "工作", cred.Category)
	require.Equal(t, "2024-05-01", cred.RegisterDate)
	require.Equal(t, map[string]string{"pin": "1234"}, cred.CustomFields)
}

func TestExportDispatchRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.ErrorIs(t, Export(&buf, sampleRecords(), Format("xml")), ErrUnsupportedFormat)
	_, err := Import(strings.NewReader(""), Format("xml"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
