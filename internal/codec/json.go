package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/snipermjy/password-manager/internal/storage"
)

// jsonRecord is the structured-document projection of one credential,
// custom fields nested under their own key.
type jsonRecord struct {
	ID           int64             `json:"id"`
	SiteName     string            `json:"site_name"`
	URL          string            `json:"url"`
	LoginAccount string            `json:"login_account"`
	Password     string            `json:"password"`
	Phone        string            `json:"phone"`
	Email        string            `json:"email"`
	Category     string            `json:"category"`
	Notes        string            `json:"notes"`
	RegisterDate string            `json:"register_date"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
	IsDeleted    bool              `json:"is_deleted"`
	DeletedAt    *string           `json:"deleted_at"`
	CustomFields map[string]string `json:"custom_fields"`
}

// ExportJSON writes records as an indented UTF-8 array, non-ASCII text
// written literally. An empty record list produces an empty array.
func ExportJSON(w io.Writer, records []storage.Credential) error {
	out := make([]jsonRecord, 0, len(records))
	for i := range records {
		record := &records[i]

		var deletedAt *string
		if record.DeletedAt != nil {
			formatted := record.DeletedAt.Format(time.RFC3339Nano)
			deletedAt = &formatted
		}
		customFields := record.CustomFields
		if customFields == nil {
			customFields = map[string]string{}
		}

		out = append(out, jsonRecord{
			ID:           record.ID,
			SiteName:     record.SiteName,
			URL:          record.URL,
			LoginAccount: record.LoginAccount,
			Password:     record.Password,
			Phone:        record.Phone,
			Email:        record.Email,
			Category:     record.Category,
			Notes:        record.Notes,
			RegisterDate: record.RegisterDate,
			CreatedAt:    record.CreatedAt.Format(time.RFC3339Nano),
			UpdatedAt:    record.UpdatedAt.Format(time.RFC3339Nano),
			IsDeleted:    record.Deleted,
			DeletedAt:    deletedAt,
			CustomFields: customFields,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}

// ImportJSON requires an array of objects; anything else is a format error.
func ImportJSON(r io.Reader) ([]RawRecord, error) {
	var raw []map[string]any
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("import json: %w: expected an array of objects: %v", ErrFormat, err)
	}

	out := make([]RawRecord, 0, len(raw))
	for _, object := range raw {
		record := RawRecord{
			Fields:       map[string]string{},
			CustomFields: map[string]string{},
		}
		for key, value := range object {
			switch key {
			case "custom_fields":
				nested, ok := value.(map[string]any)
				if !ok {
					continue
				}
				for name, nestedValue := range nested {
					record.CustomFields[name] = stringify(nestedValue)
				}
			case "site_name", "url", "login_account", "password", "phone", "email",
				"category", "notes", "register_date":
				record.Fields[key] = stringify(value)
			}
		}
		out = append(out, record)
	}
	return out, nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return trimFloat(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
