package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrConflict     = errors.New("storage: conflict")
	ErrInvalid      = errors.New("storage: invalid record")
	ErrSchemaTooNew = errors.New("storage: schema version newer than code")

	// Deletion guards. Expected, recoverable outcomes rather than faults;
	// callers discriminate with errors.Is.
	ErrCategoryInUse   = errors.New("storage: category in use")
	ErrCategoryDefault = errors.New("storage: default category is undeletable")
	ErrFieldInUse      = errors.New("storage: custom field in use")
)

// Credential is one stored site credential. CustomFields is joined in from
// the custom_field_values side table, keyed by field name. The map carries
// no order; consumers that need a stable order sort the names themselves,
// as the export codec does.
type Credential struct {
	ID           int64
	SiteName     string
	URL          string
	LoginAccount string
	Password     string
	Phone        string
	Email        string
	Category     string
	Notes        string
	RegisterDate string // YYYY-MM-DD
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Deleted      bool
	DeletedAt    *time.Time
	CustomFields map[string]string
}

type Category struct {
	ID        int64
	Name      string
	Color     string
	SortOrder int
	IsDefault bool
	CreatedAt time.Time
}

type CustomField struct {
	ID        int64
	FieldName string
	FieldType string
	SortOrder int
	CreatedAt time.Time
}

// ModificationEntry is one append-only history row recording a single
// changed field of an existing credential. FieldLabel is the display label,
// not the column name.
type ModificationEntry struct {
	ID           int64
	CredentialID int64
	FieldLabel   string
	OldValue     string
	NewValue     string
	ModifiedAt   time.Time
}

type BackupEntry struct {
	ID         int64
	BackupTime time.Time
	Kind       string // "local" or "remote"
	FilePath   string
	Status     string
	Message    string
}

type CredentialRepository interface {
	Add(ctx context.Context, cred *Credential) (int64, error)
	Update(ctx context.Context, cred *Credential, previous *Credential) error
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	Purge(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Credential, error)
	ListAll(ctx context.Context, includeDeleted bool) ([]Credential, error)
	ListDeleted(ctx context.Context) ([]Credential, error)
	SearchLike(ctx context.Context, keyword string, includeDeleted bool) ([]Credential, error)
	FilterByCategory(ctx context.Context, category string, includeDeleted bool) ([]Credential, error)
}

type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	Add(ctx context.Context, category *Category) (int64, error)
	Update(ctx context.Context, category *Category) error
	Delete(ctx context.Context, id int64) error
	UsageCount(ctx context.Context, name string) (int, error)
}

type CustomFieldRepository interface {
	List(ctx context.Context) ([]CustomField, error)
	Add(ctx context.Context, field *CustomField) (int64, error)
	Delete(ctx context.Context, id int64) error
	UsageCount(ctx context.Context, id int64) (int, error)
}

type HistoryRepository interface {
	ListByCredential(ctx context.Context, credentialID int64) ([]ModificationEntry, error)
}

type SettingRepository interface {
	Get(ctx context.Context, key, fallback string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

type BackupRepository interface {
	Append(ctx context.Context, entry *BackupEntry) (int64, error)
	List(ctx context.Context, limit int) ([]BackupEntry, error)
}
