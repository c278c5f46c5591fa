package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/snipermjy/password-manager/internal/codec"
	"github.com/snipermjy/password-manager/internal/search"
	"github.com/snipermjy/password-manager/internal/storage"
)

// VaultService is the application-facing surface over the record store and
// the ranked search engine.
type VaultService struct {
	store  *storage.Store
	engine *search.Engine
	logger *slog.Logger
}

func NewVaultService(store *storage.Store, logger *slog.Logger) *VaultService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VaultService{
		store:  store,
		engine: search.NewEngine(),
		logger: logger,
	}
}

func (s *VaultService) Store() *storage.Store {
	return s.store
}

func (s *VaultService) Add(ctx context.Context, cred *storage.Credential) (int64, error) {
	if s == nil || s.store == nil {
		return 0, fmt.Errorf("add credential: store is nil")
	}
	if strings.TrimSpace(cred.SiteName) == "" {
		return 0, fmt.Errorf("%w: site name is required", ErrValidation)
	}
	if cred.Password == "" {
		return 0, fmt.Errorf("%w: password is required", ErrValidation)
	}
	return s.store.Credentials.Add(ctx, cred)
}

// Update loads the stored snapshot first so every changed tracked field
// lands in the modification history.
func (s *VaultService) Update(ctx context.Context, cred *storage.Credential) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("update credential: store is nil")
	}
	previous, err := s.store.Credentials.Get(ctx, cred.ID)
	if err != nil {
		return fmt.Errorf("update credential: load previous: %w", err)
	}
	return s.store.Credentials.Update(ctx, cred, previous)
}

func (s *VaultService) Get(ctx context.Context, id int64) (*storage.Credential, error) {
	return s.store.Credentials.Get(ctx, id)
}

func (s *VaultService) List(ctx context.Context, includeDeleted bool) ([]storage.Credential, error) {
	return s.store.Credentials.ListAll(ctx, includeDeleted)
}

func (s *VaultService) ListDeleted(ctx context.Context) ([]storage.Credential, error) {
	return s.store.Credentials.ListDeleted(ctx)
}

func (s *VaultService) SoftDelete(ctx context.Context, id int64) error {
	return s.store.Credentials.SoftDelete(ctx, id)
}

func (s *VaultService) Restore(ctx context.Context, id int64) error {
	return s.store.Credentials.Restore(ctx, id)
}

func (s *VaultService) Purge(ctx context.Context, id int64) error {
	return s.store.Credentials.Purge(ctx, id)
}

func (s *VaultService) History(ctx context.Context, id int64) ([]storage.ModificationEntry, error) {
	return s.store.History.ListByCredential(ctx, id)
}

// SearchRanked loads the active snapshot and ranks it by relevance.
func (s *VaultService) SearchRanked(ctx context.Context, keyword string) ([]storage.Credential, error) {
	records, err := s.store.Credentials.ListAll(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("ranked search: %w", err)
	}
	return s.engine.Rank(records, keyword), nil
}

// SearchStored is the storage-layer LIKE fallback.
func (s *VaultService) SearchStored(ctx context.Context, keyword string, includeDeleted bool) ([]storage.Credential, error) {
	return s.store.Credentials.SearchLike(ctx, keyword, includeDeleted)
}

func (s *VaultService) FindByDomain(ctx context.Context, domain string) ([]storage.Credential, error) {
	records, err := s.store.Credentials.ListAll(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("find by domain: %w", err)
	}
	return s.engine.FindByDomain(records, domain), nil
}

func (s *VaultService) Filter(ctx context.Context, criteria search.Criteria) ([]storage.Credential, error) {
	records, err := s.store.Credentials.ListAll(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("filter credentials: %w", err)
	}
	return s.engine.FilterByCriteria(records, criteria), nil
}

// ExportFile writes the records to path in the given format, creating the
// parent directory when needed.
func (s *VaultService) ExportFile(records []storage.Credential, format codec.Format, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: output path is required", ErrValidation)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("export file: create output directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("export file: %w", err)
	}

	if err := codec.Export(file, records, format); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("export file: close: %w", err)
	}

	s.logger.Info("exported records",
		slog.Int("count", len(records)),
		slog.String("format", string(format)),
		slog.String("path", path))
	return nil
}

// ImportFile parses path in the given format, validates the rows, persists
// the valid ones, and reports the rejected rows. A malformed file aborts
// before any write; per-row validation failures do not.
func (s *VaultService) ImportFile(ctx context.Context, path string, format codec.Format) (ImportReport, error) {
	var report ImportReport

	file, err := os.Open(path)
	if err != nil {
		return report, fmt.Errorf("import file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return s.importReader(ctx, file, format)
}

func (s *VaultService) importReader(ctx context.Context, r io.Reader, format codec.Format) (ImportReport, error) {
	var report ImportReport

	rows, err := codec.Import(r, format)
	if err != nil {
		return report, err
	}

	valid, rowErrors := codec.Validate(rows)
	report.Errors = rowErrors

	for _, row := range valid {
		cred := codec.ToCredential(row)
		if _, err := s.store.Credentials.Add(ctx, &cred); err != nil {
			return report, fmt.Errorf("import file: persist %q: %w", cred.SiteName, err)
		}
		report.Imported++
	}

	s.logger.Info("imported records",
		slog.Int("imported", report.Imported),
		slog.Int("rejected", len(report.Errors)))
	return report, nil
}
