package cli

import (
	"context"
	"fmt"

	"github.com/snipermjy/password-manager/internal/app"
	"github.com/snipermjy/password-manager/internal/config"
	logpkg "github.com/snipermjy/password-manager/internal/log"
	"github.com/snipermjy/password-manager/internal/storage"
)

// withVault loads config, opens the store for the duration of one command,
// and closes it on every exit path.
func withVault(ctx context.Context, deps commandDeps, fn func(ctx context.Context, vault *app.VaultService) error) error {
	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if deps.globals.VaultPath != "" {
		cfg.Vault.Path = deps.globals.VaultPath
	}

	logger, closeLogger, err := logpkg.Setup(cfg.Logging)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer func() { _ = closeLogger() }()

	store, err := storage.Open(cfg.Vault.Path, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return fn(ctx, app.NewVaultService(store, logger))
}
