// Package storagedriver opens the exchange store selected by the storage
// config section.
package storagedriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZBcheng/pure-ollama/pkg/config"
	"github.com/ZBcheng/pure-ollama/pkg/storage"
	"github.com/ZBcheng/pure-ollama/pkg/storage/inmemory"
	"github.com/ZBcheng/pure-ollama/pkg/storage/postgres"
	"github.com/ZBcheng/pure-ollama/pkg/storage/sqlite"
)

// ErrNoDatabase is returned by ResolveSQLitePath when no database is found.
var ErrNoDatabase = errors.New("could not find pollama SQLite database; pass --sqlite")

// Open returns the configured driver. PostgresDSN wins over SQLitePath and
// with neither set exchanges are kept in memory.
func Open(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (storage.Driver, error) {
	switch {
	case cfg.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres storage: %w", err)
		}
		log.Info("using postgres storage")
		return driver, nil

	case cfg.SQLitePath != "":
		driver, err := sqlite.NewSQLiteDriver(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite storage: %w", err)
		}
		log.Info("using sqlite storage", "path", cfg.SQLitePath)
		return driver, nil

	default:
		log.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}

// OpenExisting opens a store that must already hold recorded exchanges.
// Unlike Open it never falls back to memory.
func OpenExisting(ctx context.Context, cfg config.StorageConfig) (storage.Driver, error) {
	if cfg.PostgresDSN != "" {
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres storage: %w", err)
		}
		return driver, nil
	}

	path, err := ResolveSQLitePath(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	driver, err := sqlite.NewSQLiteDriver(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite storage: %w", err)
	}
	return driver, nil
}

// ResolveSQLitePath returns override when set, else the first existing
// well-known database file.
func ResolveSQLitePath(override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", ErrNoDatabase
}

func sqliteCandidates() []string {
	candidates := []string{
		"pollama.db",
		filepath.Join(".pollama", "pollama.db"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".pollama", "pollama.db"))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "pollama", "pollama.db"))
	}

	return candidates
}
