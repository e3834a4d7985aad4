package backend

import (
	"context"
	"fmt"

	"wallet/internal/log"
	gsheet "wallet/internal/store/google"
	"wallet/internal/store/memory"
	"wallet/internal/storage"
)

type builder func(ctx context.Context, cfg Config) (*BackendResult, error)

// DefaultFactory builds the three built-in backends.
type DefaultFactory struct {
	logger   *log.Logger
	builders map[BackendType]builder
}

// NewFactory returns the built-in Factory. A nil logger uses the slog default.
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	f := &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
	f.builders = map[BackendType]builder{
		SQLiteBackend: f.sqlite,
		SheetsBackend: f.sheets,
		MemoryBackend: f.memory,
	}
	return f
}

// CreateBackend validates cfg and builds the selected store.
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	build, ok := f.builders[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
	res, err := build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", cfg.Type, err)
	}
	res.Type = cfg.Type
	return res, nil
}

func (f *DefaultFactory) sqlite(ctx context.Context, cfg Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	return &BackendResult{Store: repo, Mirror: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) sheets(ctx context.Context, cfg Config) (*BackendResult, error) {
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
	})
	if err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets backend", "sheet", cfg.GoogleSheetName)
	return &BackendResult{Store: client, Mirror: client}, nil
}

func (f *DefaultFactory) memory(ctx context.Context, cfg Config) (*BackendResult, error) {
	dir := cfg.dataDirectory()
	st := memory.NewFromFiles(dir)
	f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dir)
	return &BackendResult{Store: st, Mirror: st}, nil
}
