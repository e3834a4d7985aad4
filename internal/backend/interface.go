// Package backend selects and builds the primary transaction store named by
// DATA_BACKEND.
package backend

import (
	"context"
	"slices"

	"wallet/internal/store"
)

// BackendType names a primary store implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool {
	return slices.Contains(backendTypes, bt)
}

// Config carries the settings of the selected backend only.
type Config struct {
	Type BackendType

	SQLiteDBPath string

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// DataDirectory holds JSON seed files for the memory backend.
	DataDirectory string
}

// BackendResult is a ready store plus whatever must be released with it.
type BackendResult struct {
	Type  BackendType
	Store store.TransactionStore

	// Mirror accepts replayed change events. Every built-in backend sets it.
	Mirror store.MirrorStore

	Cleanup func() error
}

// Close releases the backend. It is safe on a nil result.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory builds a backend from its Config.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
