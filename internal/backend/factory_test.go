package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet/internal/config"
	"wallet/internal/core"
	"wallet/internal/log"
)

func TestBackendTypeIsValid(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		if !bt.IsValid() {
			t.Errorf("%s should be valid", bt)
		}
	}
	if BackendType("postgres").IsValid() {
		t.Error("postgres should not be valid")
	}
	assert.Equal(t, []string{"sqlite", "sheets", "memory"}, GetBackendTypeStrings())
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "mongo"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:         " Sheets ",
		GoogleSpreadsheetID: "abc",
		GoogleSheetName:     "Tx",
		SQLiteDBPath:        "ignored.db",
		DataDir:             "/srv/data",
	})
	require.NoError(t, err)
	assert.Equal(t, SheetsBackend, cfg.Type)
	assert.Equal(t, "abc", cfg.GoogleSpreadsheetID)
	assert.Equal(t, "Tx", cfg.GoogleSheetName)
	assert.Empty(t, cfg.SQLiteDBPath, "only settings of the selected backend are carried")

	cfg, err = FromAppConfig(&config.Config{DataBackend: "memory", DataDir: "/srv/data"})
	require.NoError(t, err)
	assert.Equal(t, "/srv/data", cfg.dataDirectory())
	assert.Equal(t, DefaultDataDirectory, Config{Type: MemoryBackend}.dataDirectory())
}

func TestParseBackendType(t *testing.T) {
	bt, err := ParseBackendType("SQLite")
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, bt)

	_, err = ParseBackendType("")
	assert.ErrorContains(t, err, "sqlite, sheets, memory")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sheets without id", Config{Type: SheetsBackend}, true},
		{"sheets with id", Config{Type: SheetsBackend, GoogleSpreadsheetID: "abc"}, false},
		{"sheets with two credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "abc", GoogleServiceAccountFile: "a.json", GoogleServiceAccountJSON: "{}"}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	seed := `[{"id":9,"type":"income","amount":"10.50","category":"Gift","description":"","date":"2024-05-01"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_transactions.json"), []byte(seed), 0o644))

	res, err := NewFactory(log.Discard()).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	require.NoError(t, err)
	defer res.Close()

	assert.Equal(t, MemoryBackend, res.Type)
	assert.NotNil(t, res.Mirror)

	list, err := res.Store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(9), list[0].ID)
	assert.Equal(t, core.Income, list[0].Type)
}

func TestCreateSQLiteBackend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "wallet.db")

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: dbPath})
	require.NoError(t, err)

	assert.Equal(t, SQLiteBackend, res.Type)
	list, err := res.Store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, res.Close())
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	_, err := NewFactory(log.Discard()).CreateBackend(context.Background(), Config{Type: SheetsBackend})
	assert.Error(t, err)

	var nilResult *BackendResult
	assert.NoError(t, nilResult.Close())
}
