package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaVersionOfEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	version, dirty, err := SchemaVersion(dbPath)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestRollbackMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "wallet.db")
	require.NoError(t, RunMigrations(dbPath))

	require.NoError(t, RollbackMigrations(dbPath, 1))
	version, _, err := SchemaVersion(dbPath)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, RunMigrations(dbPath))
	version, _, err = SchemaVersion(dbPath)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	assert.Error(t, RollbackMigrations(dbPath, 0))
}
