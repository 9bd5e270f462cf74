package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("fails with nil database", func(t *testing.T) {
		migrator, err := NewMigrator(nil, "/some/path", logger)
		require.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("fails with nil pool", func(t *testing.T) {
		migrator, err := NewMigrator(&DB{}, "/some/path", logger)
		require.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database pool not initialized")
	})
}

func TestMigrationFiles(t *testing.T) {
	dir := getMigrationsPath(t)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".sql":
			if matched, _ := filepath.Match("*.up.sql", e.Name()); matched {
				ups++
			}
			if matched, _ := filepath.Match("*.down.sql", e.Name()); matched {
				downs++
			}
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}

func TestMigrator_UpAndStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	logger := zerolog.Nop()

	t.Run("fails with empty migrations path", func(t *testing.T) {
		_, err := NewMigrator(db, "", logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "migrations path is required")
	})

	t.Run("fails with invalid migrations path", func(t *testing.T) {
		_, err := NewMigrator(db, "/nonexistent/path", logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "migrations path validation failed")
	})

	t.Run("up is idempotent", func(t *testing.T) {
		migrator, err := NewMigrator(db, getMigrationsPath(t), logger)
		require.NoError(t, err)
		defer func() { _ = migrator.Close() }()

		require.NoError(t, migrator.Up())
		require.NoError(t, migrator.Up())

		status, err := migrator.Status()
		require.NoError(t, err)
		assert.True(t, status.Applied)
		assert.False(t, status.Dirty)
		assert.GreaterOrEqual(t, status.Version, uint(1))
	})
}

// getMigrationsPath returns the absolute path of the repository's migrations directory.
func getMigrationsPath(t *testing.T) string {
	t.Helper()

	path, err := filepath.Abs(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	if _, err := os.Stat(path); err != nil {
		t.Skipf("migrations directory not found: %v", err)
	}
	return path
}
