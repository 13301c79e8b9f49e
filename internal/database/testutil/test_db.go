package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/typedkv/internal/database"
)

// MemoryConfig points at the process-wide shared in-memory SQLite instance.
func MemoryConfig() database.Config {
	return database.Config{Driver: "sqlite"}
}

// FileConfig returns a config backed by a database file in a per-test
// temporary directory, for tests that must survive a close and reopen.
func FileConfig(t *testing.T) database.Config {
	t.Helper()

	return database.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "store.db"),
	}
}

// TempTable returns a table name unique to one test. The shared-cache
// in-memory DSN lands every test in the same database, so table names must
// not collide.
func TempTable(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// MustOpenTestDB opens an in-memory SQLite database for tests.
// The returned connection is automatically closed via t.Cleanup.
func MustOpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(MemoryConfig())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = database.Close(db)
	})

	return db
}
