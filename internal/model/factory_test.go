package model

import (
	"path/filepath"
	"testing"

	"portal/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	dir := t.TempDir()
	for dbType, want := range map[string]string{
		"":         DBTypeSQLite,
		"SQLite":   DBTypeSQLite,
		"mysql":    DBTypeMySQL,
		"postgres": DBTypePostgres,
	} {
		d, err := Dialector(&config.Config{DBType: dbType, DBPath: filepath.Join(dir, "nested", "p.db")})
		require.NoError(t, err, dbType)
		assert.Equal(t, want, d.Name(), dbType)
	}
	assert.DirExists(t, filepath.Join(dir, "nested"))

	_, err := Dialector(&config.Config{DBType: "oracle"})
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := &config.Config{DBUser: "u", DBPassword: "p", DBAddr: "db", DBPort: "3306", DBName: "portal"}
	assert.Equal(t, "u:p@tcp(db:3306)/portal?charset=utf8mb4&parseTime=True&loc=UTC", mysqlDSN(cfg))
	assert.Contains(t, postgresDSN(cfg), "port=5432")
	assert.Equal(t, "dsn", firstNonEmpty("  ", "dsn"))
}

func TestInitRepositorySQLite(t *testing.T) {
	repo, err := InitRepository(&config.Config{DBPath: filepath.Join(t.TempDir(), "portal.db")})
	require.NoError(t, err)
	n, err := repo.CountUsers(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)
}
