package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/Keoroanthony/nuomi-store/configs"
	"github.com/Keoroanthony/nuomi-store/internal/db"
	"github.com/Keoroanthony/nuomi-store/internal/models"
)

func TestInitSQLite(t *testing.T) {
	gdb, err := db.Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "nuomi.db")})
	require.NoError(t, err)

	for _, table := range []any{&models.User{}, &models.Product{}, &models.Order{}, &models.Setting{}} {
		assert.True(t, gdb.Migrator().HasTable(table))
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := db.Open(config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported database driver")
}
