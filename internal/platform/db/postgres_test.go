package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/mollie-gateway/pkg/config"
)

func TestNewDB_SqliteMigrates(t *testing.T) {
	l := zap.NewNop().Sugar()
	db, err := NewDB(l, &cfgpkg.Config{Database: cfgpkg.DBConfig{Driver: "sqlite", DSN: "file::memory:"}})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(l, db))
	require.True(t, db.Migrator().HasTable("donation"))
	require.True(t, db.Migrator().HasTable("recurring_donation"))
}

func TestNewDB_Errors(t *testing.T) {
	l := zap.NewNop().Sugar()
	_, err := NewDB(l, &cfgpkg.Config{})
	require.Error(t, err)

	_, err = NewDB(l, &cfgpkg.Config{Database: cfgpkg.DBConfig{Driver: "mysql", DSN: "x"}})
	require.ErrorContains(t, err, "unsupported database driver")
}
