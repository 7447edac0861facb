package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/egsbridge/internal/config"
)

func TestDialect(t *testing.T) {
	d, err := Dialect(config.Config{DBType: TypePostgres, DBHost: "localhost", DBPort: "5432"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = Dialect(config.Config{DBType: TypeSQLite, DBPath: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = Dialect(config.Config{DBType: "mysql"})
	assert.Error(t, err)
}

func TestOpenSQLite(t *testing.T) {
	conn, err := Open(nil, config.Config{
		DBType: TypeSQLite,
		DBPath: "file:" + t.Name() + "?mode=memory&cache=shared",
		DBName: "egsbridge",
	}, zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	assert.NoError(t, sqlDB.Ping())
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}
