package migration

import (
	"io/fs"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	up, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.up.sql")
	require.NoError(t, err)
	down, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.down.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, up)
	assert.Len(t, down, len(up))
}

func TestRunMigrationsRequiresHandle(t *testing.T) {
	_, err := RunMigrations(nil, zap.NewNop())
	assert.Error(t, err)
}

func TestLatestVersionMatchesEmbeddedFiles(t *testing.T) {
	version, err := LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestApplySQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Apply(conn, zap.NewNop()))
	assert.True(t, conn.Migrator().HasTable(&domain.CredentialState{}))
	assert.True(t, conn.Migrator().HasIndex(&domain.CredentialState{}, "ux_onboarding_credentials_key_env"))
}
