package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
	"github.com/smallbiznis/egsbridge/pkg/db"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the schema up to date. SQL migrations target postgres; the
// sqlite development database is created from the models.
func Apply(conn *gorm.DB, log *zap.Logger) error {
	if conn.Dialector.Name() == db.TypeSQLite {
		log.Info("auto-migrating sqlite schema")
		return conn.AutoMigrate(&domain.CredentialState{})
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	_, err = RunMigrations(sqlDB, log)
	return err
}
