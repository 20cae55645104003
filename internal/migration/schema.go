package migration

import (
	"time"

	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/model"
)

func init() {
	for _, m := range SchemaMigrations() {
		RegisterMigration(m)
	}
}

// SchemaMigrations lists the migrations that build the tenantly schema.
func SchemaMigrations() []*Migration {
	return []*Migration{
		tableMigration("20240601000001", "create_identity_tables", &model.User{}, &model.AuthSession{}, &model.Profile{}),
		tableMigration("20240601000002", "create_property_tables", &model.Property{}, &model.Tenancy{}),
		tableMigration("20240601000003", "create_messaging_tables", &model.Conversation{}, &model.Message{}),
		tableMigration("20240601000004", "create_maintenance_requests", &model.MaintenanceRequest{}),
		tableMigration("20240601000005", "create_applications", &model.Application{}),
	}
}

// tableMigration creates the given tables on Up and drops them in reverse
// order on Down.
func tableMigration(version, name string, models ...interface{}) *Migration {
	createdAt, _ := time.Parse("20060102150405", version)
	return &Migration{
		Version:   version,
		Name:      name,
		CreatedAt: createdAt,
		Models:    models,
		Up: func(db *gorm.DB) error {
			return db.AutoMigrate(models...)
		},
		Down: func(db *gorm.DB) error {
			for i := len(models) - 1; i >= 0; i-- {
				if err := db.Migrator().DropTable(models[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
