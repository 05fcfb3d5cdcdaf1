package migrations

import (
	"gorm.io/gorm"

	"github.com/transcodarr/transcodarr/internal/models"
)

// AllMigrations returns all registered migrations in order.
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
	}
}

// migration001Schema creates the job plane tables: requests, jobs, parts,
// and workers.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "create requests, jobs, parts, and workers tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Request{},
				&models.Job{},
				&models.Part{},
				&models.Worker{},
			)
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.Worker{},
				&models.Part{},
				&models.Job{},
				&models.Request{},
			)
		},
	}
}
