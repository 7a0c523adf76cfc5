package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/models"
)

type Repositories struct {
	CredentialRepository      interfaces.CredentialRepository
	CredentialAuditRepository interfaces.CredentialAuditRepository
	CollectionRunRepository   interfaces.CollectionRunRepository
	ReputationRepository      interfaces.ReputationRepository
	AllowlistRepository       interfaces.AllowlistRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		CredentialRepository:      NewCredentialRepository(db),
		CredentialAuditRepository: NewCredentialAuditRepository(db),
		CollectionRunRepository:   NewCollectionRunRepository(db),
		ReputationRepository:      NewReputationRepository(db),
		AllowlistRepository:       NewAllowlistRepository(db),
	}
}

func MigrateDB(dbMaxIdleConn, dbMaxConn, dbConnMaxLifetime int, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.Credential{},
		&models.CredentialAudit{},
		&models.CollectionRun{},
		&models.ReputationEntry{},
		&models.AllowlistEntry{},
	)

	sqlDB.Close()

	sqlDB, _ = db.DB()
	sqlDB.SetMaxIdleConns(dbMaxIdleConn)
	sqlDB.SetMaxOpenConns(dbMaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConnMaxLifetime) * time.Minute)

	return err
}
