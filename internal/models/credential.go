package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/threatgate/threatgate/internal/enum"
	"github.com/threatgate/threatgate/internal/utils"
)

// Credential holds the collection configuration and encrypted portal secret for one
// threat-intel source. There is exactly one row per source; rows are disabled, never
// deleted, so the audit trail stays intact.
type Credential struct {
	ID     string          `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Source string          `gorm:"column:source;type:varchar(50);uniqueIndex;not null" json:"source"`
	Kind   enum.SourceKind `gorm:"column:kind;type:varchar(50);not null" json:"kind"`
	// Portal configuration
	Username  string `gorm:"column:username;type:varchar(255);not null" json:"username"`
	SecretEnc string `gorm:"column:secret_enc;type:text;not null" json:"-"`
	Endpoint  string `gorm:"column:endpoint;type:varchar(255);not null" json:"endpoint"`
	// Collection configuration
	Enabled         bool `gorm:"column:enabled;not null;default:true" json:"enabled"`
	IntervalSeconds int  `gorm:"column:interval_seconds;not null;default:3600" json:"intervalSeconds"`
	// Run bookkeeping, written only by the scheduler
	LastRunAt           *time.Time `gorm:"column:last_run_at;type:timestamp" json:"lastRunAt"`
	LastRunSuccess      *bool      `gorm:"column:last_run_success" json:"lastRunSuccess"`
	ConsecutiveFailures int        `gorm:"column:consecutive_failures;not null;default:0" json:"consecutiveFailures"`
	// Rotation metadata
	SecretRotatedAt *time.Time `gorm:"column:secret_rotated_at;type:timestamp" json:"secretRotatedAt"`
	ExpiresAt       *time.Time `gorm:"column:expires_at;type:timestamp" json:"expiresAt"`
	// Standard timestamps
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

// TableName sets the table name
func (Credential) TableName() string {
	return "credentials"
}

func (c *Credential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = utils.GenerateNanoIDWithPrefix("cred", 16)
	}
	return nil
}
