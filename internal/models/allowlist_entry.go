package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/threatgate/threatgate/internal/enum"
	"github.com/threatgate/threatgate/internal/utils"
)

// AllowlistEntry is a manually curated override. Its mere presence wins over any
// reputation signal for the same IP, whatever the confidence.
type AllowlistEntry struct {
	ID        string               `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	IP        string               `gorm:"column:ip;type:varchar(45);uniqueIndex;not null" json:"ip"`
	Reason    string               `gorm:"column:reason;type:text" json:"reason"`
	Origin    enum.AllowlistOrigin `gorm:"column:origin;type:varchar(20);not null;default:'manual'" json:"origin"`
	Country   *string              `gorm:"column:country;type:varchar(2)" json:"country"`
	CreatedAt time.Time            `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time            `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (AllowlistEntry) TableName() string {
	return "allowlist_entries"
}

func (e *AllowlistEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("allow", 16)
	}
	return nil
}
