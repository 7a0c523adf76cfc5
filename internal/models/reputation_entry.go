package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/threatgate/threatgate/internal/utils"
)

// ReputationEntry is one IP flagged by one source. The (ip, source) pair is unique so
// the same IP can be corroborated by multiple sources without colliding. Entries are
// deactivated, never deleted.
type ReputationEntry struct {
	ID         string         `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	IP         string         `gorm:"column:ip;type:varchar(45);uniqueIndex:idx_reputation_ip_source;index;not null" json:"ip"`
	Source     string         `gorm:"column:source;type:varchar(50);uniqueIndex:idx_reputation_ip_source;not null" json:"source"`
	Reason     string         `gorm:"column:reason;type:text" json:"reason"`
	Confidence int            `gorm:"column:confidence;not null;default:0" json:"confidence"`
	Categories pq.StringArray `gorm:"column:categories;type:text[]" json:"categories"`
	Country    *string        `gorm:"column:country;type:varchar(2);index" json:"country"`
	// Detection window
	DetectedAt     time.Time  `gorm:"column:detected_at;type:timestamp;not null" json:"detectedAt"`
	RemovalAt      *time.Time `gorm:"column:removal_at;type:timestamp;index" json:"removalAt"`
	Active         bool       `gorm:"column:active;not null;default:true;index" json:"active"`
	DetectionCount int        `gorm:"column:detection_count;not null;default:1" json:"detectionCount"`
	LastSeenAt     time.Time  `gorm:"column:last_seen_at;type:timestamp;not null" json:"lastSeenAt"`
	// Raw source payload kept opaque for audit and replay
	Raw       JSONMap   `gorm:"column:raw;type:jsonb" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (ReputationEntry) TableName() string {
	return "reputation_entries"
}

func (e *ReputationEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("rep", 16)
	}
	return nil
}

// EffectiveActive reports whether the entry should currently block traffic: the
// stored flag alone is not authoritative once the removal date has passed.
func (e *ReputationEntry) EffectiveActive(now time.Time) bool {
	if !e.Active {
		return false
	}
	if e.RemovalAt != nil && !e.RemovalAt.After(now) {
		return false
	}
	return true
}
