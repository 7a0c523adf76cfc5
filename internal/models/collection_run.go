package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/threatgate/threatgate/internal/enum"
	"github.com/threatgate/threatgate/internal/utils"
)

// CollectionRun is the immutable record of one scheduler execution for a source.
type CollectionRun struct {
	ID         string           `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Source     string           `gorm:"column:source;type:varchar(50);index:idx_collection_runs_source_started;not null" json:"source"`
	Trigger    enum.TriggerKind `gorm:"column:trigger_kind;type:varchar(20);not null" json:"trigger"`
	StartedAt  time.Time        `gorm:"column:started_at;type:timestamp;index:idx_collection_runs_source_started;not null" json:"startedAt"`
	DurationMS int64            `gorm:"column:duration_ms;not null" json:"durationMs"`
	Success    bool             `gorm:"column:success;not null" json:"success"`
	// Batch summary from the ingestion pipeline
	ItemsTotal    int `gorm:"column:items_total;not null;default:0" json:"itemsTotal"`
	ItemsNew      int `gorm:"column:items_new;not null;default:0" json:"itemsNew"`
	ItemsUpdated  int `gorm:"column:items_updated;not null;default:0" json:"itemsUpdated"`
	ItemsRejected int `gorm:"column:items_rejected;not null;default:0" json:"itemsRejected"`
	// Failure detail, empty on success
	ErrorMessage string    `gorm:"column:error_message;type:text" json:"errorMessage"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (CollectionRun) TableName() string {
	return "collection_runs"
}

func (r *CollectionRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIDWithPrefix("run", 16)
	}
	return nil
}
