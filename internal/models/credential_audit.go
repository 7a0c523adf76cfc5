package models

import (
	"time"
)

// CredentialAudit is one append-only entry describing a credential mutation. The
// changes payload is a diff of non-secret fields; secret values are redacted before
// the row is written.
type CredentialAudit struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Source    string    `gorm:"column:source;type:varchar(50);index:idx_credential_audit_source_ts;not null" json:"source"`
	Actor     string    `gorm:"column:actor;type:varchar(255);not null" json:"actor"`
	Changes   JSONMap   `gorm:"column:changes;type:jsonb" json:"changes"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;index:idx_credential_audit_source_ts;default:current_timestamp" json:"createdAt"`
}

func (CredentialAudit) TableName() string {
	return "credential_audits"
}
