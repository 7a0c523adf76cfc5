package dto

import "time"

// UpsertCredentialRequest creates or partially updates one source credential. Nil
// fields leave the stored value untouched; Secret is write-only and never echoed.
type UpsertCredentialRequest struct {
	Kind            *string    `json:"kind" binding:"omitempty,oneof=portal feed generic"`
	Username        *string    `json:"username"`
	Secret          *string    `json:"secret"`
	Endpoint        *string    `json:"endpoint" binding:"omitempty,url"`
	Enabled         *bool      `json:"enabled"`
	IntervalSeconds *int       `json:"intervalSeconds" binding:"omitempty,gt=0"`
	ExpiresAt       *time.Time `json:"expiresAt"`
}

type AddAllowlistRequest struct {
	IP     string `json:"ip" binding:"required,ip"`
	Reason string `json:"reason"`
}
