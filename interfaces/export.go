package interfaces

import (
	"context"
	"time"
)

// FirewallEntry is the shape the firewall consumer polls for.
type FirewallEntry struct {
	IP            string     `json:"ip"`
	Reason        string     `json:"reason"`
	DetectionDate time.Time  `json:"detectionDate"`
	RemovalDate   *time.Time `json:"removalDate,omitempty"`
	Source        string     `json:"source"`
}

type FirewallExport struct {
	Entries []FirewallEntry `json:"entries"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"perPage"`
}

type ExportService interface {
	// FirewallFeed returns the effectively-active, non-whitelisted entries, ordered
	// stably so repeated polling with the same page yields the same slice absent
	// underlying changes.
	FirewallFeed(ctx context.Context, page, perPage int) (*FirewallExport, error)
}
