package dto

import "time"

// CollectionRunCompleted is published after every scheduler run, successful or not.
type CollectionRunCompleted struct {
	RunID        string    `json:"runId"`
	Source       string    `json:"source"`
	Success      bool      `json:"success"`
	StartedAt    time.Time `json:"startedAt"`
	DurationMS   int64     `json:"durationMs"`
	ItemsTotal   int       `json:"itemsTotal"`
	ItemsNew     int       `json:"itemsNew"`
	ItemsUpdated int       `json:"itemsUpdated"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// ListChanged is published whenever either the reputation store or the allow-list
// mutates. The decision cache invalidates itself off this notification.
type ListChanged struct {
	List      string    `json:"list"` // "reputation" or "allowlist"
	Source    string    `json:"source,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}
