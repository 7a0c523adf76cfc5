package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReputationEntry_EffectiveActive(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		active   bool
		removal  *time.Time
		expected bool
	}{
		{"active without removal date", true, nil, true},
		{"active with future removal", true, &future, true},
		{"active but removal passed", true, &past, false},
		{"active with removal exactly now", true, &now, false},
		{"inactive without removal date", false, nil, false},
		{"inactive with future removal", false, &future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &ReputationEntry{Active: tt.active, RemovalAt: tt.removal}
			assert.Equal(t, tt.expected, entry.EffectiveActive(now))
		})
	}
}
