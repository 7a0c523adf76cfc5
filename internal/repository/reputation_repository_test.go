package repository

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/threatgate/threatgate/internal/models"
	"github.com/threatgate/threatgate/internal/utils"
)

func TestMergeUpdates_RefreshesSignalAndBumpsCounter(t *testing.T) {
	// Arrange: a re-detection of an already-known (ip, source)
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	removal := now.AddDate(0, 0, 30)
	entry := &models.ReputationEntry{
		IP:         "203.0.113.7",
		Source:     "intel-portal",
		Reason:     "botnet c2",
		Confidence: 90,
		DetectedAt: now.AddDate(0, -1, 0),
		RemovalAt:  &removal,
		LastSeenAt: now,
		Raw:        models.JSONMap{"row": "raw"},
	}

	// Act
	updates := mergeUpdates(entry, now)

	// Assert
	assert.Equal(t, 90, updates["confidence"])
	assert.Equal(t, "botnet c2", updates["reason"])
	assert.Equal(t, now, updates["last_seen_at"])
	assert.Equal(t, &removal, updates["removal_at"])
	assert.Equal(t, true, updates["active"])
	assert.Equal(t, entry.Raw, updates["raw"])
	assert.Equal(t, now, updates["updated_at"])
	assert.Equal(t, gorm.Expr("detection_count + 1"), updates["detection_count"])
}

func TestMergeUpdates_PreservesDetectionDate(t *testing.T) {
	// The original detection date must survive every re-ingestion, so the merge set
	// never touches it, nor the row identity
	entry := &models.ReputationEntry{
		IP:         "203.0.113.7",
		Source:     "intel-portal",
		DetectedAt: utils.Now(),
	}

	updates := mergeUpdates(entry, utils.Now())

	assert.NotContains(t, updates, "detected_at")
	assert.NotContains(t, updates, "id")
	assert.NotContains(t, updates, "ip")
	assert.NotContains(t, updates, "source")
	assert.NotContains(t, updates, "created_at")
}

func TestMergeUpdates_OptionalFieldsOnlyOverwriteWhenPresent(t *testing.T) {
	// A record without country or categories must not blank out enrichment from an
	// earlier ingestion
	bare := &models.ReputationEntry{IP: "203.0.113.7", Source: "intel-portal"}
	updates := mergeUpdates(bare, utils.Now())
	assert.NotContains(t, updates, "country")
	assert.NotContains(t, updates, "categories")

	country := "DE"
	enriched := &models.ReputationEntry{
		IP:         "203.0.113.7",
		Source:     "intel-portal",
		Country:    &country,
		Categories: pq.StringArray{"scanner"},
	}
	updates = mergeUpdates(enriched, utils.Now())
	assert.Equal(t, &country, updates["country"])
	assert.Equal(t, pq.StringArray{"scanner"}, updates["categories"])
}
