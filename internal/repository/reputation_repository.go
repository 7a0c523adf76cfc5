package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/models"
	"github.com/threatgate/threatgate/internal/tracing"
)

// effectiveActiveCond is the read-time expiry rule: the stored flag alone never
// decides, the removal date is always consulted.
const effectiveActiveCond = "active = ? AND (removal_at IS NULL OR removal_at > ?)"

type reputationRepository struct {
	db *gorm.DB
}

func NewReputationRepository(db *gorm.DB) interfaces.ReputationRepository {
	return &reputationRepository{db: db}
}

// Upsert writes one record keyed by (ip, source). A re-detection refreshes
// confidence, reason and last-seen and bumps the detection counter, but the original
// detection date is preserved.
func (r *reputationRepository) Upsert(ctx context.Context, entry *models.ReputationEntry) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reputationRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, entry.Source)
	tracing.TagIP(span, entry.IP)

	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ReputationEntry
		result := tx.Where("ip = ? AND source = ?", entry.IP, entry.Source).First(&existing)

		if result.Error != nil {
			if result.Error != gorm.ErrRecordNotFound {
				return result.Error
			}
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
			created = true
			return nil
		}

		if err := tx.Model(&models.ReputationEntry{}).
			Where("ip = ? AND source = ?", entry.IP, entry.Source).
			Updates(mergeUpdates(entry, time.Now())).Error; err != nil {
			return err
		}

		entry.ID = existing.ID
		entry.DetectedAt = existing.DetectedAt
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return false, fmt.Errorf("failed to upsert reputation entry: %w", err)
	}

	return created, nil
}

// mergeUpdates is the column set applied when (ip, source) already exists: a
// re-detection refreshes the signal and bumps the counter. detected_at is not in the
// set, the original detection date survives every re-ingestion. Country and
// categories only overwrite when the new record carries them.
func mergeUpdates(entry *models.ReputationEntry, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"confidence":      entry.Confidence,
		"reason":          entry.Reason,
		"last_seen_at":    entry.LastSeenAt,
		"detection_count": gorm.Expr("detection_count + 1"),
		"removal_at":      entry.RemovalAt,
		"active":          true,
		"raw":             entry.Raw,
		"updated_at":      now,
	}
	if entry.Country != nil {
		updates["country"] = entry.Country
	}
	if len(entry.Categories) > 0 {
		updates["categories"] = entry.Categories
	}
	return updates
}

func (r *reputationRepository) GetByIP(ctx context.Context, ip string) ([]*models.ReputationEntry, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reputationRepository.GetByIP")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagIP(span, ip)

	var entries []*models.ReputationEntry
	if err := r.db.WithContext(ctx).
		Where("ip = ?", ip).
		Order("confidence desc").
		Find(&entries).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get reputation entries: %w", err)
	}

	return entries, nil
}

func (r *reputationRepository) GetByIPAndSource(ctx context.Context, ip, source string) (*models.ReputationEntry, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reputationRepository.GetByIPAndSource")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, source)
	tracing.TagIP(span, ip)

	var entry models.ReputationEntry
	result := r.db.WithContext(ctx).
		Where("ip = ? AND source = ?", ip, source).
		First(&entry)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get reputation entry: %w", result.Error)
	}

	return &entry, nil
}

// Deactivate flips the stored flag; rows are never deleted so history survives.
func (r *reputationRepository) Deactivate(ctx context.Context, ip, source string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reputationRepository.Deactivate")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, source)
	tracing.TagIP(span, ip)

	result := r.db.WithContext(ctx).
		Model(&models.ReputationEntry{}).
		Where("ip = ? AND source = ?", ip, source).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to deactivate reputation entry: %w", result.Error)
	}

	return nil
}

// DeactivateExpired physically flips flags whose removal date has passed. This is an
// optimization for reporting queries only; reads never depend on it having run.
func (r *reputationRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reputationRepository.DeactivateExpired")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Model(&models.ReputationEntry{}).
		Where("active = ? AND removal_at IS NOT NULL AND removal_at <= ?", true, now).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, fmt.Errorf("failed to deactivate expired entries: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// ListEffectiveActive returns the firewall-consumable slice: effectively active,
// not whitelisted, ordered by (ip, id) so repeated polling is stable.
func (r *reputationRepository) ListEffectiveActive(ctx context.Context, now time.Time, limit, offset int) ([]*models.ReputationEntry, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reputationRepository.ListEffectiveActive")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	query := r.db.WithContext(ctx).
		Model(&models.ReputationEntry{}).
		Where(effectiveActiveCond, true, now).
		Where("ip NOT IN (?)", r.db.Model(&models.AllowlistEntry{}).Select("ip"))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, fmt.Errorf("failed to count active entries: %w", err)
	}

	var entries []*models.ReputationEntry
	if err := query.
		Order("ip asc, id asc").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, fmt.Errorf("failed to list active entries: %w", err)
	}

	return entries, total, nil
}

func (r *reputationRepository) CountBySource(ctx context.Context) (map[string]int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reputationRepository.CountBySource")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	type row struct {
		Source string
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.ReputationEntry{}).
		Select("source, count(*) as count").
		Group("source").
		Scan(&rows).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to count by source: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Source] = r.Count
	}
	return counts, nil
}

func (r *reputationRepository) CountByCountry(ctx context.Context) (map[string]int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reputationRepository.CountByCountry")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	type row struct {
		Country *string
		Count   int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.ReputationEntry{}).
		Select("country, count(*) as count").
		Group("country").
		Scan(&rows).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to count by country: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		key := "unknown"
		if r.Country != nil && *r.Country != "" {
			key = *r.Country
		}
		counts[key] += r.Count
	}
	return counts, nil
}

func (r *reputationRepository) CountByActivity(ctx context.Context, now time.Time) (int64, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reputationRepository.CountByActivity")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var total, active int64
	if err := r.db.WithContext(ctx).
		Model(&models.ReputationEntry{}).
		Count(&total).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, 0, fmt.Errorf("failed to count entries: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Model(&models.ReputationEntry{}).
		Where(effectiveActiveCond, true, now).
		Count(&active).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, 0, fmt.Errorf("failed to count active entries: %w", err)
	}

	return active, total - active, nil
}
