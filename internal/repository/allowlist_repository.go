package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/models"
	"github.com/threatgate/threatgate/internal/tracing"
)

type allowlistRepository struct {
	db *gorm.DB
}

func NewAllowlistRepository(db *gorm.DB) interfaces.AllowlistRepository {
	return &allowlistRepository{db: db}
}

func (r *allowlistRepository) GetByIP(ctx context.Context, ip string) (*models.AllowlistEntry, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "allowlistRepository.GetByIP")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagIP(span, ip)

	var entry models.AllowlistEntry
	result := r.db.WithContext(ctx).
		Where("ip = ?", ip).
		First(&entry)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get allowlist entry: %w", result.Error)
	}

	return &entry, nil
}

func (r *allowlistRepository) List(ctx context.Context, limit, offset int) ([]*models.AllowlistEntry, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "allowlistRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.AllowlistEntry{}).Count(&total).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, fmt.Errorf("failed to count allowlist entries: %w", err)
	}

	var entries []*models.AllowlistEntry
	if err := r.db.WithContext(ctx).
		Order("ip asc").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, fmt.Errorf("failed to list allowlist entries: %w", err)
	}

	return entries, total, nil
}

func (r *allowlistRepository) Save(ctx context.Context, entry *models.AllowlistEntry) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "allowlistRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagIP(span, entry.IP)

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to save allowlist entry: %w", err)
	}

	return nil
}

func (r *allowlistRepository) DeleteByIP(ctx context.Context, ip string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "allowlistRepository.DeleteByIP")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagIP(span, ip)

	result := r.db.WithContext(ctx).
		Where("ip = ?", ip).
		Delete(&models.AllowlistEntry{})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete allowlist entry: %w", result.Error)
	}

	return nil
}
