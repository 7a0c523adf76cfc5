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

type collectionRunRepository struct {
	db *gorm.DB
}

func NewCollectionRunRepository(db *gorm.DB) interfaces.CollectionRunRepository {
	return &collectionRunRepository{db: db}
}

func (r *collectionRunRepository) Create(ctx context.Context, run *models.CollectionRun) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "collectionRunRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, run.Source)

	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create collection run: %w", err)
	}

	return nil
}

// List returns run history newest first, optionally filtered by source.
func (r *collectionRunRepository) List(ctx context.Context, source string, limit, offset int) ([]*models.CollectionRun, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "collectionRunRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, source)

	query := r.db.WithContext(ctx).Model(&models.CollectionRun{})
	if source != "" {
		query = query.Where("source = ?", source)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, fmt.Errorf("failed to count collection runs: %w", err)
	}

	var runs []*models.CollectionRun
	if err := query.
		Order("started_at desc").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, fmt.Errorf("failed to list collection runs: %w", err)
	}

	return runs, total, nil
}

func (r *collectionRunRepository) GetLastBySource(ctx context.Context, source string) (*models.CollectionRun, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "collectionRunRepository.GetLastBySource")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, source)

	var run models.CollectionRun
	result := r.db.WithContext(ctx).
		Where("source = ?", source).
		Order("started_at desc").
		First(&run)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get last collection run: %w", result.Error)
	}

	return &run, nil
}
