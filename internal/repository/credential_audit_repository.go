package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/models"
	"github.com/threatgate/threatgate/internal/tracing"
)

type credentialAuditRepository struct {
	db *gorm.DB
}

func NewCredentialAuditRepository(db *gorm.DB) interfaces.CredentialAuditRepository {
	return &credentialAuditRepository{db: db}
}

// Append writes one audit row. The table is append-only; there is no update or
// delete path on purpose.
func (r *credentialAuditRepository) Append(ctx context.Context, audit *models.CredentialAudit) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "credentialAuditRepository.Append")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, audit.Source)

	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}

	if err := r.db.WithContext(ctx).Create(audit).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to append credential audit: %w", err)
	}

	return nil
}

func (r *credentialAuditRepository) ListBySource(ctx context.Context, source string, limit, offset int) ([]*models.CredentialAudit, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "credentialAuditRepository.ListBySource")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, source)

	var audits []*models.CredentialAudit
	if err := r.db.WithContext(ctx).
		Where("source = ?", source).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&audits).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list credential audits: %w", err)
	}

	return audits, nil
}
