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

type credentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) interfaces.CredentialRepository {
	return &credentialRepository{db: db}
}

// GetBySource retrieves the credential for a source, nil when not configured
func (r *credentialRepository) GetBySource(ctx context.Context, source string) (*models.Credential, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "credentialRepository.GetBySource")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, source)

	var credential models.Credential
	result := r.db.WithContext(ctx).
		Where("source = ?", source).
		First(&credential)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil // source not yet configured
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get credential: %w", result.Error)
	}

	return &credential, nil
}

func (r *credentialRepository) GetAll(ctx context.Context) ([]*models.Credential, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "credentialRepository.GetAll")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var credentials []*models.Credential
	if err := r.db.WithContext(ctx).Order("source asc").Find(&credentials).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	return credentials, nil
}

func (r *credentialRepository) GetEnabled(ctx context.Context) ([]*models.Credential, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "credentialRepository.GetEnabled")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var credentials []*models.Credential
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("source asc").
		Find(&credentials).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list enabled credentials: %w", err)
	}

	return credentials, nil
}

func (r *credentialRepository) Save(ctx context.Context, credential *models.Credential) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "credentialRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, credential.Source)

	if err := r.db.WithContext(ctx).Create(credential).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

func (r *credentialRepository) Update(ctx context.Context, credential *models.Credential) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "credentialRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, credential.Source)

	credential.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(credential).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update credential: %w", err)
	}

	return nil
}

// UpdateRunOutcome refreshes last-run metadata after a collection run without
// touching any other credential field.
func (r *credentialRepository) UpdateRunOutcome(ctx context.Context, source string, success bool, ts time.Time, consecutiveFailures int) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "credentialRepository.UpdateRunOutcome")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagSource(span, source)

	result := r.db.WithContext(ctx).
		Model(&models.Credential{}).
		Where("source = ?", source).
		Updates(map[string]interface{}{
			"last_run_at":          ts,
			"last_run_success":     success,
			"consecutive_failures": consecutiveFailures,
			"updated_at":           time.Now(),
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update run outcome: %w", result.Error)
	}

	return nil
}

func (r *credentialRepository) GetRotatedBefore(ctx context.Context, before time.Time) ([]*models.Credential, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "credentialRepository.GetRotatedBefore")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var credentials []*models.Credential
	if err := r.db.WithContext(ctx).
		Where("secret_rotated_at IS NULL OR secret_rotated_at < ?", before).
		Order("source asc").
		Find(&credentials).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list credentials by rotation age: %w", err)
	}

	return credentials, nil
}
