package vault

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/enum"
	er "github.com/threatgate/threatgate/internal/errors"
	"github.com/threatgate/threatgate/internal/logger"
	"github.com/threatgate/threatgate/internal/models"
	"github.com/threatgate/threatgate/internal/tracing"
	"github.com/threatgate/threatgate/internal/utils"
)

const redactedPlaceholder = "[redacted]"

type vaultService struct {
	credentials interfaces.CredentialRepository
	audits      interfaces.CredentialAuditRepository
	cipher      *Cipher
	log         logger.Logger
}

func NewVaultService(
	credentials interfaces.CredentialRepository,
	audits interfaces.CredentialAuditRepository,
	cipher *Cipher,
	log logger.Logger,
) interfaces.VaultService {
	return &vaultService{
		credentials: credentials,
		audits:      audits,
		cipher:      cipher,
		log:         log,
	}
}

func (s *vaultService) Get(ctx context.Context, source string) (*models.Credential, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "VaultService.Get")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagSource(span, source)

	credential, err := s.credentials.GetBySource(ctx, source)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if credential == nil {
		return nil, er.ErrCredentialNotFound
	}

	return credential, nil
}

// DecryptSecret is the only path that produces a plaintext secret. A decryption
// failure is fatal for this credential alone; callers skip the source and move on.
func (s *vaultService) DecryptSecret(ctx context.Context, credential *models.Credential) (string, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "VaultService.DecryptSecret")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagSource(span, credential.Source)

	plain, err := s.cipher.Decrypt(credential.SecretEnc)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Secret decryption failed for source %s: %v", credential.Source, err)
		return "", errors.Wrap(er.ErrSecretDecrypt, err.Error())
	}

	return plain, nil
}

func (s *vaultService) Upsert(ctx context.Context, source string, fields interfaces.CredentialFields) (*models.Credential, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "VaultService.Upsert")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagSource(span, source)

	existing, err := s.credentials.GetBySource(ctx, source)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if existing == nil {
		return s.create(ctx, source, fields)
	}
	return s.update(ctx, existing, fields)
}

func (s *vaultService) create(ctx context.Context, source string, fields interfaces.CredentialFields) (*models.Credential, error) {
	now := time.Now()
	credential := &models.Credential{
		Source:          source,
		Kind:            utils.GetOrDefault(fields.Kind, enum.SourceGeneric),
		Username:        utils.GetOrDefault(fields.Username, ""),
		Endpoint:        utils.GetOrDefault(fields.Endpoint, ""),
		Enabled:         utils.GetOrDefault(fields.Enabled, true),
		IntervalSeconds: utils.GetOrDefault(fields.IntervalSeconds, 3600),
		ExpiresAt:       fields.ExpiresAt,
	}

	changes := models.JSONMap{
		"source":          credential.Source,
		"kind":            credential.Kind.String(),
		"username":        credential.Username,
		"endpoint":        credential.Endpoint,
		"enabled":         credential.Enabled,
		"intervalSeconds": credential.IntervalSeconds,
	}

	if fields.Secret != nil {
		enc, err := s.cipher.Encrypt(*fields.Secret)
		if err != nil {
			return nil, errors.Wrap(err, "encrypt secret")
		}
		credential.SecretEnc = enc
		credential.SecretRotatedAt = &now
		changes["secret"] = redactedPlaceholder
	}

	if err := s.credentials.Save(ctx, credential); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, source, changes)
	return credential, nil
}

func (s *vaultService) update(ctx context.Context, credential *models.Credential, fields interfaces.CredentialFields) (*models.Credential, error) {
	now := time.Now()
	changes := models.JSONMap{}

	if fields.Kind != nil && *fields.Kind != credential.Kind {
		changes["kind"] = map[string]string{"from": credential.Kind.String(), "to": fields.Kind.String()}
		credential.Kind = *fields.Kind
	}
	if fields.Username != nil && *fields.Username != credential.Username {
		changes["username"] = map[string]string{"from": credential.Username, "to": *fields.Username}
		credential.Username = *fields.Username
	}
	if fields.Endpoint != nil && *fields.Endpoint != credential.Endpoint {
		changes["endpoint"] = map[string]string{"from": credential.Endpoint, "to": *fields.Endpoint}
		credential.Endpoint = *fields.Endpoint
	}
	if fields.Enabled != nil && *fields.Enabled != credential.Enabled {
		changes["enabled"] = map[string]bool{"from": credential.Enabled, "to": *fields.Enabled}
		credential.Enabled = *fields.Enabled
	}
	if fields.IntervalSeconds != nil && *fields.IntervalSeconds != credential.IntervalSeconds {
		changes["intervalSeconds"] = map[string]int{"from": credential.IntervalSeconds, "to": *fields.IntervalSeconds}
		credential.IntervalSeconds = *fields.IntervalSeconds
	}
	if fields.ExpiresAt != nil {
		changes["expiresAt"] = fields.ExpiresAt.Format(time.RFC3339)
		credential.ExpiresAt = fields.ExpiresAt
	}
	if fields.Secret != nil {
		enc, err := s.cipher.Encrypt(*fields.Secret)
		if err != nil {
			return nil, errors.Wrap(err, "encrypt secret")
		}
		credential.SecretEnc = enc
		credential.SecretRotatedAt = &now
		changes["secret"] = redactedPlaceholder
	}

	if len(changes) == 0 {
		return credential, nil
	}

	if err := s.credentials.Update(ctx, credential); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, credential.Source, changes)
	return credential, nil
}

// RecordRunOutcome updates last-run bookkeeping and the failure streak. Success
// resets the streak, failure extends it.
func (s *vaultService) RecordRunOutcome(ctx context.Context, source string, success bool, ts time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "VaultService.RecordRunOutcome")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagSource(span, source)

	credential, err := s.credentials.GetBySource(ctx, source)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if credential == nil {
		return er.ErrCredentialNotFound
	}

	failures := 0
	if !success {
		failures = credential.ConsecutiveFailures + 1
	}

	if err := s.credentials.UpdateRunOutcome(ctx, source, success, ts, failures); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	s.appendAudit(ctx, source, models.JSONMap{
		"lastRunSuccess":      success,
		"consecutiveFailures": failures,
	})
	return nil
}

// ListExpiring returns credentials whose secret has not been rotated within the
// threshold, for operational alerting.
func (s *vaultService) ListExpiring(ctx context.Context, daysThreshold int) ([]*models.Credential, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "VaultService.ListExpiring")
	defer span.Finish()
	tracing.TagComponentService(span)

	cutoff := time.Now().AddDate(0, 0, -daysThreshold)
	return s.credentials.GetRotatedBefore(ctx, cutoff)
}

func (s *vaultService) ListAll(ctx context.Context) ([]*models.Credential, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "VaultService.ListAll")
	defer span.Finish()
	tracing.TagComponentService(span)

	return s.credentials.GetAll(ctx)
}

func (s *vaultService) ListEnabled(ctx context.Context) ([]*models.Credential, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "VaultService.ListEnabled")
	defer span.Finish()
	tracing.TagComponentService(span)

	return s.credentials.GetEnabled(ctx)
}

func (s *vaultService) AuditTrail(ctx context.Context, source string, limit, offset int) ([]*models.CredentialAudit, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "VaultService.AuditTrail")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagSource(span, source)

	return s.audits.ListBySource(ctx, source, limit, offset)
}

// appendAudit never fails the caller: the mutation already committed and a lost
// audit row is logged loudly instead of rolling back collection state.
func (s *vaultService) appendAudit(ctx context.Context, source string, changes models.JSONMap) {
	audit := &models.CredentialAudit{
		Source:    source,
		Actor:     utils.GetActorFromContext(ctx),
		Changes:   changes,
		CreatedAt: time.Now(),
	}
	if err := s.audits.Append(ctx, audit); err != nil {
		s.log.Errorf("Failed to append credential audit for source %s: %v", source, err)
	}
}
