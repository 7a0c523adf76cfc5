package ingest

import (
	"context"
	"net"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/threatgate/threatgate/interfaces"
	er "github.com/threatgate/threatgate/internal/errors"
	"github.com/threatgate/threatgate/internal/geo"
	"github.com/threatgate/threatgate/internal/logger"
	"github.com/threatgate/threatgate/internal/models"
	"github.com/threatgate/threatgate/internal/tracing"
)

type ingestService struct {
	reputation interfaces.ReputationRepository
	geo        *geo.Resolver
	log        logger.Logger
}

func NewIngestService(
	reputation interfaces.ReputationRepository,
	geoResolver *geo.Resolver,
	log logger.Logger,
) interfaces.IngestService {
	return &ingestService{
		reputation: reputation,
		geo:        geoResolver,
		log:        log,
	}
}

// IngestBatch validates and upserts one batch of normalized records. Record-level
// problems are counted and skipped; only infrastructure failures abort the batch.
func (s *ingestService) IngestBatch(ctx context.Context, source string, entries []*models.ReputationEntry) (interfaces.BatchSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IngestService.IngestBatch")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagSource(span, source)
	span.SetTag("batch.size", len(entries))

	summary := interfaces.BatchSummary{Total: len(entries)}

	for _, entry := range entries {
		if err := s.validate(entry); err != nil {
			summary.Rejected++
			s.log.Warnf("Record for source %s rejected: %v", source, err)
			span.LogFields(tracingLog.String("rejected", err.Error()))
			continue
		}

		s.enrich(entry)

		created, err := s.reputation.Upsert(ctx, entry)
		if err != nil {
			// a failed write for one record must not sink the rest of the batch
			summary.Rejected++
			consistencyErr := er.NewDataConsistencyError(err)
			tracing.TraceErr(span, consistencyErr)
			s.log.Errorf("Upsert failed for %s/%s: %v", source, entry.IP, err)
			continue
		}

		if created {
			summary.New++
		} else {
			summary.Updated++
		}
	}

	span.LogFields(
		tracingLog.Int("batch.new", summary.New),
		tracingLog.Int("batch.updated", summary.Updated),
		tracingLog.Int("batch.rejected", summary.Rejected),
	)
	return summary, nil
}

func (s *ingestService) validate(entry *models.ReputationEntry) error {
	if net.ParseIP(entry.IP) == nil {
		return er.NewValidationError("ip", "not a valid IP address: "+entry.IP)
	}
	if entry.RemovalAt != nil && entry.RemovalAt.Before(entry.DetectedAt) {
		return er.NewValidationError("removalDate", "removal date precedes detection date for "+entry.IP)
	}
	if entry.Confidence < 0 {
		entry.Confidence = 0
	}
	if entry.Confidence > 100 {
		entry.Confidence = 100
	}
	return nil
}

func (s *ingestService) enrich(entry *models.ReputationEntry) {
	if entry.Country != nil && *entry.Country != "" {
		return
	}
	entry.Country = s.geo.CountryCode(entry.IP)
}
