package export

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/tracing"
)

const (
	DefaultPerPage = 500
	MaxPerPage     = 5000
)

type exportService struct {
	reputation interfaces.ReputationRepository
	now        func() time.Time
}

func NewExportService(reputation interfaces.ReputationRepository) interfaces.ExportService {
	return &exportService{
		reputation: reputation,
		now:        time.Now,
	}
}

// FirewallFeed renders the firewall-consumable slice of the blacklist. Expiry is
// applied in the query itself, so an entry whose removal date passed five minutes
// ago is gone from the export even before any sweep has flipped its stored flag.
func (s *exportService) FirewallFeed(ctx context.Context, page, perPage int) (*interfaces.FirewallExport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ExportService.FirewallFeed")
	defer span.Finish()
	tracing.TagComponentService(span)

	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	span.SetTag("page", page)
	span.SetTag("perPage", perPage)

	entries, total, err := s.reputation.ListEffectiveActive(ctx, s.now(), perPage, (page-1)*perPage)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	feed := &interfaces.FirewallExport{
		Entries: make([]interfaces.FirewallEntry, 0, len(entries)),
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}
	for _, entry := range entries {
		feed.Entries = append(feed.Entries, interfaces.FirewallEntry{
			IP:            entry.IP,
			Reason:        entry.Reason,
			DetectionDate: entry.DetectedAt,
			RemovalDate:   entry.RemovalAt,
			Source:        entry.Source,
		})
	}

	return feed, nil
}
