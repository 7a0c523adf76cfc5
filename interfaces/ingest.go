package interfaces

import (
	"context"

	"github.com/threatgate/threatgate/internal/models"
)

// BatchSummary is what the pipeline reports back after one collection batch; the
// scheduler copies it onto the CollectionRun record.
type BatchSummary struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	Updated  int `json:"updated"`
	Rejected int `json:"rejected"`
}

func (s *BatchSummary) Add(other BatchSummary) {
	s.Total += other.Total
	s.New += other.New
	s.Updated += other.Updated
	s.Rejected += other.Rejected
}

type IngestService interface {
	// IngestBatch validates and upserts normalized records. Record-level failures are
	// skipped and counted; only infrastructure failures return an error.
	IngestBatch(ctx context.Context, source string, entries []*models.ReputationEntry) (BatchSummary, error)
}
