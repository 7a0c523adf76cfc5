package decision

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/enum"
	"github.com/threatgate/threatgate/internal/logger"
	"github.com/threatgate/threatgate/internal/models"
	"github.com/threatgate/threatgate/internal/tracing"
)

type decisionService struct {
	allowlist  interfaces.AllowlistRepository
	reputation interfaces.ReputationRepository
	cache      *decisionCache
	log        logger.Logger
	now        func() time.Time
}

// NewDecisionService builds the access-decision engine. redisURL may be empty, in
// which case every decision is computed from the store directly.
func NewDecisionService(
	allowlist interfaces.AllowlistRepository,
	reputation interfaces.ReputationRepository,
	redisURL string,
	log logger.Logger,
) (interfaces.DecisionService, error) {
	cache, err := newDecisionCache(redisURL, log)
	if err != nil {
		return nil, err
	}

	return &decisionService{
		allowlist:  allowlist,
		reputation: reputation,
		cache:      cache,
		log:        log,
		now:        time.Now,
	}, nil
}

// Decide answers whether the IP is currently blocked. The allow-list wins
// unconditionally; otherwise the highest-confidence effectively-active reputation
// entry decides. Decisions are computed from current rows, never from collection
// state, so a failed ingestion run never changes the answer for unrelated IPs.
func (s *decisionService) Decide(ctx context.Context, ip string) (*interfaces.Decision, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "DecisionService.Decide")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagIP(span, ip)

	if cached := s.cache.get(ctx, ip); cached != nil {
		span.SetTag("cache.hit", true)
		return cached, nil
	}

	allowed, err := s.allowlist.GetByIP(ctx, ip)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if allowed != nil {
		decision := &interfaces.Decision{
			IP:      ip,
			Blocked: false,
			Reason:  enum.DecisionWhitelist,
		}
		s.cache.set(ctx, decision)
		return decision, nil
	}

	entries, err := s.reputation.GetByIP(ctx, ip)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	match := s.pickHighestConfidence(entries)
	if match == nil {
		decision := &interfaces.Decision{
			IP:      ip,
			Blocked: false,
			Reason:  enum.DecisionNone,
		}
		s.cache.set(ctx, decision)
		return decision, nil
	}

	decision := &interfaces.Decision{
		IP:      ip,
		Blocked: true,
		Reason:  enum.DecisionBlacklist,
		Entry:   match,
	}
	s.cache.set(ctx, decision)
	return decision, nil
}

func (s *decisionService) pickHighestConfidence(entries []*models.ReputationEntry) *models.ReputationEntry {
	now := s.now()
	var match *models.ReputationEntry
	for _, entry := range entries {
		if !entry.EffectiveActive(now) {
			continue
		}
		if match == nil || entry.Confidence > match.Confidence {
			match = entry
		}
	}
	return match
}

func (s *decisionService) Invalidate(ctx context.Context) {
	s.cache.invalidate(ctx)
}
