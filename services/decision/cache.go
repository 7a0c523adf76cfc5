package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/logger"
)

const (
	cacheGenKey = "threatgate:decision:gen"
	// cacheTTL also bounds staleness from pure time-based expiry: nothing bumps the
	// generation when an entry's removal date passes, so a cached block may outlive
	// removal_at by up to this long.
	cacheTTL = 30 * time.Second
)

// decisionCache is a read-through cache in front of the decision engine. Keys embed
// a generation counter; bumping the counter on any list write orphans every cached
// decision at once, and the short TTL reclaims the orphans.
type decisionCache struct {
	client *redis.Client
	log    logger.Logger
}

func newDecisionCache(redisURL string, log logger.Logger) (*decisionCache, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &decisionCache{client: redis.NewClient(opts), log: log}, nil
}

func (c *decisionCache) get(ctx context.Context, ip string) *interfaces.Decision {
	if c == nil {
		return nil
	}

	key, err := c.key(ctx, ip)
	if err != nil {
		return nil
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}

	var decision interfaces.Decision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return nil
	}
	return &decision
}

func (c *decisionCache) set(ctx context.Context, decision *interfaces.Decision) {
	if c == nil {
		return
	}

	key, err := c.key(ctx, decision.IP)
	if err != nil {
		return
	}

	raw, err := json.Marshal(decision)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		c.log.Warnf("Decision cache set failed: %v", err)
	}
}

func (c *decisionCache) invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Incr(ctx, cacheGenKey).Err(); err != nil {
		c.log.Warnf("Decision cache invalidation failed: %v", err)
	}
}

func (c *decisionCache) key(ctx context.Context, ip string) (string, error) {
	gen, err := c.client.Get(ctx, cacheGenKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("threatgate:decision:%d:%s", gen, ip), nil
}
