package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"doccontrol/api/internal/logger"
)

// OpenRedis parses a redis:// URL and verifies the connection.
func OpenRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// Cache is a read-through Redis cache in front of a Gateway. Only live
// results are stored; mock and fallback answers always pass through. Redis
// failures are logged and the call goes to next.
type Cache struct {
	next   Gateway
	client *redis.Client
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

func NewCache(next Gateway, client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{next: next, client: client, ttl: ttl, prefix: "doccontrol:ai:", log: log.With("component", "ai.cache")}
}

func (c *Cache) key(agent Agent, in any) (string, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return c.prefix + string(agent) + ":" + hex.EncodeToString(sum[:]), nil
}

func cached[R any](ctx context.Context, c *Cache, agent Agent, in any,
	call func(context.Context) (R, error),
	meta func(*R) *Meta,
) (R, error) {
	key, err := c.key(agent, in)
	if err != nil {
		return call(ctx)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var hit R
		if uErr := json.Unmarshal(raw, &hit); uErr == nil {
			*meta(&hit) = Meta{Source: SourceCache}
			return hit, nil
		}
		c.log.Warn("discarding unreadable cache entry", "agent", agent, "key", key)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("ai cache read failed", "agent", agent, "error", err)
	}

	out, err := call(ctx)
	if err != nil {
		return out, err
	}
	if meta(&out).Source != SourceLive {
		return out, nil
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return out, nil
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.log.Warn("ai cache write failed", "agent", agent, "error", err)
	}
	return out, nil
}

func (c *Cache) Analyze(ctx context.Context, in AnalysisInput) (AnalysisResult, error) {
	return cached(ctx, c, AgentAnalysis, in,
		func(ctx context.Context) (AnalysisResult, error) { return c.next.Analyze(ctx, in) },
		func(r *AnalysisResult) *Meta { return &r.Meta })
}

func (c *Cache) Restructure(ctx context.Context, in RestructureInput) (RestructureResult, error) {
	return cached(ctx, c, AgentFormatting, in,
		func(ctx context.Context) (RestructureResult, error) { return c.next.Restructure(ctx, in) },
		func(r *RestructureResult) *Meta { return &r.Meta })
}

func (c *Cache) ReviewText(ctx context.Context, in ReviewInput) (ReviewResult, error) {
	return cached(ctx, c, AgentSpelling, in,
		func(ctx context.Context) (ReviewResult, error) { return c.next.ReviewText(ctx, in) },
		func(r *ReviewResult) *Meta { return &r.Meta })
}

func (c *Cache) GenerateChangelog(ctx context.Context, in ChangelogInput) (ChangelogResult, error) {
	return cached(ctx, c, AgentChangelog, in,
		func(ctx context.Context) (ChangelogResult, error) { return c.next.GenerateChangelog(ctx, in) },
		func(r *ChangelogResult) *Meta { return &r.Meta })
}

func (c *Cache) DetectSafety(ctx context.Context, in SafetyInput) (SafetyResult, error) {
	return cached(ctx, c, AgentSafety, in,
		func(ctx context.Context) (SafetyResult, error) { return c.next.DetectSafety(ctx, in) },
		func(r *SafetyResult) *Meta { return &r.Meta })
}

func (c *Cache) ExtractReferences(ctx context.Context, in ExtractInput) (ExtractResult, error) {
	return cached(ctx, c, AgentCrossrefExtract, in,
		func(ctx context.Context) (ExtractResult, error) { return c.next.ExtractReferences(ctx, in) },
		func(r *ExtractResult) *Meta { return &r.Meta })
}

func (c *Cache) ValidateReferences(ctx context.Context, in ValidateInput) (ValidateResult, error) {
	return cached(ctx, c, AgentCrossrefValidate, in,
		func(ctx context.Context) (ValidateResult, error) { return c.next.ValidateReferences(ctx, in) },
		func(r *ValidateResult) *Meta { return &r.Meta })
}
