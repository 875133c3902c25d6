package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mvandenbroeck/legal-ai-gateway/internal/classify"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/provider"
)

// ResponseCache is a Redis-backed cache for PUBLIC-tier completions only.
// Anything above public is never written here: cached text would outlive the
// request, which the mapping-lifetime rule forbids for protected content.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResponseCache(client *redis.Client, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ResponseCache{client: client, ttl: ttl}
}

type cachedCompletion struct {
	Content   string `json:"content"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	TokensIn  int32  `json:"tokens_in"`
	TokensOut int32  `json:"tokens_out"`
}

func (c *ResponseCache) get(ctx context.Context, key string) (*cachedCompletion, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var cached cachedCompletion
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}
	return &cached, true
}

func (c *ResponseCache) set(ctx context.Context, key string, v *cachedCompletion) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

func cacheKey(req Request) string {
	return "llmcache:" + hashText(req.Purpose+"\x00"+req.Model+"\x00"+concatMessages(req.Messages))
}

// cacheLookup consults the cache for a PUBLIC-tier request. On a hit it still
// writes the audit pair so the compliance trail covers served-from-cache
// responses.
func (g *Gateway) cacheLookup(ctx context.Context, tier classify.SensitivityTier, req Request) (*CompletionResponse, bool) {
	if g.cache == nil || tier != classify.TierPublic {
		return nil, false
	}
	cached, ok := g.cache.get(ctx, cacheKey(req))
	if !ok {
		return nil, false
	}

	correlationID := g.logRequest(ctx, req, tier, provider.Config{Name: cached.Provider}, cached.Model, false, req.Messages)
	usage := provider.TokenUsage{InputTokens: cached.TokensIn, OutputTokens: cached.TokensOut}
	g.logResponse(ctx, correlationID, cached.Content, usage, 0, 0)
	g.metrics.ObserveRequest(cached.Provider, tier.String(), "cache_hit")

	return &CompletionResponse{
		Content:                 cached.Content,
		Provider:                cached.Provider,
		Model:                   cached.Model,
		Tier:                    tier,
		TokensIn:                cached.TokensIn,
		TokensOut:               cached.TokensOut,
		CorrelationID:           correlationID,
		HumanValidationRequired: req.RequireHumanValidation,
	}, true
}

// cacheStore is best effort; a cache write failure never fails the request.
func (g *Gateway) cacheStore(ctx context.Context, req Request, v *cachedCompletion) {
	if g.cache == nil {
		return
	}
	if err := g.cache.set(ctx, cacheKey(req), v); err != nil {
		g.logger.Warn("response cache write failed", "error", err.Error())
	}
}
