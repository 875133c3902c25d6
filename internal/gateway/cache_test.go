package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvandenbroeck/legal-ai-gateway/internal/classify"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/provider"
)

func newTestCache(t *testing.T) *ResponseCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewResponseCache(client, time.Minute)
}

func TestCacheServesRepeatedPublicRequests(t *testing.T) {
	inhouse := &stubAdapter{completeFn: func(req provider.Request) (provider.Response, error) {
		return provider.Response{
			Text:  "Vruchtgebruik is een zakelijk recht.",
			Model: req.Model,
			Usage: provider.TokenUsage{InputTokens: 10, OutputTokens: 25},
		}, nil
	}}
	src := &fakeSource{
		configs:  []provider.Config{{Name: "inhouse", TrustTier: provider.TrustDomestic, DefaultModel: "m"}},
		adapters: map[string]*stubAdapter{"inhouse": inhouse},
	}
	cache := newTestCache(t)
	g, recorder := newTestGateway(t, src, func(o *Options) { o.Cache = cache })

	req := Request{
		Messages:    userMessage("Wat is een vruchtgebruik?"),
		Purpose:     "research",
		Sensitivity: tierPtr(classify.TierPublic),
	}

	first, err := g.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, inhouse.callCount())

	second, err := g.Complete(context.Background(), req)
	require.NoError(t, err)

	// Served from cache, not from the provider.
	assert.Equal(t, 1, inhouse.callCount())
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, "inhouse", second.Provider)
	assert.Equal(t, first.TokensOut, second.TokensOut)

	// Cache hits still appear on the audit trail.
	entries := recorder.Entries()
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[1].ResponseHash)
}

func TestCacheKeyVariesWithRequest(t *testing.T) {
	inhouse := &stubAdapter{}
	src := &fakeSource{
		configs:  []provider.Config{{Name: "inhouse", TrustTier: provider.TrustDomestic, DefaultModel: "m"}},
		adapters: map[string]*stubAdapter{"inhouse": inhouse},
	}
	cache := newTestCache(t)
	g, _ := newTestGateway(t, src, func(o *Options) { o.Cache = cache })

	base := Request{
		Messages:    userMessage("Wat is een vruchtgebruik?"),
		Purpose:     "research",
		Sensitivity: tierPtr(classify.TierPublic),
	}
	_, err := g.Complete(context.Background(), base)
	require.NoError(t, err)

	other := base
	other.Messages = userMessage("Wat is een erfpacht?")
	_, err = g.Complete(context.Background(), other)
	require.NoError(t, err)

	assert.Equal(t, 2, inhouse.callCount())
}

func TestCacheNeverStoresProtectedTiers(t *testing.T) {
	inhouse := &stubAdapter{}
	src := &fakeSource{
		configs:  []provider.Config{{Name: "inhouse", TrustTier: provider.TrustDomestic, DefaultModel: "m"}},
		adapters: map[string]*stubAdapter{"inhouse": inhouse},
	}
	cache := newTestCache(t)
	g, _ := newTestGateway(t, src, func(o *Options) { o.Cache = cache })

	req := Request{
		Messages:    userMessage("advies over het dossier van de cliënt"),
		Sensitivity: tierPtr(classify.TierSensitive),
	}

	_, err := g.Complete(context.Background(), req)
	require.NoError(t, err)
	_, err = g.Complete(context.Background(), req)
	require.NoError(t, err)

	// Every protected request goes to the provider.
	assert.Equal(t, 2, inhouse.callCount())
}

func TestCacheMissFallsThrough(t *testing.T) {
	inhouse := &stubAdapter{}
	src := &fakeSource{
		configs:  []provider.Config{{Name: "inhouse", TrustTier: provider.TrustDomestic, DefaultModel: "m"}},
		adapters: map[string]*stubAdapter{"inhouse": inhouse},
	}
	// No cache configured at all.
	g, _ := newTestGateway(t, src, nil)

	req := Request{
		Messages:    userMessage("Wat is een vruchtgebruik?"),
		Sensitivity: tierPtr(classify.TierPublic),
	}
	_, err := g.Complete(context.Background(), req)
	require.NoError(t, err)
	_, err = g.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, inhouse.callCount())
}
