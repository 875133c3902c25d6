package provider

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfigs() []Config {
	return []Config{
		{Name: "mistral-eu", TrustTier: TrustDomestic, Family: FamilyOpenAI, APIKey: "test-key", DefaultModel: "mistral-large-latest"},
		{Name: "openai", TrustTier: TrustConditional, Family: FamilyOpenAI, APIKey: "test-key", DefaultModel: "gpt-4o"},
		{Name: "groq", TrustTier: TrustPublicOnly, Family: FamilyOpenAI, APIKey: "test-key", DefaultModel: "llama-3.3-70b-versatile"},
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name    string
		configs []Config
		wantErr string
	}{
		{
			name:    "empty name",
			configs: []Config{{Name: "  ", TrustTier: TrustDomestic, Family: FamilyOpenAI, APIKey: "k"}},
			wantErr: "empty name",
		},
		{
			name: "duplicate name",
			configs: []Config{
				{Name: "openai", TrustTier: TrustConditional, Family: FamilyOpenAI, APIKey: "k"},
				{Name: "openai", TrustTier: TrustConditional, Family: FamilyOpenAI, APIKey: "k"},
			},
			wantErr: "duplicate",
		},
		{
			name:    "invalid trust tier",
			configs: []Config{{Name: "openai", TrustTier: 4, Family: FamilyOpenAI, APIKey: "k"}},
			wantErr: "invalid trust tier",
		},
		{
			name:    "unknown family",
			configs: []Config{{Name: "openai", TrustTier: TrustConditional, Family: "grpc", APIKey: "k"}},
			wantErr: "unknown family",
		},
		{
			name:    "openai family requires key",
			configs: []Config{{Name: "openai", TrustTier: TrustConditional, Family: FamilyOpenAI}},
			wantErr: "api key",
		},
		{
			name:    "bedrock family requires client",
			configs: []Config{{Name: "bedrock", TrustTier: TrustDomestic, Family: FamilyBedrock}},
			wantErr: "bedrock runtime client",
		},
		{
			name:    "no providers",
			configs: nil,
			wantErr: "at least one provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.configs, Deps{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	r, err := NewRegistry(testConfigs(), Deps{})
	require.NoError(t, err)

	cfg, adapter, ok := r.Lookup("openai")
	require.True(t, ok)
	assert.Equal(t, "openai", cfg.Name)
	assert.Equal(t, TrustConditional, cfg.TrustTier)
	assert.NotNil(t, adapter)

	_, _, ok = r.Lookup("nonexistent")
	assert.False(t, ok)
}

func TestRegistryConfigsKeepOrder(t *testing.T) {
	r, err := NewRegistry(testConfigs(), Deps{})
	require.NoError(t, err)

	var names []string
	for _, cfg := range r.Configs() {
		names = append(names, cfg.Name)
	}
	assert.Equal(t, []string{"mistral-eu", "openai", "groq"}, names)
}

func TestNamesWithinTrust(t *testing.T) {
	r, err := NewRegistry(testConfigs(), Deps{})
	require.NoError(t, err)

	assert.Equal(t, []string{"mistral-eu"}, r.NamesWithinTrust(1))
	assert.Equal(t, []string{"mistral-eu", "openai"}, r.NamesWithinTrust(2))
	assert.Equal(t, []string{"mistral-eu", "openai", "groq"}, r.NamesWithinTrust(3))
	assert.Empty(t, r.NamesWithinTrust(0))
}

func TestNamesWithinTrustOrdersByTier(t *testing.T) {
	configs := []Config{
		{Name: "groq", TrustTier: TrustPublicOnly, Family: FamilyOpenAI, APIKey: "k"},
		{Name: "mistral-eu", TrustTier: TrustDomestic, Family: FamilyOpenAI, APIKey: "k"},
		{Name: "openai", TrustTier: TrustConditional, Family: FamilyOpenAI, APIKey: "k"},
	}
	r, err := NewRegistry(configs, Deps{})
	require.NoError(t, err)

	// Most trusted first regardless of registration order.
	assert.Equal(t, []string{"mistral-eu", "openai", "groq"}, r.NamesWithinTrust(3))
}

func TestRegistryHealth(t *testing.T) {
	r, err := NewRegistry(testConfigs(), Deps{})
	require.NoError(t, err)

	status, ok := r.Health("openai")
	require.True(t, ok)
	assert.Equal(t, StatusHealthy, status)

	require.True(t, r.SetHealth("openai", StatusDisabled))
	status, _ = r.Health("openai")
	assert.Equal(t, StatusDisabled, status)

	assert.False(t, r.SetHealth("nonexistent", StatusHealthy))
	_, ok = r.Health("nonexistent")
	assert.False(t, ok)
}

func TestRegistryHealthConcurrentAccess(t *testing.T) {
	r, err := NewRegistry(testConfigs(), Deps{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.SetHealth("groq", StatusDegraded)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				status, _ := r.Health("groq")
				_ = status.Available()
			}
		}()
	}
	wg.Wait()

	status, _ := r.Health("groq")
	assert.Equal(t, StatusDegraded, status)
}

func TestStatusAvailable(t *testing.T) {
	assert.True(t, StatusHealthy.Available())
	assert.True(t, StatusDegraded.Available())
	assert.False(t, StatusUnhealthy.Available())
	assert.False(t, StatusDisabled.Available())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "healthy", StatusHealthy.String())
	assert.Equal(t, "degraded", StatusDegraded.String())
	assert.Equal(t, "unhealthy", StatusUnhealthy.String())
	assert.Equal(t, "disabled", StatusDisabled.String())
	assert.Equal(t, "unknown", Status(99).String())
}
