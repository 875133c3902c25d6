// Package provider holds the static vendor registry and one adapter per
// endpoint family. Vendor wire formats live entirely inside the adapters; the
// gateway only ever sees the uniform Adapter interface.
package provider

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is the neutral message representation handed to adapters.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request is the neutral completion request each adapter translates into its
// vendor's wire format.
type Request struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
}

type Response struct {
	Text       string
	Model      string
	Usage      TokenUsage
	StopReason string
}

// StreamChunk is one increment of a streamed completion. Done marks the final
// chunk; Usage is only populated on the final chunk.
type StreamChunk struct {
	Text  string
	Done  bool
	Usage TokenUsage
	Error error
}

// Adapter is implemented once per wire-format family.
type Adapter interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
	HealthCheck(ctx context.Context) Status
}

// Family tags which adapter implementation a provider uses.
type Family string

const (
	FamilyOpenAI  Family = "openai"
	FamilyBedrock Family = "bedrock"
	FamilyGemini  Family = "gemini"
)

// TrustTier ranks how much a vendor may be trusted with protected data.
// 1 = domestic or adequacy-covered, 2 = conditionally trusted (requires
// anonymization), 3 = public data only.
type TrustTier int

const (
	TrustDomestic    TrustTier = 1
	TrustConditional TrustTier = 2
	TrustPublicOnly  TrustTier = 3
)

// Config describes one vendor. Loaded at process start and read-only
// afterward; only the health cell beside it ever mutates.
type Config struct {
	Name              string
	TrustTier         TrustTier
	Family            Family
	DefaultModel      string
	InputCostPer1K    float64
	OutputCostPer1K   float64
	SupportsStreaming bool
	MaxContextTokens  int

	// Family-specific connection settings consumed at registry build time.
	APIKey  string
	BaseURL string
}
