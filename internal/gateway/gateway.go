// Package gateway routes completion requests to language-model providers
// under the data-protection policy: classify, gate through anonymization when
// the candidate is not fully trusted, fall back across candidates on
// transport failures, and leave a hash-only audit trail for every attempt.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mvandenbroeck/legal-ai-gateway/internal/anonymize"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/audit"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/classify"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/detect"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/observability/metrics"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/provider"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/tenancy"
	"github.com/mvandenbroeck/legal-ai-gateway/pkg/logging"
)

const anonymizationMethod = "placeholder_substitution"

// ProviderSource is the registry surface the gateway needs. *provider.Registry
// implements it.
type ProviderSource interface {
	Lookup(name string) (provider.Config, provider.Adapter, bool)
	NamesWithinTrust(maxTrustTier int) []string
	Health(name string) (provider.Status, bool)
	CheckAll(ctx context.Context) map[string]provider.Status
}

// Classifier assigns a sensitivity tier when the caller did not supply one.
type Classifier interface {
	Classify(text string, cctx *classify.Context) classify.Result
}

// Anonymizer substitutes detected values before text crosses the trust
// boundary.
type Anonymizer interface {
	AnonymizeMessages(messages []anonymize.Message) ([]anonymize.Message, map[string]string, error)
}

// Options wires the gateway's collaborators. Registry, Classifier, Anonymizer,
// Detector, and Audit are required; the rest default sensibly.
type Options struct {
	Registry   ProviderSource
	Classifier Classifier
	Anonymizer Anonymizer
	Detector   *detect.Detector
	Audit      audit.Logger
	Cache      *ResponseCache
	Logger     *logging.Logger
	Metrics    *metrics.GatewayMetrics
	Timeout    time.Duration
}

// Gateway is the routing state machine. Safe for concurrent use; all
// per-request state is local to each call.
type Gateway struct {
	providers  ProviderSource
	classifier Classifier
	anonymizer Anonymizer
	detector   *detect.Detector
	auditLog   audit.Logger
	cache      *ResponseCache
	logger     *logging.Logger
	metrics    *metrics.GatewayMetrics
	timeout    time.Duration
	tracer     trace.Tracer
}

func New(opts Options) (*Gateway, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("gateway: provider registry is required")
	}
	if opts.Classifier == nil {
		return nil, fmt.Errorf("gateway: classifier is required")
	}
	if opts.Anonymizer == nil {
		return nil, fmt.Errorf("gateway: anonymizer is required")
	}
	if opts.Detector == nil {
		return nil, fmt.Errorf("gateway: entity detector is required")
	}
	if opts.Audit == nil {
		return nil, fmt.Errorf("gateway: audit logger is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gateway{
		providers:  opts.Registry,
		classifier: opts.Classifier,
		anonymizer: opts.Anonymizer,
		detector:   opts.Detector,
		auditLog:   opts.Audit,
		cache:      opts.Cache,
		logger:     logger.Component("gateway"),
		metrics:    opts.Metrics,
		timeout:    timeout,
		tracer:     otel.Tracer("legalai.internal.gateway"),
	}, nil
}

// Request is one caller-facing completion request.
type Request struct {
	Messages []provider.ChatMessage
	Purpose  string

	// Identity; when empty, filled from tenancy context.
	TenantID string
	UserID   string

	// Sensitivity overrides classification when the caller already knows the
	// tier of its content.
	Sensitivity     *classify.SensitivityTier
	ClassifyContext *classify.Context

	PreferredProvider string
	Model             string
	Temperature       float32
	MaxTokens         int32

	RequireHumanValidation bool
}

// CompletionResponse correlates 1:1 with a completed audit entry.
type CompletionResponse struct {
	Content                 string
	Provider                string
	Model                   string
	Tier                    classify.SensitivityTier
	WasAnonymized           bool
	TokensIn                int32
	TokensOut               int32
	Latency                 time.Duration
	EstimatedCost           float64
	CorrelationID           string
	HumanValidationRequired bool
}

// Complete classifies the request, walks the candidate chain in order, and
// returns the first successful completion. Recoverable provider errors
// advance the chain; anonymization failures stop everything.
func (g *Gateway) Complete(ctx context.Context, req Request) (*CompletionResponse, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.complete")
	defer span.End()

	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("gateway: at least one message is required")
	}
	g.resolveIdentity(ctx, &req)

	tier := g.resolveTier(req)
	span.SetAttributes(attribute.String("legalai.tier", tier.String()))

	candidates := g.candidates(tier, req.PreferredProvider)
	if len(candidates) == 0 {
		failure := &NoAllowedProviderError{Tier: tier}
		g.logTerminal(ctx, "", failure.Error())
		span.RecordError(failure)
		return nil, failure
	}

	if resp, ok := g.cacheLookup(ctx, tier, req); ok {
		return resp, nil
	}

	var lastErr error
	attempts := 0
	for _, name := range candidates {
		cfg, adapter, ok := g.providers.Lookup(name)
		if !ok {
			continue
		}
		attempts++

		resp, err := g.attempt(ctx, req, tier, cfg, adapter)
		if err == nil {
			g.metrics.ObserveFallbackDepth(attempts)
			return resp, nil
		}

		var blocked *BlockingError
		if errors.As(err, &blocked) {
			span.RecordError(blocked)
			return nil, blocked
		}

		// Recoverable: remember and move to the next candidate.
		lastErr = err
		g.logger.Warn("provider attempt failed, trying next candidate",
			"provider", cfg.Name,
			"tier", tier.String(),
			"error", err.Error(),
		)
	}

	failure := &AllProvidersExhaustedError{Attempts: attempts, LastErr: lastErr}
	g.metrics.ObserveFallbackDepth(attempts)
	g.logger.Error("all candidate providers exhausted",
		"attempts", attempts,
		"tier", tier.String(),
		"error", fmt.Sprint(lastErr),
	)
	span.RecordError(failure)
	return nil, failure
}

// attempt runs the full gate-and-call sequence against one candidate. A
// returned *BlockingError stops the whole request; any other error is
// recoverable and advances the fallback chain.
func (g *Gateway) attempt(ctx context.Context, req Request, tier classify.SensitivityTier, cfg provider.Config, adapter provider.Adapter) (*CompletionResponse, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.provider_call",
		trace.WithAttributes(attribute.String("legalai.provider", cfg.Name)))
	defer span.End()

	model := req.Model
	if model == "" {
		model = cfg.DefaultModel
	}

	toSend, mapping, wasAnonymized, err := g.gate(ctx, req, tier, cfg, model)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	correlationID := g.logRequest(ctx, req, tier, cfg, model, wasAnonymized, toSend)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := adapter.Complete(callCtx, provider.Request{
		Model:       model,
		Messages:    toSend,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	elapsed := time.Since(start)
	g.metrics.ObserveProviderLatency(cfg.Name, elapsed.Seconds())

	if err != nil {
		g.metrics.ObserveRequest(cfg.Name, tier.String(), "error")
		g.logAttemptError(ctx, correlationID, err)
		return nil, fmt.Errorf("gateway: provider %s failed: %w", cfg.Name, err)
	}

	content := resp.Text
	if wasAnonymized {
		content = anonymize.Deanonymize(content, mapping)
	}

	cost := estimateCost(cfg, resp.Usage)
	g.logResponse(ctx, correlationID, content, resp.Usage, elapsed, cost)
	g.metrics.ObserveRequest(cfg.Name, tier.String(), "success")

	if tier == classify.TierPublic {
		g.cacheStore(ctx, req, &cachedCompletion{
			Content:   content,
			Provider:  cfg.Name,
			Model:     model,
			TokensIn:  resp.Usage.InputTokens,
			TokensOut: resp.Usage.OutputTokens,
		})
	}

	return &CompletionResponse{
		Content:                 content,
		Provider:                cfg.Name,
		Model:                   model,
		Tier:                    tier,
		WasAnonymized:           wasAnonymized,
		TokensIn:                resp.Usage.InputTokens,
		TokensOut:               resp.Usage.OutputTokens,
		Latency:                 elapsed,
		EstimatedCost:           cost,
		CorrelationID:           correlationID,
		HumanValidationRequired: req.RequireHumanValidation || tier == classify.TierCritical,
	}, nil
}

// gate anonymizes and verifies the outgoing messages when the candidate's
// trust tier requires it. A failure here is blocking: it is logged hash-only
// and the provider's send operation is never invoked.
func (g *Gateway) gate(ctx context.Context, req Request, tier classify.SensitivityTier, cfg provider.Config, model string) ([]provider.ChatMessage, map[string]string, bool, error) {
	needsAnonymization := cfg.TrustTier != provider.TrustDomestic && tier != classify.TierPublic
	if !needsAnonymization {
		return req.Messages, nil, false, nil
	}

	original := concatMessages(req.Messages)
	originalEntities := g.detector.Detect(original)

	anonMessages, mapping, err := g.anonymizer.AnonymizeMessages(toAnonymizeMessages(req.Messages))
	if err != nil {
		blocked := &BlockingError{Stage: "anonymize", Reason: err.Error()}
		g.recordBlocked(ctx, req, tier, cfg, model, blocked)
		return nil, nil, false, blocked
	}

	anonymized := make([]provider.ChatMessage, len(anonMessages))
	var joined strings.Builder
	for i, msg := range anonMessages {
		anonymized[i] = provider.ChatMessage{Role: msg.Role, Content: msg.Content}
		joined.WriteString(msg.Content)
		joined.WriteString("\n")
	}

	if !anonymize.Verify(joined.String(), originalEntities) {
		blocked := &BlockingError{
			Stage:  "verify",
			Reason: fmt.Sprintf("a detected value survived anonymization (%d entities checked)", len(originalEntities)),
		}
		g.recordBlocked(ctx, req, tier, cfg, model, blocked)
		return nil, nil, false, blocked
	}

	return anonymized, mapping, true, nil
}

// recordBlocked writes the hash-only audit trail for a blocked request before
// the error propagates.
func (g *Gateway) recordBlocked(ctx context.Context, req Request, tier classify.SensitivityTier, cfg provider.Config, model string, blocked *BlockingError) {
	g.metrics.ObserveBlocked(blocked.Stage)
	g.metrics.ObserveRequest(cfg.Name, tier.String(), "blocked")
	correlationID, err := g.auditLog.LogRequest(ctx, audit.RequestRecord{
		TenantID:    req.TenantID,
		UserID:      req.UserID,
		Provider:    cfg.Name,
		Model:       model,
		Sensitivity: tier.String(),
		// No substitution reached the provider, so no method is claimed.
		WasAnonymized: false,
		PromptHash:    hashText(concatMessages(req.Messages)),
		Purpose:       req.Purpose,
	})
	if err != nil {
		g.logger.Error("audit write failed for blocked request", "error", err.Error())
		return
	}
	if err := g.auditLog.LogError(ctx, correlationID, blocked.Error()); err != nil {
		g.logger.Error("audit write failed for blocked request", "error", err.Error())
	}
}

func (g *Gateway) logRequest(ctx context.Context, req Request, tier classify.SensitivityTier, cfg provider.Config, model string, wasAnonymized bool, toSend []provider.ChatMessage) string {
	method := ""
	if wasAnonymized {
		method = anonymizationMethod
	}
	correlationID, err := g.auditLog.LogRequest(ctx, audit.RequestRecord{
		TenantID:      req.TenantID,
		UserID:        req.UserID,
		Provider:      cfg.Name,
		Model:         model,
		Sensitivity:   tier.String(),
		WasAnonymized: wasAnonymized,
		Method:        method,
		PromptHash:    hashText(concatMessages(toSend)),
		Purpose:       req.Purpose,
	})
	if err != nil {
		// Non-fatal for the caller, but never silent.
		g.logger.Error("audit request write failed", "provider", cfg.Name, "error", err.Error())
		return ""
	}
	return correlationID
}

func (g *Gateway) logResponse(ctx context.Context, correlationID, content string, usage provider.TokenUsage, latency time.Duration, cost float64) {
	if correlationID == "" {
		return
	}
	err := g.auditLog.LogResponse(ctx, correlationID, audit.ResponseRecord{
		ResponseHash:  hashText(content),
		TokensIn:      usage.InputTokens,
		TokensOut:     usage.OutputTokens,
		Latency:       latency,
		EstimatedCost: cost,
	})
	if err != nil {
		g.logger.Error("audit response write failed", "correlation_id", correlationID, "error", err.Error())
	}
}

func (g *Gateway) logAttemptError(ctx context.Context, correlationID string, attemptErr error) {
	if correlationID == "" {
		return
	}
	if err := g.auditLog.LogError(ctx, correlationID, attemptErr.Error()); err != nil {
		g.logger.Error("audit error write failed", "correlation_id", correlationID, "error", err.Error())
	}
}

func (g *Gateway) logTerminal(ctx context.Context, correlationID, text string) {
	if err := g.auditLog.LogError(ctx, correlationID, text); err != nil {
		g.logger.Error("audit terminal-failure write failed", "error", err.Error())
	}
}

// MarkHumanValidated records a reviewer sign-off against a completed request.
func (g *Gateway) MarkHumanValidated(ctx context.Context, correlationID, validatorID string) error {
	return g.auditLog.MarkHumanValidated(ctx, correlationID, validatorID)
}

// ProviderStatus runs a health check against every configured provider. Health is read by routing
// only at candidate-selection time; an in-flight request is never rerouted.
func (g *Gateway) ProviderStatus(ctx context.Context) map[string]provider.Status {
	return g.providers.CheckAll(ctx)
}

func (g *Gateway) resolveIdentity(ctx context.Context, req *Request) {
	if req.TenantID != "" {
		return
	}
	if id, ok := tenancy.IdentityFromContext(ctx); ok {
		req.TenantID = id.TenantID
		if req.UserID == "" {
			req.UserID = id.UserID
		}
	}
}

func (g *Gateway) resolveTier(req Request) classify.SensitivityTier {
	if req.Sensitivity != nil {
		return *req.Sensitivity
	}
	result := g.classifier.Classify(concatMessages(req.Messages), req.ClassifyContext)
	return result.Tier
}

// candidates builds the ordered fallback chain: the preferred provider first
// when it is allowed and available, then the remaining allowed providers in
// ascending trust-tier order. Health is read once, here.
func (g *Gateway) candidates(tier classify.SensitivityTier, preferred string) []string {
	allowed := g.providers.NamesWithinTrust(tier.MaxTrustTier())

	var out []string
	if preferred != "" {
		for _, name := range allowed {
			if name == preferred && g.available(name) {
				out = append(out, name)
				break
			}
		}
	}
	for _, name := range allowed {
		if name == preferred {
			continue
		}
		if g.available(name) {
			out = append(out, name)
		}
	}
	return out
}

func (g *Gateway) available(name string) bool {
	status, ok := g.providers.Health(name)
	return ok && status.Available()
}

func estimateCost(cfg provider.Config, usage provider.TokenUsage) float64 {
	return float64(usage.InputTokens)/1000*cfg.InputCostPer1K +
		float64(usage.OutputTokens)/1000*cfg.OutputCostPer1K
}

func concatMessages(messages []provider.ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func toAnonymizeMessages(messages []provider.ChatMessage) []anonymize.Message {
	out := make([]anonymize.Message, len(messages))
	for i, msg := range messages {
		out[i] = anonymize.Message{Role: msg.Role, Content: msg.Content}
	}
	return out
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
