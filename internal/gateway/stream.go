package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mvandenbroeck/legal-ai-gateway/internal/anonymize"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/classify"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/provider"
)

// Stream runs the same classification and anonymization gate as Complete,
// then streams from a single candidate; there is no mid-stream provider
// switching. PUBLIC-tier chunks pass through as they arrive. For any tier
// above public the stream is buffered, deanonymized, and released only once
// the provider has finished: no byte leaves the process before the full
// response is restorable. The full text is assembled for audit either way.
func (g *Gateway) Stream(ctx context.Context, req Request) (<-chan provider.StreamChunk, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.stream")
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
		return nil, failure
	}

	cfg, adapter, ok := g.providers.Lookup(candidates[0])
	if !ok {
		return nil, fmt.Errorf("gateway: candidate %s vanished from registry", candidates[0])
	}
	if !cfg.SupportsStreaming {
		return nil, fmt.Errorf("gateway: provider %s does not support streaming", cfg.Name)
	}
	span.SetAttributes(attribute.String("legalai.provider", cfg.Name))

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

	streamCtx, cancel := context.WithTimeout(ctx, g.timeout)
	start := time.Now()
	upstream, err := adapter.Stream(streamCtx, provider.Request{
		Model:       model,
		Messages:    toSend,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		cancel()
		g.metrics.ObserveRequest(cfg.Name, tier.String(), "error")
		g.logAttemptError(ctx, correlationID, err)
		return nil, fmt.Errorf("gateway: provider %s stream failed: %w", cfg.Name, err)
	}

	passThrough := tier == classify.TierPublic && !wasAnonymized
	out := make(chan provider.StreamChunk, 32)

	go func() {
		defer close(out)
		defer cancel()

		var full strings.Builder
		var usage provider.TokenUsage

		for chunk := range upstream {
			if chunk.Error != nil {
				g.metrics.ObserveRequest(cfg.Name, tier.String(), "error")
				g.logAttemptError(ctx, correlationID, fmt.Errorf("stream aborted: %w", chunk.Error))
				select {
				case out <- provider.StreamChunk{Error: chunk.Error, Done: true}:
				case <-ctx.Done():
				}
				return
			}
			if chunk.Done {
				usage = chunk.Usage
				break
			}
			full.WriteString(chunk.Text)
			if passThrough {
				select {
				case out <- provider.StreamChunk{Text: chunk.Text}:
				case <-ctx.Done():
					g.logAttemptError(ctx, correlationID, fmt.Errorf("stream aborted: %w", ctx.Err()))
					// The consumer is gone; never block on the terminal chunk.
					select {
					case out <- provider.StreamChunk{Error: ctx.Err(), Done: true}:
					default:
					}
					return
				}
			}
		}

		content := full.String()
		if wasAnonymized {
			// Mapping is request-local; it dies with this goroutine.
			content = anonymize.Deanonymize(content, mapping)
		}
		if !passThrough {
			select {
			case out <- provider.StreamChunk{Text: content}:
			case <-ctx.Done():
				g.logAttemptError(ctx, correlationID, fmt.Errorf("stream aborted: %w", ctx.Err()))
				select {
				case out <- provider.StreamChunk{Error: ctx.Err(), Done: true}:
				default:
				}
				return
			}
		}

		elapsed := time.Since(start)
		cost := estimateCost(cfg, usage)
		g.logResponse(ctx, correlationID, content, usage, elapsed, cost)
		g.metrics.ObserveRequest(cfg.Name, tier.String(), "success")
		g.metrics.ObserveProviderLatency(cfg.Name, elapsed.Seconds())

		select {
		case out <- provider.StreamChunk{Done: true, Usage: usage}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}
