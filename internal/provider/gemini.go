package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// geminiAdapter drives Google's Gemini API. The conversation history goes into
// a chat session; system messages become the system instruction.
type geminiAdapter struct {
	client *genai.Client
}

func newGeminiAdapter(cfg Config) (*geminiAdapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider: %s requires an api key", cfg.Name)
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("provider: failed to create gemini client: %w", err)
	}
	return &geminiAdapter{client: client}, nil
}

// session prepares a chat session with history and returns the final message
// to send.
func (a *geminiAdapter) session(req Request) (*genai.ChatSession, string, error) {
	if len(req.Messages) == 0 {
		return nil, "", errors.New("provider: gemini requires at least one message")
	}

	model := a.client.GenerativeModel(req.Model)
	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}

	var systemParts []string
	cs := model.StartChat()
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		if msg.Role == ChatRoleSystem {
			systemParts = append(systemParts, content)
			continue
		}
		role := "user"
		if msg.Role == ChatRoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}
	if len(systemParts) > 0 {
		model.SystemInstruction = genai.NewUserContent(genai.Text(strings.Join(systemParts, "\n\n")))
	}

	return cs, req.Messages[len(req.Messages)-1].Content, nil
}

func (a *geminiAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	cs, last, err := a.session(req)
	if err != nil {
		return Response{}, err
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return Response{}, fmt.Errorf("provider: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return Response{}, errors.New("provider: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return Response{}, errors.New("provider: gemini returned empty content")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	result := Response{
		Text:       strings.TrimSpace(text.String()),
		Model:      req.Model,
		StopReason: candidate.FinishReason.String(),
	}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

func (a *geminiAdapter) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	cs, last, err := a.session(req)
	if err != nil {
		return nil, err
	}

	iter := cs.SendMessageStream(ctx, genai.Text(last))
	chunks := make(chan StreamChunk, 32)
	go func() {
		defer close(chunks)

		var usage TokenUsage
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				chunks <- StreamChunk{Done: true, Usage: usage}
				return
			}
			if err != nil {
				chunks <- StreamChunk{Error: err, Done: true}
				return
			}
			if resp.UsageMetadata != nil {
				usage = TokenUsage{
					InputTokens:  resp.UsageMetadata.PromptTokenCount,
					OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
					TotalTokens:  resp.UsageMetadata.TotalTokenCount,
				}
			}
			for _, candidate := range resp.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if t, ok := part.(genai.Text); ok && len(t) > 0 {
						select {
						case chunks <- StreamChunk{Text: string(t)}:
						case <-ctx.Done():
							chunks <- StreamChunk{Error: ctx.Err(), Done: true}
							return
						}
					}
				}
			}
		}
	}()
	return chunks, nil
}

func (a *geminiAdapter) HealthCheck(ctx context.Context) Status {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := a.client.ListModels(probeCtx).Next(); err != nil && !errors.Is(err, iterator.Done) {
		return StatusUnhealthy
	}
	return StatusHealthy
}

// Close releases the underlying Gemini client connection.
func (a *geminiAdapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}
