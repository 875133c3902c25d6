package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// openAIAdapter serves every vendor speaking the OpenAI chat-completion wire
// format (OpenAI itself, Mistral, Groq, Azure-compatible gateways) by pointing
// the client at the vendor's base URL.
type openAIAdapter struct {
	client *openai.Client
}

func newOpenAIAdapter(cfg Config) (*openAIAdapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider: %s requires an api key", cfg.Name)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &openAIAdapter{client: openai.NewClientWithConfig(clientCfg)}, nil
}

func toOpenAIMessages(messages []ChatMessage) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case ChatRoleSystem, ChatRoleUser, ChatRoleAssistant:
			out = append(out, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
		default:
			return nil, fmt.Errorf("provider: unsupported role %q", msg.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("provider: at least one message is required")
	}
	return out, nil
}

func (a *openAIAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	messages, err := toOpenAIMessages(req.Messages)
	if err != nil {
		return Response{}, err
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   int(req.MaxTokens),
		Temperature: req.Temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("provider: openai-family completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("provider: openai-family response had no choices")
	}

	return Response{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		StopReason: string(resp.Choices[0].FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}

func (a *openAIAdapter) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	messages, err := toOpenAIMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   int(req.MaxTokens),
		Temperature: req.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: openai-family stream open failed: %w", err)
	}

	chunks := make(chan StreamChunk, 32)
	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				chunks <- StreamChunk{Done: true}
				return
			}
			if err != nil {
				chunks <- StreamChunk{Error: err, Done: true}
				return
			}
			if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				select {
				case chunks <- StreamChunk{Text: resp.Choices[0].Delta.Content}:
				case <-ctx.Done():
					chunks <- StreamChunk{Error: ctx.Err(), Done: true}
					return
				}
			}
		}
	}()
	return chunks, nil
}

func (a *openAIAdapter) HealthCheck(ctx context.Context) Status {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := a.client.ListModels(probeCtx); err != nil {
		return StatusUnhealthy
	}
	return StatusHealthy
}
