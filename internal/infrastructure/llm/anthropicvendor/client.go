// Package anthropicvendor adapts the official Anthropic SDK to the generator
// port. Claude models do not leak deliberation into visible text, so no
// reasoning stripper is wired here.
package anthropicvendor

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

type Client struct {
	api anthropic.Client
}

func New(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "anthropic", fmt.Errorf("api key is required"))
	}
	return &Client{api: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

func (c *Client) params(prompt string, cfg domain.ModelConfig) anthropic.MessageNewParams {
	maxTokens := cfg.MaxCompletionTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return anthropic.MessageNewParams{
		Model:       anthropic.Model(cfg.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
}

func (c *Client) Generate(ctx context.Context, prompt string, cfg domain.ModelConfig) (string, string, error) {
	message, err := c.api.Messages.New(ctx, c.params(prompt, cfg))
	if err != nil {
		return "", "", fmt.Errorf("anthropic message: %w", err)
	}

	return messageText(message.Content), finishReason(string(message.StopReason)), nil
}

// messageText concatenates the visible text blocks. Block type is a plain
// string in the SDK ("text", "thinking", "tool_use", ...); only "text" is
// answer content.
func messageText(content []anthropic.ContentBlockUnion) string {
	var text strings.Builder
	for _, block := range content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String()
}

func (c *Client) Stream(ctx context.Context, prompt string, cfg domain.ModelConfig) (<-chan domain.GenerationEvent, error) {
	stream := c.api.Messages.NewStreaming(ctx, c.params(prompt, cfg))

	out := make(chan domain.GenerationEvent)
	go func() {
		defer close(out)
		defer stream.Close()

		emit := func(event domain.GenerationEvent) bool {
			select {
			case out <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			switch event := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				if !emit(domain.GenerationEvent{Type: domain.EventModelInfo, Model: string(event.Message.Model)}) {
					return
				}
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := event.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					if !emit(domain.GenerationEvent{Type: domain.EventText, Delta: delta.Text}) {
						return
					}
				}
			case anthropic.MessageDeltaEvent:
				if event.Delta.StopReason == "max_tokens" {
					emit(domain.GenerationEvent{Type: domain.EventTruncated, Reason: "length"})
					return
				}
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			emit(domain.GenerationEvent{Type: domain.EventError, Reason: "provider stream error"})
		}
	}()
	return out, nil
}

// finishReason maps the SDK stop reason to the neutral vocabulary shared by
// all providers.
func finishReason(stopReason string) string {
	switch stopReason {
	case "max_tokens":
		return "length"
	case "end_turn", "stop_sequence":
		return "stop"
	default:
		return stopReason
	}
}
