// Package openaicompat is a generation adapter for providers speaking the
// OpenAI chat-completions dialect. OpenRouter and the HuggingFace inference
// router both do; they differ only in base URL, headers, and whether their
// models tend to leak chain-of-thought.
package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
	"github.com/toolscout/agent-tools-rag/internal/core/reasoning"
	"github.com/toolscout/agent-tools-rag/internal/infrastructure/resilience"
)

type Options struct {
	// Name shows up in errors and logs ("openrouter", "hface").
	Name    string
	BaseURL string
	APIKey  string
	// Extra headers some routers want (OpenRouter's HTTP-Referer/X-Title).
	Headers map[string]string
	// StripReasoning turns on chain-of-thought removal for providers whose
	// models deliberate out loud.
	StripReasoning bool
	ReasoningCfg   reasoning.Config

	Timeout  time.Duration
	Executor *resilience.Executor
}

type Client struct {
	opts       Options
	httpClient *http.Client
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, opts.Name, fmt.Errorf("base url is required"))
	}
	if opts.APIKey == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, opts.Name, fmt.Errorf("api key is required"))
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate runs one blocking chat completion.
func (c *Client) Generate(ctx context.Context, prompt string, cfg domain.ModelConfig) (string, string, error) {
	reqBody := chatRequest{
		Model:       cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxCompletionTokens,
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}

	call := func(ctx context.Context) error {
		resp, err := c.post(ctx, reqBody)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(&response)
	}
	var err error
	if c.opts.Executor != nil {
		err = c.opts.Executor.Execute(ctx, c.opts.Name+"_generate", call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", "", err
	}
	if len(response.Choices) == 0 {
		return "", "", fmt.Errorf("%s: empty choices in completion response", c.opts.Name)
	}

	content := response.Choices[0].Message.Content
	if c.opts.StripReasoning {
		content = reasoning.StripReasoning(content)
	}
	return content, response.Choices[0].FinishReason, nil
}

// Stream opens a streaming completion. The request itself is made eagerly so
// auth and availability errors return synchronously; body consumption runs in
// a goroutine that honors ctx.
func (c *Client) Stream(ctx context.Context, prompt string, cfg domain.ModelConfig) (<-chan domain.GenerationEvent, error) {
	reqBody := chatRequest{
		Model:       cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxCompletionTokens,
		Stream:      true,
	}
	resp, err := c.post(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.GenerationEvent)
	go c.consumeSSE(ctx, resp, out)

	if c.opts.StripReasoning {
		return reasoning.WrapStream(out, c.opts.ReasoningCfg), nil
	}
	return out, nil
}

func (c *Client) consumeSSE(ctx context.Context, resp *http.Response, out chan<- domain.GenerationEvent) {
	defer close(out)
	defer resp.Body.Close()

	emit := func(event domain.GenerationEvent) bool {
		select {
		case out <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	modelAnnounced := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return
		}

		var frame struct {
			Model   string `json:"model"`
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason string `json:"finish_reason"`
			} `json:"choices"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			continue
		}

		if frame.Error != nil {
			emit(domain.GenerationEvent{Type: domain.EventError, Reason: "provider stream error"})
			return
		}
		if !modelAnnounced && frame.Model != "" {
			modelAnnounced = true
			if !emit(domain.GenerationEvent{Type: domain.EventModelInfo, Model: frame.Model}) {
				return
			}
		}
		for _, choice := range frame.Choices {
			if choice.Delta.Content != "" {
				if !emit(domain.GenerationEvent{Type: domain.EventText, Delta: choice.Delta.Content}) {
					return
				}
			}
			if choice.FinishReason == "length" {
				emit(domain.GenerationEvent{Type: domain.EventTruncated, Reason: "length"})
				return
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		emit(domain.GenerationEvent{Type: domain.EventError, Reason: "provider stream interrupted"})
	}
}

func (c *Client) post(ctx context.Context, payload chatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	for key, value := range c.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s completion request: %w", c.opts.Name, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &HTTPStatusError{
			Provider:   c.opts.Name,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	return resp, nil
}

type HTTPStatusError struct {
	Provider   string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s completion status: %s", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s completion status: %s: %s", e.Provider, e.Status, e.Body)
}

func classifyProviderError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
