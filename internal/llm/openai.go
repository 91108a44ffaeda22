package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/soyeahso/breakthis/internal/logging"
	"github.com/soyeahso/breakthis/internal/version"
)

// OpenAIClient talks to the OpenAI chat completions API (or any endpoint
// that speaks the same protocol).
type OpenAIClient struct {
	client *openai.Client
	model  string
	log    *logging.Logger
}

// NewOpenAIClient creates a client for the given credential. baseURL may be
// empty to use the public API. Requests are never retried.
func NewOpenAIClient(apiKey, baseURL, model string, log *logging.Logger) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", version.UserAgent()),
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
		log:    log.Sub("llm.openai"),
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return "openai" }

// Complete sends a non-streaming chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	completion, err := c.client.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, c.wrapError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &ProviderError{Provider: c.Name(), Message: "response contained no choices"}
	}

	choice := completion.Choices[0]
	return &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Model:      completion.Model,
		Duration:   time.Since(start),
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}, nil
}

// Stream sends a streaming chat completion request. Deltas are forwarded as
// they arrive; the channel ends with a single "done" or "error" event.
func (c *OpenAIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	eventChan := make(chan StreamEvent)
	params := c.buildParams(req)
	go c.streamRequest(ctx, eventChan, params)
	return eventChan, nil
}

func (c *OpenAIClient) streamRequest(ctx context.Context, eventChan chan<- StreamEvent, params openai.ChatCompletionNewParams) {
	defer close(eventChan)
	start := time.Now()

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var full strings.Builder
	var stopReason, model string
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Model != "" {
			model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			stopReason = string(choice.FinishReason)
		}
		if choice.Delta.Content == "" {
			continue
		}
		full.WriteString(choice.Delta.Content)
		if !send(ctx, eventChan, StreamEvent{Type: EventDelta, Content: choice.Delta.Content}) {
			return
		}
	}

	if err := stream.Err(); err != nil {
		perr := c.wrapError(err)
		c.log.Debug().Err(perr).Msg("stream failed")
		send(ctx, eventChan, StreamEvent{Type: EventError, Error: perr.Error()})
		return
	}
	if stopReason == "" {
		perr := &ProviderError{Provider: c.Name(), Message: "stream ended before completion"}
		c.log.Debug().Int("received", full.Len()).Msg("stream truncated")
		send(ctx, eventChan, StreamEvent{Type: EventError, Error: perr.Error()})
		return
	}

	send(ctx, eventChan, StreamEvent{
		Type: EventDone,
		Response: &CompletionResponse{
			Content:    full.String(),
			StopReason: stopReason,
			Model:      model,
			Duration:   time.Since(start),
		},
	})
}

func (c *OpenAIClient) buildParams(req CompletionRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	params := openai.ChatCompletionNewParams{
		Messages: openai.F(messages),
		Model:    openai.F(openai.ChatModel(model)),
	}
	if req.Temperature != nil {
		params.Temperature = openai.F(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.F(int64(req.MaxTokens))
	}
	return params
}

// wrapError converts SDK errors into ProviderError, keeping the HTTP status.
func (c *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return &ProviderError{Provider: c.Name(), Message: msg, Code: apiErr.StatusCode}
	}
	return &ProviderError{Provider: c.Name(), Message: fmt.Sprintf("request failed: %v", err)}
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
