package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaAPIClient is a direct HTTP client for the Ollama chat API.
type OllamaAPIClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaAPIClient creates a new Ollama API client.
// baseURL should be like "http://localhost:11434"
func NewOllamaAPIClient(baseURL, model string) *OllamaAPIClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &OllamaAPIClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete sends a non-streaming chat request to the Ollama API.
func (o *OllamaAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	payload, err := json.Marshal(o.buildRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := o.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: "failed to read response: " + err.Error()}
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: "failed to parse response: " + err.Error()}
	}
	if result.Error != "" {
		return nil, &ProviderError{Provider: o.Name(), Message: result.Error}
	}

	return &CompletionResponse{
		Content:    result.Message.Content,
		StopReason: result.DoneReason,
		Model:      o.modelFor(req),
		Duration:   time.Since(start),
		Usage: Usage{
			InputTokens:  result.PromptEvalCount,
			OutputTokens: result.EvalCount,
		},
	}, nil
}

// Stream sends a streaming chat request to the Ollama API. The response is
// newline-delimited JSON, one object per chunk.
func (o *OllamaAPIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	payload, err := json.Marshal(o.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	eventChan := make(chan StreamEvent)
	go o.streamRequest(ctx, eventChan, payload, o.modelFor(req))
	return eventChan, nil
}

// Name returns the provider name.
func (o *OllamaAPIClient) Name() string {
	return "ollama"
}

func (o *OllamaAPIClient) modelFor(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return o.model
}

func (o *OllamaAPIClient) buildRequest(req CompletionRequest, stream bool) ollamaChatRequest {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: req.System})
	}
	messages = append(messages, req.Messages...)

	out := ollamaChatRequest{
		Model:    o.modelFor(req),
		Messages: messages,
		Stream:   stream,
	}
	if req.Temperature != nil {
		out.Options.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		out.Options.NumPredict = req.MaxTokens
	}
	return out
}

func (o *OllamaAPIClient) post(ctx context.Context, payload []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: "request failed: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{Provider: o.Name(), Message: strings.TrimSpace(string(body)), Code: resp.StatusCode}
	}
	return resp, nil
}

func (o *OllamaAPIClient) streamRequest(ctx context.Context, eventChan chan<- StreamEvent, payload []byte, model string) {
	defer close(eventChan)
	start := time.Now()

	resp, err := o.post(ctx, payload)
	if err != nil {
		send(ctx, eventChan, StreamEvent{Type: EventError, Error: err.Error()})
		return
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var fullContent strings.Builder
	var final ollamaChatResponse

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if event.Error != "" {
			send(ctx, eventChan, StreamEvent{Type: EventError, Error: (&ProviderError{Provider: o.Name(), Message: event.Error}).Error()})
			return
		}

		if event.Message.Content != "" {
			fullContent.WriteString(event.Message.Content)
			if !send(ctx, eventChan, StreamEvent{Type: EventDelta, Content: event.Message.Content}) {
				return
			}
		}
		if event.Done {
			final = event
			break
		}
	}

	if err := scanner.Err(); err != nil {
		send(ctx, eventChan, StreamEvent{Type: EventError, Error: (&ProviderError{Provider: o.Name(), Message: "stream read failed: " + err.Error()}).Error()})
		return
	}
	if !final.Done {
		send(ctx, eventChan, StreamEvent{Type: EventError, Error: (&ProviderError{Provider: o.Name(), Message: "stream ended before completion"}).Error()})
		return
	}

	send(ctx, eventChan, StreamEvent{
		Type: EventDone,
		Response: &CompletionResponse{
			Content:    fullContent.String(),
			StopReason: final.DoneReason,
			Model:      model,
			Duration:   time.Since(start),
			Usage: Usage{
				InputTokens:  final.PromptEvalCount,
				OutputTokens: final.EvalCount,
			},
		},
	})
}

// API request/response structures

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	CreatedAt       string  `json:"created_at"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	DoneReason      string  `json:"done_reason"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error,omitempty"`
}
