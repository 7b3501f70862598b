// Package llm implements the language-model collaborator against any
// OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/sashabaranov/go-openai"

	"voicebridge/convo"
	"voicebridge/core"
)

// Config holds the configuration for the completion service.
type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"` // empty means the OpenAI default
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   512,
		Temperature: 0.7,
	}
}

// Service implements convo.Completer.
type Service struct {
	client *openai.Client
	cfg    Config
	logger *core.Logger
}

func NewService(cfg Config, logger *core.Logger) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Service{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.With(map[string]interface{}{"service": "llm"}),
	}, nil
}

// Complete runs a single non-streamed round, optionally offering tools.
func (s *Service) Complete(ctx context.Context, msgs []core.Message, tools []convo.Tool) (*convo.Completion, error) {
	req := s.baseRequest(msgs)
	if len(tools) > 0 {
		converted, err := convertTools(tools)
		if err != nil {
			return nil, err
		}
		req.Tools = converted
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &convo.Completion{}, nil
	}

	choice := resp.Choices[0]
	out := &convo.Completion{Text: choice.Message.Content}
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, convertToolCall(call))
	}
	return out, nil
}

// Stream opens a streamed completion over the transcript.
func (s *Service) Stream(ctx context.Context, msgs []core.Message) (convo.CompletionStream, error) {
	req := s.baseRequest(msgs)
	req.Stream = true

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm: open stream: %w", err)
	}
	return &completionStream{inner: stream}, nil
}

// CompleteJSON runs a non-streamed round in JSON mode and returns the raw
// object text. Used by the tagging classifier.
func (s *Service) CompleteJSON(ctx context.Context, msgs []core.Message) (string, error) {
	req := s.baseRequest(msgs)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: json completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: json completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *Service) baseRequest(msgs []core.Message) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    convertMessages(msgs),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}
}

// completionStream adapts the vendor stream to convo.CompletionStream,
// skipping empty deltas so the consumer only sees text.
type completionStream struct {
	inner *openai.ChatCompletionStream
}

func (c *completionStream) Recv() (string, error) {
	for {
		resp, err := c.inner.Recv()
		if err != nil {
			if err == io.EOF {
				return "", io.EOF
			}
			return "", fmt.Errorf("llm: stream recv: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (c *completionStream) Close() error { return c.inner.Close() }

func convertMessages(msgs []core.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{
			Role:       convertRole(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

func convertRole(role core.MessageRole) string {
	switch role {
	case core.MessageRoleSystem:
		return openai.ChatMessageRoleSystem
	case core.MessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case core.MessageRoleTool:
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}

func convertTools(tools []convo.Tool) ([]openai.Tool, error) {
	out := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		properties := make(map[string]interface{})
		required := make([]string, 0)
		for _, param := range tool.Parameters {
			properties[param.Name] = map[string]interface{}{
				"type":        param.Type,
				"description": param.Description,
			}
			if param.Required {
				required = append(required, param.Name)
			}
		}
		parameters := map[string]interface{}{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			parameters["required"] = required
		}
		paramsJSON, err := sonic.Marshal(parameters)
		if err != nil {
			return nil, fmt.Errorf("llm: marshal tool parameters: %w", err)
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  json.RawMessage(paramsJSON),
			},
		})
	}
	return out, nil
}

func convertToolCall(call openai.ToolCall) convo.ToolCall {
	var args map[string]any
	if call.Function.Arguments != "" {
		if err := sonic.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			args = map[string]any{"raw_arguments": call.Function.Arguments}
		}
	}
	return convo.ToolCall{
		ID:        call.ID,
		Name:      call.Function.Name,
		Arguments: args,
	}
}
