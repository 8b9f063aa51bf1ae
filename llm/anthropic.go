package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m4xw311/parley/config"
	"github.com/m4xw311/parley/errors"
	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/tools"
)

// AnthropicClient is a streaming client for the Anthropic API.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	thinking  config.Thinking
}

// thinkingBudget maps a configured thinking level to a token budget.
func thinkingBudget(level string) int64 {
	switch level {
	case "low":
		return 2048
	case "medium":
		return 8192
	case "high":
		return 16384
	default:
		return 0
	}
}

// NewAnthropicClient creates a new AnthropicClient.
// It requires the ANTHROPIC_API_KEY environment variable to be set.
func NewAnthropicClient(ctx context.Context, cfg *config.LLM) (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable not set")
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.APIBase != "" {
		options = append(options, option.WithBaseURL(cfg.APIBase))
	}

	client := anthropic.NewClient(options...)

	return &AnthropicClient{
		client:    &client,
		model:     cfg.ModelName,
		maxTokens: int64(cfg.MaxCompletionTokens),
		thinking:  cfg.Thinking,
	}, nil
}

// Stream sends the conversation to the Anthropic API and forwards
// events as they arrive. On cancellation the partially accumulated
// message is returned together with ctx.Err().
func (a *AnthropicClient) Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onEvent EventFunc) (*Result, error) {
	anthropicMessages, systemPrompt := convertMessagesToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  anthropicMessages,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if budget := thinkingBudget(a.thinking.Level); budget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	anthropicTools := convertToolsToAnthropicTools(availableTools)
	params.Tools = make([]anthropic.ToolUnionParam, len(anthropicTools))
	for i := range anthropicTools {
		params.Tools[i] = anthropic.ToolUnionParam{OfTool: &anthropicTools[i]}
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	message := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, errors.Wrapf(err, "failed to accumulate stream event")
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				emit(onEvent, StreamEvent{Kind: EventText, Text: deltaVariant.Text})
			case anthropic.ThinkingDelta:
				emit(onEvent, StreamEvent{Kind: EventThought, Text: deltaVariant.Thinking})
			}
		case anthropic.ContentBlockStopEvent:
			// Tool calls are fully materialized at block stop.
			idx := int(eventVariant.Index)
			if idx < len(message.Content) {
				if block, ok := message.Content[idx].AsAny().(anthropic.ToolUseBlock); ok {
					emit(onEvent, StreamEvent{Kind: EventToolCall, ToolCall: &session.ToolCall{
						ToolCallID: block.ID,
						Name:       block.Name,
						Args:       parseToolArgs(string(block.Input)),
					}})
				}
			}
		}
	}

	result := processAnthropicMessage(&message)

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			// Interrupted mid-stream: hand back what accumulated so far.
			return result, ctx.Err()
		}
		return nil, errors.Wrapf(err, "failed to stream message from Anthropic")
	}

	return result, nil
}

// convertMessagesToAnthropicMessages converts our internal message format to Anthropic's format.
func convertMessagesToAnthropicMessages(messages []session.Message) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case "assistant":
			var contentItems []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				contentItems = append(contentItems, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: msg.Content},
				})
			}
			for _, tc := range msg.ToolCalls {
				argsBytes, err := json.Marshal(tc.Args)
				if err != nil {
					fmt.Printf("Warning: could not marshal tool call arguments for %s: %v. Skipping.\n", tc.Name, err)
					continue
				}
				contentItems = append(contentItems, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						Type:  "tool_use",
						ID:    tc.ToolCallID,
						Name:  tc.Name,
						Input: argsBytes,
					}})
			}
			if len(contentItems) == 0 {
				continue
			}
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: contentItems,
			})
		case "tool":
			if len(msg.ToolCalls) == 0 {
				continue
			}
			contentItems := []anthropic.ContentBlockParamUnion{{
				OfToolResult: &anthropic.ToolResultBlockParam{
					ToolUseID: msg.ToolCalls[0].ToolCallID,
					Content: []anthropic.ToolResultBlockParamContentUnion{{
						OfText: &anthropic.TextBlockParam{Text: msg.Content},
					}},
				},
			}}
			for _, img := range msg.Images {
				block, err := imageBlock(img)
				if err != nil {
					fmt.Printf("Warning: could not attach image %s: %v\n", img, err)
					continue
				}
				contentItems = append(contentItems, block)
			}
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: contentItems,
			})
		case "system":
			// Take the last system message as the system prompt.
			systemPrompt = msg.Content
		}
	}

	return anthropicMessages, systemPrompt
}

// imageBlock loads a PNG from disk into a base64 image content block.
func imageBlock(path string) (anthropic.ContentBlockParamUnion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return anthropic.NewImageBlockBase64("image/png", encoded), nil
}

// convertToolsToAnthropicTools converts our Tool interface to Anthropic's tool format.
func convertToolsToAnthropicTools(ts []tools.Tool) []anthropic.ToolParam {
	if len(ts) == 0 {
		return nil
	}

	var anthropicTools []anthropic.ToolParam
	for _, t := range ts {
		schema := t.Parameters()
		properties, _ := schema["properties"].(map[string]interface{})
		if properties == nil {
			properties = map[string]interface{}{}
		}
		param := anthropic.ToolParam{
			Name:        t.Name(),
			Description: anthropic.String(t.Description()),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
			},
		}
		if required, ok := schema["required"].([]string); ok {
			param.InputSchema.Required = required
		}
		anthropicTools = append(anthropicTools, param)
	}
	return anthropicTools
}

// processAnthropicMessage converts an accumulated Anthropic message into
// our internal Result.
func processAnthropicMessage(msg *anthropic.Message) *Result {
	var responseContent string
	var thought string
	var toolCalls []session.ToolCall

	for _, content := range msg.Content {
		switch c := content.AsAny().(type) {
		case anthropic.TextBlock:
			responseContent += c.Text
		case anthropic.ThinkingBlock:
			thought += c.Thinking
		case anthropic.ToolUseBlock:
			toolCalls = append(toolCalls, session.ToolCall{
				ToolCallID: c.ID,
				Name:       c.Name,
				Args:       parseToolArgs(string(c.Input)),
			})
		}
	}

	result := &Result{
		Message: &session.Message{
			Role:      "assistant",
			Content:   responseContent,
			Thought:   thought,
			ToolCalls: toolCalls,
		},
	}
	if msg.Usage.InputTokens > 0 || msg.Usage.OutputTokens > 0 {
		result.Usage = &Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		}
	}
	return result
}
