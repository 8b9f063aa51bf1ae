package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/m4xw311/parley/config"
	"github.com/m4xw311/parley/errors"
	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/tools"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIClient is a streaming client for the OpenAI Chat Completion API.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

// NewOpenAIClient creates a new OpenAIClient. It requires the OPENAI_API_KEY
// environment variable to be set. A custom endpoint can be set through
// llm.api_base or the OPENAI_BASE_URL environment variable.
func NewOpenAIClient(ctx context.Context, cfg *config.LLM) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	baseURL := cfg.APIBase
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	// The v2 SDK uses functional options for configuration.
	c := openai.NewClient(options...)
	// The &c is required, do not replace and just use c
	return &OpenAIClient{client: &c, model: cfg.ModelName, maxTokens: int64(cfg.MaxCompletionTokens)}, nil
}

// Stream sends the conversation to OpenAI and forwards events as they
// arrive, assembling the final message with the SDK accumulator.
func (o *OpenAIClient) Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onEvent EventFunc) (*Result, error) {
	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            convertMessagesToOpenaiContent(messages),
		Tools:               convertToolsToOpenAITools(availableTools),
		MaxCompletionTokens: openai.Int(o.maxTokens),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			emit(onEvent, StreamEvent{Kind: EventText, Text: chunk.Choices[0].Delta.Content})
		}

		if tool, ok := acc.JustFinishedToolCall(); ok {
			emit(onEvent, StreamEvent{Kind: EventToolCall, ToolCall: &session.ToolCall{
				ToolCallID: finishedToolCallID(&acc, tool.Index),
				Name:       tool.Name,
				Args:       parseToolArgs(tool.Arguments),
			}})
		}
	}

	result := processOpenaiAccumulated(&acc)

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return nil, errors.Wrapf(err, "failed to stream message from OpenAI")
	}

	return result, nil
}

// finishedToolCallID resolves the call ID the provider assigned to the
// tool call at the given index.
func finishedToolCallID(acc *openai.ChatCompletionAccumulator, index int) string {
	if len(acc.Choices) > 0 && index < len(acc.Choices[0].Message.ToolCalls) {
		if id := acc.Choices[0].Message.ToolCalls[index].ID; id != "" {
			return id
		}
	}
	return fmt.Sprintf("call_%d", index)
}

// processOpenaiAccumulated converts the accumulated completion into our
// internal Result.
func processOpenaiAccumulated(acc *openai.ChatCompletionAccumulator) *Result {
	result := &Result{Message: &session.Message{Role: "assistant"}}

	if acc.Usage.PromptTokens > 0 || acc.Usage.CompletionTokens > 0 {
		result.Usage = &Usage{
			InputTokens:  int(acc.Usage.PromptTokens),
			OutputTokens: int(acc.Usage.CompletionTokens),
		}
	}

	if len(acc.Choices) == 0 {
		return result
	}

	choice := acc.Choices[0].Message
	result.Message.Content = choice.Content

	for _, tc := range choice.ToolCalls {
		result.Message.ToolCalls = append(result.Message.ToolCalls, session.ToolCall{
			ToolCallID: tc.ID,
			Name:       tc.Function.Name,
			Args:       parseToolArgs(tc.Function.Arguments),
		})
	}

	return result
}

// convertMessagesToOpenaiContent converts our internal message format to OpenAI's.
func convertMessagesToOpenaiContent(messages []session.Message) []openai.ChatCompletionMessageParamUnion {
	var chatMessages []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			chatMessages = append(chatMessages, openai.SystemMessage(msg.Content))
		case "assistant":
			assistantMessage := openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: msg.Content,
			}
			if len(msg.ToolCalls) > 0 {
				var toolCalls []openai.ChatCompletionMessageToolCallUnion
				for _, tc := range msg.ToolCalls {
					argsBytes, err := json.Marshal(tc.Args)
					if err != nil {
						fmt.Printf("Warning: could not marshal tool call arguments for %s: %v. Skipping function call in history.\n", tc.Name, err)
						continue
					}
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnion{
						ID:   tc.ToolCallID,
						Type: "function",
						Function: openai.ChatCompletionMessageFunctionToolCallFunction{
							Name:      tc.Name,
							Arguments: string(argsBytes),
						},
					})
				}
				assistantMessage.ToolCalls = toolCalls
			}
			chatMessages = append(chatMessages, assistantMessage.ToParam())
		case "tool":
			// A "tool" role message corresponds to a "tool" role message in the OpenAI API.
			if len(msg.ToolCalls) != 1 {
				fmt.Printf("Warning: tool message is malformed; expected exactly one ToolCall to identify the function name, but found %d. Skipping.\n", len(msg.ToolCalls))
				continue
			}
			chatMessages = append(chatMessages, openai.ToolMessage(msg.Content, msg.ToolCalls[0].ToolCallID))
			// Image artifacts ride along as a separate user message; the
			// tool role cannot carry image parts.
			if parts := openaiImageParts(msg.Images); len(parts) > 0 {
				chatMessages = append(chatMessages, openai.UserMessage(parts))
			}
		case "user":
			fallthrough
		default:
			chatMessages = append(chatMessages, openai.UserMessage(msg.Content))
		}
	}
	return chatMessages
}

// openaiImageParts loads image files into data-URL content parts.
func openaiImageParts(paths []string) []openai.ChatCompletionContentPartUnionParam {
	var parts []openai.ChatCompletionContentPartUnionParam
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("Warning: could not attach image %s: %v\n", path, err)
			continue
		}
		uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: uri,
		}))
	}
	return parts
}

// convertToolsToOpenAITools converts our Tool interface to the OpenAI Tool format.
func convertToolsToOpenAITools(ts []tools.Tool) []openai.ChatCompletionToolUnionParam {
	if len(ts) == 0 {
		return nil
	}
	var openAITools []openai.ChatCompletionToolUnionParam
	for _, t := range ts {
		params := openai.FunctionParameters(t.Parameters())

		toolParam := openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name(),
			Description: openai.String(t.Description()),
			Parameters:  params,
		})
		openAITools = append(openAITools, toolParam)
	}
	return openAITools
}
