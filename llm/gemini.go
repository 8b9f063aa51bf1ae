package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/m4xw311/parley/config"
	"github.com/m4xw311/parley/errors"
	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/tools"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiClient is a streaming client for the Google Gemini API.
type GeminiClient struct {
	model *genai.GenerativeModel
}

// NewGeminiClient creates a new GeminiClient.
// It requires the GEMINI_API_KEY environment variable to be set.
func NewGeminiClient(ctx context.Context, cfg *config.LLM) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create genai client")
	}

	model := client.GenerativeModel(cfg.ModelName)
	maxTokens := int32(cfg.MaxCompletionTokens)
	model.MaxOutputTokens = &maxTokens

	return &GeminiClient{model: model}, nil
}

// Stream sends the conversation to the Gemini API and forwards events
// from the response iterator as they arrive.
func (g *GeminiClient) Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onEvent EventFunc) (*Result, error) {
	history, systemPrompt := convertMessagesToGeminiContent(messages)
	if systemPrompt != "" {
		g.model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}
	g.model.Tools = convertToolsToGeminiTools(availableTools)

	if len(history) == 0 {
		return nil, errors.New("no messages to send to Gemini")
	}

	// The last message is the new prompt.
	lastMessage := history[len(history)-1]

	chatSession := g.model.StartChat()
	chatSession.History = history[:len(history)-1]

	iter := chatSession.SendMessageStream(ctx, lastMessage.Parts...)

	result := &Result{Message: &session.Message{Role: "assistant"}}
	toolCallCounter := 0

	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			return nil, errors.Wrapf(err, "failed to stream message from Gemini")
		}

		if resp.UsageMetadata != nil {
			result.Usage = &Usage{
				InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			}
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				emit(onEvent, StreamEvent{Kind: EventText, Text: string(v)})
				result.Message.Content += string(v)
			case genai.FunctionCall:
				// Gemini does not assign call IDs; synthesize stable ones.
				tc := session.ToolCall{
					ToolCallID: fmt.Sprintf("call_%d_%s", toolCallCounter, v.Name),
					Name:       v.Name,
					Args:       v.Args,
				}
				toolCallCounter++
				if tc.Args == nil {
					tc.Args = map[string]interface{}{}
				}
				result.Message.ToolCalls = append(result.Message.ToolCalls, tc)
				emit(onEvent, StreamEvent{Kind: EventToolCall, ToolCall: &tc})
			}
		}
	}

	return result, nil
}

// convertMessagesToGeminiContent converts our internal message format to Gemini's.
// The system prompt is returned separately; Gemini carries it as a
// system instruction, not a conversation turn.
func convertMessagesToGeminiContent(messages []session.Message) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemPrompt = msg.Content
		case "assistant":
			var parts []genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: tc.Args})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case "tool":
			if len(msg.ToolCalls) == 0 {
				continue
			}
			parts := []genai.Part{genai.FunctionResponse{
				Name:     msg.ToolCalls[0].Name,
				Response: map[string]interface{}{"result": msg.Content},
			}}
			for _, img := range msg.Images {
				data, err := os.ReadFile(img)
				if err != nil {
					fmt.Printf("Warning: could not attach image %s: %v\n", img, err)
					continue
				}
				parts = append(parts, genai.ImageData("png", data))
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: parts})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	return contents, systemPrompt
}

// convertToolsToGeminiTools converts our Tool interface to Gemini's FunctionDeclaration format.
func convertToolsToGeminiTools(ts []tools.Tool) []*genai.Tool {
	if len(ts) == 0 {
		return nil
	}
	var funcDecls []*genai.FunctionDeclaration
	for _, tool := range ts {
		funcDecls = append(funcDecls, &genai.FunctionDeclaration{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  schemaToGemini(tool.Parameters()),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: funcDecls}}
}

// schemaToGemini converts a JSON Schema object into Gemini's schema type.
func schemaToGemini(schema map[string]interface{}) *genai.Schema {
	out := &genai.Schema{Type: geminiType(schema["type"])}

	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok && len(props) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]interface{}); ok {
				out.Properties[name] = schemaToGemini(pm)
			}
		}
	}
	switch req := schema["required"].(type) {
	case []string:
		out.Required = req
	case []interface{}:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		out.Items = schemaToGemini(items)
	}
	return out
}

func geminiType(t interface{}) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeObject
	}
}
