package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/m4xw311/parley/config"
	"github.com/m4xw311/parley/errors"
	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/tools"
)

// BedrockClient is a client for Anthropic models on AWS Bedrock. The
// InvokeModel API is not streamed; the full response is fetched and
// replayed as coarse events so callers see the same event sequence as
// with the streaming providers.
type BedrockClient struct {
	client    *bedrockruntime.Client
	modelID   string
	region    string
	maxTokens int
}

// NewBedrockClient creates a new BedrockClient.
// It requires AWS credentials to be configured in the environment.
func NewBedrockClient(ctx context.Context, cfg *config.LLM) (*BedrockClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load AWS config")
	}

	client := bedrockruntime.NewFromConfig(awsCfg)

	region := awsCfg.Region
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1" // Default region
	}

	return &BedrockClient{
		client:    client,
		modelID:   cfg.ModelName,
		region:    region,
		maxTokens: cfg.MaxCompletionTokens,
	}, nil
}

// Stream invokes the model once and replays the response as events.
func (b *BedrockClient) Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onEvent EventFunc) (*Result, error) {
	bedrockMessages, systemPrompt := convertMessagesToBedrockFormat(messages)

	requestBody, err := createBedrockRequest(bedrockMessages, systemPrompt, availableTools, b.maxTokens)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create Bedrock request")
	}

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(err, "failed to invoke Bedrock model")
	}

	result, err := processBedrockResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	if result.Message.Content != "" {
		emit(onEvent, StreamEvent{Kind: EventText, Text: result.Message.Content})
	}
	for i := range result.Message.ToolCalls {
		emit(onEvent, StreamEvent{Kind: EventToolCall, ToolCall: &result.Message.ToolCalls[i]})
	}

	return result, nil
}

// convertMessagesToBedrockFormat converts our internal message format to
// the Anthropic-on-Bedrock request format.
func convertMessagesToBedrockFormat(messages []session.Message) ([]map[string]interface{}, string) {
	var bedrockMessages []map[string]interface{}
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemPrompt = msg.Content
		case "user":
			bedrockMessages = append(bedrockMessages, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "text",
						"text": msg.Content,
					},
				},
			})
		case "assistant":
			var content []map[string]interface{}
			if msg.Content != "" {
				content = append(content, map[string]interface{}{
					"type": "text",
					"text": msg.Content,
				})
			}
			for _, tc := range msg.ToolCalls {
				content = append(content, map[string]interface{}{
					"type":  "tool_use",
					"id":    tc.ToolCallID,
					"name":  tc.Name,
					"input": tc.Args,
				})
			}
			if len(content) == 0 {
				continue
			}
			bedrockMessages = append(bedrockMessages, map[string]interface{}{
				"role":    "assistant",
				"content": content,
			})
		case "tool":
			if len(msg.ToolCalls) == 0 {
				continue
			}
			content := []map[string]interface{}{
				{
					"type":        "tool_result",
					"tool_use_id": msg.ToolCalls[0].ToolCallID,
					"content":     msg.Content,
				},
			}
			for _, img := range msg.Images {
				data, err := os.ReadFile(img)
				if err != nil {
					fmt.Printf("Warning: could not attach image %s: %v\n", img, err)
					continue
				}
				content = append(content, map[string]interface{}{
					"type": "image",
					"source": map[string]interface{}{
						"type":       "base64",
						"media_type": "image/png",
						"data":       base64.StdEncoding.EncodeToString(data),
					},
				})
			}
			bedrockMessages = append(bedrockMessages, map[string]interface{}{
				"role":    "user",
				"content": content,
			})
		}
	}

	return bedrockMessages, systemPrompt
}

// createBedrockRequest creates the request body for Anthropic models on Bedrock.
func createBedrockRequest(messages []map[string]interface{}, systemPrompt string, availableTools []tools.Tool, maxTokens int) ([]byte, error) {
	request := map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        maxTokens,
		"messages":          messages,
	}

	if systemPrompt != "" {
		request["system"] = systemPrompt
	}

	if len(availableTools) > 0 {
		var toolDefs []map[string]interface{}
		for _, tool := range availableTools {
			toolDefs = append(toolDefs, map[string]interface{}{
				"name":         tool.Name(),
				"description":  tool.Description(),
				"input_schema": tool.Parameters(),
			})
		}
		request["tools"] = toolDefs
	}

	return json.Marshal(request)
}

// processBedrockResponse converts a Bedrock API response into our internal Result.
func processBedrockResponse(body []byte) (*Result, error) {
	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal Bedrock response")
	}

	if errMsg, ok := response["error"]; ok {
		return nil, errors.New("Bedrock API error: %v", errMsg)
	}

	result := &Result{Message: &session.Message{Role: "assistant"}}

	if usage, ok := response["usage"].(map[string]interface{}); ok {
		u := &Usage{}
		if in, ok := usage["input_tokens"].(float64); ok {
			u.InputTokens = int(in)
		}
		if out, ok := usage["output_tokens"].(float64); ok {
			u.OutputTokens = int(out)
		}
		if u.InputTokens > 0 || u.OutputTokens > 0 {
			result.Usage = u
		}
	}

	content, ok := response["content"]
	if !ok {
		return result, nil
	}
	contentArray, ok := content.([]interface{})
	if !ok {
		return nil, errors.New("unexpected content format in Bedrock response")
	}

	toolCallIDCounter := 0
	for _, item := range contentArray {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		itemType, ok := itemMap["type"].(string)
		if !ok {
			continue
		}

		switch itemType {
		case "text":
			if text, ok := itemMap["text"].(string); ok {
				result.Message.Content += text
			}
		case "thinking":
			if thought, ok := itemMap["thinking"].(string); ok {
				result.Message.Thought += thought
			}
		case "tool_use":
			name, ok := itemMap["name"].(string)
			if !ok {
				continue
			}
			input, ok := itemMap["input"].(map[string]interface{})
			if !ok {
				continue
			}
			id := fmt.Sprintf("call_%d_%s", toolCallIDCounter, name)
			if toolID, ok := itemMap["id"].(string); ok {
				id = toolID
			}
			result.Message.ToolCalls = append(result.Message.ToolCalls, session.ToolCall{
				ToolCallID: id,
				Name:       name,
				Args:       input,
			})
			toolCallIDCounter++
		}
	}

	return result, nil
}
