package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/stepwise/pkg/domain/ai"
)

const (
	openAIDefaultModel = "gpt-3.5-turbo"
	openAIURL          = "https://api.openai.com/v1/chat/completions"
)

type OpenAIProvider struct {
	Model      string
	APIKey     string
	baseURL    string       // For testing - defaults to OpenAI API
	httpClient *http.Client // For testing - defaults to http.DefaultClient
}

func NewOpenAIProvider(model string, apiKey string) *OpenAIProvider {
	return NewOpenAIProviderWithClient(model, apiKey, "", nil)
}

// NewOpenAIProviderWithClient creates a provider with custom HTTP client and base URL (for testing).
func NewOpenAIProviderWithClient(model, apiKey, baseURL string, client *http.Client) *OpenAIProvider {
	if model == "" {
		model = openAIDefaultModel
	}
	if baseURL == "" {
		baseURL = openAIURL
	}
	return &OpenAIProvider{
		Model:      model,
		APIKey:     apiKey,
		baseURL:    baseURL,
		httpClient: client,
	}
}

func (p *OpenAIProvider) ID() string {
	return "openai:" + p.Model
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    *float32              `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`

	schema map[string]any
}

type openAIJSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided (set OPENAI_API_KEY)")
	}

	messages := []openAIMessage{}
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	oReq := openAIRequest{
		Model:     p.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		oReq.Temperature = &temp
	}
	if req.Schema != nil {
		format, err := p.responseFormat(req.Schema)
		if err != nil {
			return nil, err
		}
		oReq.ResponseFormat = format
		if format.Type == "json_object" {
			// json_object mode only promises JSON; the shape travels in the prompt.
			doc, err := json.Marshal(format.schema)
			if err != nil {
				return nil, err
			}
			shape := "Respond with a JSON document matching this schema:\n" + string(doc)
			if messages[0].Role == "system" {
				messages[0].Content += "\n\n" + shape
			} else {
				messages = append([]openAIMessage{{Role: "system", Content: shape}}, messages...)
			}
			oReq.Messages = messages
		}
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	client := p.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on read body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API returned status: %s", resp.Status)
	}

	var openAIResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&openAIResp); err != nil {
		return nil, err
	}

	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI API returned no choices")
	}
	msg := openAIResp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, fmt.Errorf("OpenAI refused the request: %s", msg.Refusal)
	}

	return &ai.CompletionResponse{
		Text:  msg.Content,
		Model: p.Model,
		Usage: ai.TokenUsage{
			InputTokens:  openAIResp.Usage.PromptTokens,
			OutputTokens: openAIResp.Usage.CompletionTokens,
		},
	}, nil
}

// jsonSchemaModels lists the model families that accept structured outputs.
// Older chat models such as gpt-3.5-turbo and gpt-4 answer 400 to a
// json_schema response format and get json_object instead.
var jsonSchemaModels = []string{"gpt-4o", "gpt-4.1", "gpt-4.5", "gpt-5", "o1", "o3", "o4"}

func supportsJSONSchema(model string) bool {
	if strings.HasPrefix(model, "o1-preview") || strings.HasPrefix(model, "o1-mini") {
		return false
	}
	for _, prefix := range jsonSchemaModels {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (p *OpenAIProvider) responseFormat(s *ai.OutputSchema) (*openAIResponseFormat, error) {
	if !supportsJSONSchema(p.Model) {
		schema, err := schemaDocument(s, "$schema")
		if err != nil {
			return nil, err
		}
		return &openAIResponseFormat{Type: "json_object", schema: schema}, nil
	}
	// strict mode rejects these keywords and requires closed objects
	schema, err := schemaDocument(s, "$schema", "minLength")
	if err != nil {
		return nil, err
	}
	closeObjects(schema)
	return &openAIResponseFormat{
		Type: "json_schema",
		JSONSchema: &openAIJSONSchema{
			Name:   s.Name,
			Strict: true,
			Schema: schema,
		},
		schema: schema,
	}, nil
}

// closeObjects sets additionalProperties to false on every object schema.
func closeObjects(v any) {
	switch t := v.(type) {
	case map[string]any:
		for _, val := range t {
			closeObjects(val)
		}
		if t["type"] == "object" {
			t["additionalProperties"] = false
		}
	case []any:
		for _, val := range t {
			closeObjects(val)
		}
	}
}
