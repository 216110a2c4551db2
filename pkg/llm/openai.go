package llm

import (
	"context"
	"encoding/base64"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// DashScopeBaseURL is the OpenAI-compatible endpoint serving Qwen models.
const DashScopeBaseURL = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"

// openaiBackend speaks the chat-completions API. It serves OpenAI itself and
// compatible endpoints such as DashScope.
type openaiBackend struct {
	client *openai.Client
	model  string
}

func newOpenAIBackend(apiKey, baseURL, model string) *openaiBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "qwen2.5-vl-7b-instruct"
	}
	return &openaiBackend{client: openai.NewClientWithConfig(cfg), model: model}
}

func (b *openaiBackend) name() string { return ProviderOpenAI }

func (b *openaiBackend) complete(ctx context.Context, p prompt) (string, error) {
	parts := make([]openai.ChatMessagePart, 0, 2)
	if len(p.Image) > 0 {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(p.Image),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.User})

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		MaxTokens:   p.MaxTokens,
		Temperature: float32(p.Temperature),
	})
	if err != nil {
		return "", &APIError{Provider: b.name(), StatusCode: openaiStatus(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &APIError{Provider: b.name(), StatusCode: 200, Err: errors.New("empty choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func openaiStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
