package llm

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicBackend struct {
	client *anthropic.Client
	model  string
}

func newAnthropicBackend(apiKey, baseURL, model string) *anthropicBackend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	client := anthropic.NewClient(opts...)
	return &anthropicBackend{client: &client, model: model}
}

func (b *anthropicBackend) name() string { return ProviderAnthropic }

func (b *anthropicBackend) complete(ctx context.Context, p prompt) (string, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
	if len(p.Image) > 0 {
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(p.Image)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(p.User))

	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   int64(p.MaxTokens),
		Temperature: anthropic.Float(p.Temperature),
		System:      []anthropic.TextBlockParam{{Text: p.System}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return "", &APIError{Provider: b.name(), StatusCode: status, Err: err}
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", &APIError{Provider: b.name(), StatusCode: 200, Err: errors.New("no text block in reply")}
}
