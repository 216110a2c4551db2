package llm

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGeminiBackend(ctx context.Context, apiKey, baseURL, model string) (*geminiBackend, error) {
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &geminiBackend{client: client, model: model}, nil
}

func (b *geminiBackend) name() string { return ProviderGemini }

func (b *geminiBackend) complete(ctx context.Context, p prompt) (string, error) {
	parts := make([]*genai.Part, 0, 2)
	if len(p.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(p.Image, "image/png"))
	}
	parts = append(parts, genai.NewPartFromText(p.User))

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(p.Temperature)),
		MaxOutputTokens:   int32(p.MaxTokens),
		ResponseMIMEType:  "application/json",
	}
	resp, err := b.client.Models.GenerateContent(ctx, b.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		status := 0
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		return "", &APIError{Provider: b.name(), StatusCode: status, Err: err}
	}
	return resp.Text(), nil
}
