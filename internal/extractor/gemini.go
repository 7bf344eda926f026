package extractor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"jobmail/pkg/config"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider 基于 Google GenAI SDK
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

func NewGeminiProvider(ctx context.Context, cfg config.LLMConfig) (*GeminiProvider, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = defaultGeminiModel
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini/" + p.model
}

func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.temperature),
	}
	if p.maxTokens > 0 {
		genCfg.MaxOutputTokens = p.maxTokens
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty response from gemini API")
	}
	return text, nil
}
