package extractor

import (
	"context"
	"fmt"
	"strings"

	"jobmail/pkg/config"
)

// Provider 一次补全调用，返回模型的原始文本
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// NewProvider 根据配置创建 Provider
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires llm.api_key or LLM_API_KEY")
		}
		return NewOpenAIProvider(cfg), nil
	case "gemini", "google":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires llm.api_key or LLM_API_KEY")
		}
		return NewGeminiProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: openai, gemini)", cfg.Provider)
	}
}
